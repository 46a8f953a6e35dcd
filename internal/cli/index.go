package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"autorouter/config"
	"autorouter/internal/adapter/registry"
	"autorouter/internal/bootstrap"
	"autorouter/internal/domain"
	"autorouter/internal/usecase"
)

var (
	indexOpenAIKey   string
	indexPineconeKey string
	indexName        string
	indexRegistry    string
)

var indexCmd = &cobra.Command{
	Use:   "index-models",
	Short: "Embed the model registry into the vector index",
	Long: `Load the model registry, embed each model's searchable text and upsert it
into the configured vector index. Failing models are reported and skipped.

Examples:
  autorouter index-models
  autorouter index-models -i staging-models -r ./data/model-registry.json`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVarP(&indexOpenAIKey, "openai-key", "o", "", "OpenAI API key (default $OPENAI_API_KEY)")
	indexCmd.Flags().StringVarP(&indexPineconeKey, "pinecone-key", "p", "", "Pinecone API key (default $PINECONE_API_KEY)")
	indexCmd.Flags().StringVarP(&indexName, "index-name", "i", "", "index name (default from config, autorouter-models)")
	indexCmd.Flags().StringVarP(&indexRegistry, "registry-path", "r", "", "model registry JSON (default: search standard locations)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()
	ctx := cmd.Context()

	var openaiKey, pineconeKey string
	var err error
	if bootstrap.NeedsEmbeddingKey(cfg.Embedding) {
		openaiKey, err = config.ResolveCredential(indexOpenAIKey, cfg.Embedding.APIKeyEnv, "OpenAI API key", "--openai-key")
		if err != nil {
			return err
		}
	}
	if bootstrap.NeedsPineconeKey(cfg.VectorStore) {
		pineconeKey, err = config.ResolveCredential(indexPineconeKey, cfg.VectorStore.APIKeyEnv, "Pinecone API key", "--pinecone-key")
		if err != nil {
			return err
		}
	}

	name := cfg.Index.Name
	if indexName != "" {
		name = indexName
	}
	regPath := cfg.Index.RegistryPath
	if indexRegistry != "" {
		regPath = indexRegistry
	}

	// Resolve and load up front so the listing can be shown before any
	// external call is made.
	resolver := registry.DefaultResolver()
	resolver.WorkDir = GetRootDir()
	path, err := resolver.Resolve(regPath)
	if err != nil {
		return err
	}
	records, err := registry.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d models from %s\n", len(records), path)
	printTopModels(records, 10)

	embedder, err := bootstrap.NewEmbedder(cfg.Embedding, openaiKey)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	vs, err := bootstrap.OpenVectorStore(ctx, cfg.VectorStore, bootstrap.StoreParams{
		IndexName:   name,
		Dimension:   embedder.Dimension(),
		Model:       embedder.ModelName(),
		PineconeKey: pineconeKey,
		DatabaseURL: databaseURL(cfg),
		Dir:         GetRootDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer vs.Close()

	var barMu sync.Mutex
	startTime := time.Now()

	bar := progressbar.NewOptions(len(records),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	progressCallback := func(indexed, total int, id string) {
		barMu.Lock()
		defer barMu.Unlock()

		bar.Set(indexed)

		elapsed := time.Since(startTime)
		rate := float64(indexed) / elapsed.Seconds()
		remaining := total - indexed
		if rate > 0 {
			eta := time.Duration(float64(remaining)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
		}
	}

	indexUC := usecase.NewIndexUseCase(embedder, vs, usecase.IndexOptions{
		Pacing:        cfg.Index.Pacing(),
		ProgressEvery: cfg.Index.ProgressEvery,
		Progress:      progressCallback,
		Logger:        logger,
	})

	fmt.Printf("Indexing into %q (%s, %s)...\n", name, cfg.VectorStore.Backend, embedder.ModelName())

	result, err := indexUC.Index(ctx, records)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("indexing interrupted after %d models: %w", result.Indexed, err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Models indexed: %d/%d\n", result.Indexed, result.Total)
	if result.Skipped > 0 {
		fmt.Printf("  Models skipped: %d (no searchable text)\n", result.Skipped)
	}
	fmt.Printf("  Duration:       %s\n", formatDuration(result.Duration))

	if len(result.Failures) > 0 {
		fmt.Printf("\nFailed:\n")
		for _, f := range result.Failures {
			fmt.Printf("  - %s\n", f.Error())
		}
	}
	return nil
}

func printTopModels(records []domain.ModelRecord, n int) {
	if len(records) < n {
		n = len(records)
	}
	if n == 0 {
		return
	}
	fmt.Printf("Top %d models:\n", n)
	for i, r := range records[:n] {
		task := r.Task
		if task == "" {
			task = "unknown"
		}
		fmt.Printf("  %2d. %s (%s)\n", i+1, r.ID, task)
	}
	fmt.Println()
}

func databaseURL(cfg *config.Config) string {
	if cfg.VectorStore.Backend != "pgvector" {
		return ""
	}
	url, _ := config.ResolveCredential("", cfg.VectorStore.DatabaseURLEnv, "database URL", "")
	return url
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
