package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"autorouter/config"
	"autorouter/internal/adapter/remote"
	"autorouter/internal/bootstrap"
	"autorouter/internal/domain"
	"autorouter/internal/port"
	"autorouter/internal/usecase"
)

var (
	selectQuery   string
	selectLimit   int
	selectLicense string
	selectRemote  string
	selectJSON    bool
)

var selectCmd = &cobra.Command{
	Use:     "select",
	Aliases: []string{"query"},
	Short:   "Find models for a task description",
	Long: `Embed a natural-language task description and return the closest models
from the index, optionally restricted to one license. With --remote the query
is sent to a hosted autorouter service instead.

Examples:
  autorouter select -q "summarize news articles"
  autorouter select -q "speech to text" --limit 3 --license apache-2.0 --json
  autorouter select -q "translate" --remote https://router.example.com`,
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().StringVarP(&selectQuery, "query", "q", "", "task description (required)")
	selectCmd.Flags().IntVarP(&selectLimit, "limit", "k", 0, "number of results (default from config)")
	selectCmd.Flags().StringVar(&selectLicense, "license", "", "only return models with this license")
	selectCmd.Flags().StringVar(&selectRemote, "remote", "", "base URL of a hosted service (default from config)")
	selectCmd.Flags().BoolVar(&selectJSON, "json", false, "output as JSON")
	selectCmd.MarkFlagRequired("query")
}

func runSelect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	baseURL := cfg.Remote.BaseURL
	if selectRemote != "" {
		baseURL = selectRemote
	}

	var selector port.Selector
	if baseURL != "" {
		apiKey, err := config.ResolveCredential("", cfg.Remote.APIKeyEnv, "AutoRouter API key", "")
		if err != nil {
			return err
		}
		selector = remote.NewClient(baseURL, apiKey, &http.Client{Timeout: cfg.Remote.Timeout()})
	} else {
		direct, closeFn, err := newDirectSelector(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		selector = direct
	}

	opts := domain.SearchOptions{Limit: cfg.Retrieve.TopK}
	if selectLimit > 0 {
		opts.Limit = selectLimit
	}
	if selectLicense != "" {
		opts.Filter = &domain.SearchFilter{License: selectLicense}
	}

	results, err := selector.SelectModel(ctx, selectQuery, opts)
	if err != nil {
		return fmt.Errorf("selection failed: %w", err)
	}

	if selectJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No models found.")
		return nil
	}
	fmt.Printf("Found %d models for: %s\n\n", len(results), selectQuery)
	for i, r := range results {
		fmt.Printf("--- [%d] %s (score: %.3f) ---\n", i+1, r.ID, r.Score)
		fmt.Printf("  task: %s  license: %s", r.Task, r.License)
		if r.Downloads != nil {
			fmt.Printf("  downloads: %.0f", *r.Downloads)
		}
		fmt.Println()
		if desc := strings.TrimSpace(r.Description); desc != "" {
			if len(desc) > 200 {
				desc = desc[:200] + "..."
			}
			fmt.Printf("  %s\n", desc)
		}
		if r.Endpoint != "" {
			fmt.Printf("  %s\n", r.Endpoint)
		}
		fmt.Println()
	}
	return nil
}

// newDirectSelector wires a SelectUseCase to the configured embedder and
// vector index using keys from the environment.
func newDirectSelector(ctx context.Context, cfg *config.Config) (*usecase.SelectUseCase, func() error, error) {
	var openaiKey, pineconeKey string
	var err error
	if bootstrap.NeedsEmbeddingKey(cfg.Embedding) {
		openaiKey, err = config.ResolveCredential("", cfg.Embedding.APIKeyEnv, "OpenAI API key", "")
		if err != nil {
			return nil, nil, err
		}
	}
	if bootstrap.NeedsPineconeKey(cfg.VectorStore) {
		pineconeKey, err = config.ResolveCredential("", cfg.VectorStore.APIKeyEnv, "Pinecone API key", "")
		if err != nil {
			return nil, nil, err
		}
	}

	embedder, err := bootstrap.NewEmbedder(cfg.Embedding, openaiKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	vs, err := bootstrap.OpenVectorStore(ctx, cfg.VectorStore, bootstrap.StoreParams{
		IndexName:   cfg.Index.Name,
		Dimension:   embedder.Dimension(),
		Model:       embedder.ModelName(),
		PineconeKey: pineconeKey,
		DatabaseURL: databaseURL(cfg),
		Dir:         GetRootDir(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	return usecase.NewSelectUseCase(embedder, vs), vs.Close, nil
}
