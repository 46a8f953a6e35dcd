package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"autorouter/config"
	"autorouter/internal/adapter/memstore"
	"autorouter/internal/adapter/registry"
	"autorouter/internal/bootstrap"
	"autorouter/internal/domain"
	"autorouter/internal/usecase"
)

// probe is a task description with the registry task a good answer has.
type probe struct {
	query string
	task  string
}

var defaultProbes = []probe{
	{"summarize long news articles", "summarization"},
	{"translate english text to french", "translation"},
	{"transcribe speech from audio recordings", "automatic-speech-recognition"},
	{"classify the sentiment of product reviews", "text-classification"},
	{"generate images from a text prompt", "text-to-image"},
	{"answer questions about a document", "question-answering"},
	{"detect objects in photos", "object-detection"},
	{"chat assistant that writes text", "text-generation"},
}

func main() {
	dir := flag.String("dir", ".", "Working directory with autorouter.yaml and data/")
	regPath := flag.String("registry", "", "Model registry JSON (default: search standard locations)")
	query := flag.String("q", "", "Single query to inspect instead of the probe set")
	topK := flag.Int("k", 5, "Number of results")
	provider := flag.String("provider", "mock", "Embedding provider: mock or openai")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := config.LoadDotEnv(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg.Embedding.Provider = *provider

	var apiKey string
	if bootstrap.NeedsEmbeddingKey(cfg.Embedding) {
		apiKey, err = config.ResolveCredential("", cfg.Embedding.APIKeyEnv, "OpenAI API key", "")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	embedder, err := bootstrap.NewEmbedder(cfg.Embedding, apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	resolver := registry.DefaultResolver()
	resolver.WorkDir = *dir
	path, err := resolver.Resolve(*regPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding registry: %v\n", err)
		os.Exit(1)
	}
	records, err := registry.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading registry: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store := memstore.NewMemoryStore()

	pacing := time.Duration(-1)
	if *provider != "mock" {
		pacing = cfg.Index.Pacing()
	}
	indexUC := usecase.NewIndexUseCase(embedder, store, usecase.IndexOptions{Pacing: pacing})
	result, err := indexUC.Index(ctx, records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("MODEL SELECTION BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Registry:  %s\n", path)
	fmt.Printf("Indexed:   %d/%d models in %s\n", result.Indexed, result.Total, result.Duration.Round(time.Millisecond))
	fmt.Printf("Embedder:  %s (%d dims)\n", embedder.ModelName(), embedder.Dimension())
	fmt.Println()

	selectUC := usecase.NewSelectUseCase(embedder, store)
	opts := domain.SearchOptions{Limit: *topK}

	if *query != "" {
		results, err := selectUC.SelectModel(ctx, *query, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Selection error: %v\n", err)
			os.Exit(1)
		}
		printResults(*query, results)
		return
	}

	var hits, top1 int
	var totalLatency time.Duration
	for _, p := range defaultProbes {
		start := time.Now()
		results, err := selectUC.SelectModel(ctx, p.query, opts)
		totalLatency += time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Selection error for %q: %v\n", p.query, err)
			continue
		}

		rank := -1
		for i, r := range results {
			if r.Task == p.task {
				rank = i
				break
			}
		}
		status := "MISS"
		switch {
		case rank == 0:
			status = "TOP1"
			top1++
			hits++
		case rank > 0:
			status = fmt.Sprintf("TOP%d", rank+1)
			hits++
		}
		best := "-"
		if len(results) > 0 {
			best = results[0].ID
		}
		fmt.Printf("[%-5s] %-45s -> %s\n", status, p.query, best)
	}

	n := len(defaultProbes)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Top-1 task match:  %d/%d\n", top1, n)
	fmt.Printf("  Top-%d task match:  %d/%d\n", *topK, hits, n)
	fmt.Printf("  Mean latency:      %s\n", (totalLatency / time.Duration(n)).Round(time.Microsecond))
}

func printResults(query string, results []domain.SearchResult) {
	fmt.Printf("Query: \"%s\"\n", query)
	fmt.Println(strings.Repeat("-", 70))
	for i, r := range results {
		rating := "LOW"
		if r.Score > 0.7 {
			rating = "HIGH"
		} else if r.Score > 0.5 {
			rating = "GOOD"
		} else if r.Score > 0.3 {
			rating = "OK"
		}
		fmt.Printf("%d. [%s %.3f] %s (%s, %s)\n", i+1, rating, r.Score, r.ID, r.Task, r.License)
	}
}
