package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"autorouter/internal/adapter/cache"
	"autorouter/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve model selection over HTTP",
	Long: `Run the selection service: POST /api/search and GET /api/health.
Requests must carry "Authorization: Bearer <key>" when the server API key
environment variable (default AUTOROUTER_API_KEY) is set.

Examples:
  autorouter serve
  autorouter serve --addr 127.0.0.1:9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()
	ctx := cmd.Context()

	direct, closeFn, err := newDirectSelector(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	selector := cache.NewCachedSelector(direct, cache.NewSelectionCache(cfg.Server.CacheSize, cfg.Server.CacheTTL()))
	apiKey := lookupEnv(cfg.Server.APIKeyEnv)
	srv := server.New(selector, apiKey, 30*time.Second, logger)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
