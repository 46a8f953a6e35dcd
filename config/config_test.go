package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.Name != "autorouter-models" {
		t.Errorf("expected Name=autorouter-models, got %s", cfg.Index.Name)
	}
	if cfg.Index.Pacing() != 100*time.Millisecond {
		t.Errorf("expected Pacing=100ms, got %s", cfg.Index.Pacing())
	}
	if cfg.Index.ProgressEvery != 10 {
		t.Errorf("expected ProgressEvery=10, got %d", cfg.Index.ProgressEvery)
	}
	if cfg.Embedding.Model != "text-embedding-3-large" || cfg.Embedding.Dimension != 3072 {
		t.Errorf("unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "autorouter.yaml")

	content := `
index:
  name: staging-models
  pacing_ms: -1
vector_store:
  backend: bolt
retrieve:
  top_k: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.Name != "staging-models" {
		t.Errorf("expected Name=staging-models, got %s", cfg.Index.Name)
	}
	if cfg.Index.Pacing() >= 0 {
		t.Errorf("expected pacing disabled, got %s", cfg.Index.Pacing())
	}
	if cfg.VectorStore.Backend != "bolt" {
		t.Errorf("expected Backend=bolt, got %s", cfg.VectorStore.Backend)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("expected untouched defaults to survive, got %s", cfg.Embedding.APIKeyEnv)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "autorouter.yaml")
	if err := os.WriteFile(configPath, []byte("vector_store:\n  backend: redis\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(DataDir(tmpDir), "config.yaml")

	content := `
server:
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected Addr=:9090, got %s", cfg.Server.Addr)
	}
}

func TestResolveCredential(t *testing.T) {
	t.Setenv("AUTOROUTER_TEST_KEY", "from-env")

	got, err := ResolveCredential("from-flag", "AUTOROUTER_TEST_KEY", "OpenAI API key", "--openai-key")
	if err != nil || got != "from-flag" {
		t.Errorf("expected flag to win, got %q %v", got, err)
	}

	got, err = ResolveCredential("", "AUTOROUTER_TEST_KEY", "OpenAI API key", "--openai-key")
	if err != nil || got != "from-env" {
		t.Errorf("expected env value, got %q %v", got, err)
	}

	_, err = ResolveCredential("", "AUTOROUTER_UNSET_KEY", "OpenAI API key", "--openai-key")
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	want := "OpenAI API key is required. Set AUTOROUTER_UNSET_KEY or use --openai-key"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AUTOROUTER_DOTENV_TEST=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTOROUTER_DOTENV_TEST", "")
	os.Unsetenv("AUTOROUTER_DOTENV_TEST")

	if err := LoadDotEnv(dir); err != nil {
		t.Fatal(err)
	}
	if v := os.Getenv("AUTOROUTER_DOTENV_TEST"); v != "loaded" {
		t.Errorf("expected value from .env, got %q", v)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output: %s", buf.String())
	}

	buf.Reset()
	NewLogger("nonsense", &buf).Info("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Error("expected unknown level to fall back to info")
	}
}
