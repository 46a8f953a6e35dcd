package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when a required API key is neither
// passed explicitly nor present in the environment.
var ErrMissingCredential = errors.New("missing credential")

// Config holds all configuration for autorouter.
type Config struct {
	Index       IndexConfig       `yaml:"index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieve    RetrieveConfig    `yaml:"retrieve"`
	Remote      RemoteConfig      `yaml:"remote"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	Name          string `yaml:"name"`
	RegistryPath  string `yaml:"registry_path"` // empty searches the default locations
	PacingMS      int    `yaml:"pacing_ms"`     // negative disables pacing
	ProgressEvery int    `yaml:"progress_every"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai", "mock"
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	Dimension      int    `yaml:"dimension"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	Backend        string `yaml:"backend"` // "pinecone", "bolt", "pgvector", "memory"
	APIKeyEnv      string `yaml:"api_key_env"`
	ControllerURL  string `yaml:"controller_url"`
	Host           string `yaml:"host"`
	Namespace      string `yaml:"namespace"`
	BoltPath       string `yaml:"bolt_path"`
	DatabaseURLEnv string `yaml:"database_url_env"`
}

// RetrieveConfig holds selection configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// RemoteConfig points the CLI at a hosted selection service.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ServerConfig holds proxy server configuration.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	APIKeyEnv       string `yaml:"api_key_env"`
	CacheSize       int    `yaml:"cache_size"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Name:          "autorouter-models",
			PacingMS:      100,
			ProgressEvery: 10,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-large",
			APIKeyEnv:      "OPENAI_API_KEY",
			BaseURL:        "https://api.openai.com/v1",
			Dimension:      3072,
			TimeoutSeconds: 60,
		},
		VectorStore: VectorStoreConfig{
			Backend:        "pinecone",
			APIKeyEnv:      "PINECONE_API_KEY",
			ControllerURL:  "https://api.pinecone.io",
			BoltPath:       filepath.Join(".autorouter", "index.db"),
			DatabaseURLEnv: "DATABASE_URL",
		},
		Retrieve: RetrieveConfig{
			TopK: 10,
		},
		Remote: RemoteConfig{
			APIKeyEnv:      "AUTOROUTER_API_KEY",
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			APIKeyEnv:       "AUTOROUTER_API_KEY",
			CacheSize:       256,
			CacheTTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for autorouter.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "autorouter.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".autorouter", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.VectorStore.Backend {
	case "pinecone", "bolt", "pgvector", "memory":
	default:
		return fmt.Errorf("unknown vector_store.backend %q", c.VectorStore.Backend)
	}
	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	if strings.TrimSpace(c.Index.Name) == "" {
		return fmt.Errorf("index.name must not be empty")
	}
	return nil
}

// Pacing returns the delay between indexed records.
func (c IndexConfig) Pacing() time.Duration {
	if c.PacingMS < 0 {
		return -1
	}
	return time.Duration(c.PacingMS) * time.Millisecond
}

// Timeout converts the embedding timeout to a duration.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout converts the remote timeout to a duration.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL converts the cache TTL to a duration.
func (c ServerConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// LoadDotEnv loads .env from dir into the process environment. A missing
// file is not an error; variables already set are kept.
func LoadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// CredentialError names a credential that could not be resolved.
type CredentialError struct {
	Label string
	Env   string
	Flag  string
}

func (e *CredentialError) Error() string {
	if e.Flag == "" {
		return fmt.Sprintf("%s is required. Set %s", e.Label, e.Env)
	}
	return fmt.Sprintf("%s is required. Set %s or use %s", e.Label, e.Env, e.Flag)
}

func (e *CredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// ResolveCredential returns explicit when set, else the value of envName.
// label and flag only shape the error message.
func ResolveCredential(explicit, envName, label, flag string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v, nil
		}
	}
	return "", &CredentialError{Label: label, Env: envName, Flag: flag}
}

// NewLogger builds a text slog logger writing to w at the named level.
// Unknown levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// DataDir returns the directory holding local state under dir.
func DataDir(dir string) string {
	return filepath.Join(dir, ".autorouter")
}

// EnsureDataDir ensures the .autorouter directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
