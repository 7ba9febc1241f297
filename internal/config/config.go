// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, .env supported)
//  2. Config file (~/.deepseek-rag/config.yaml)
//  3. Default values
//
// Security: sensitive values (database password, API keys) are masked in
// MarshalJSON and String; the config directory uses 0750 permissions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel errors for configuration problems. Check with errors.Is().
var (
	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is not a valid URL.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgres indicates the PostgreSQL settings are invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidQdrant indicates the Qdrant settings are invalid.
	ErrInvalidQdrant = errors.New("invalid Qdrant configuration")

	// ErrInvalidThreshold indicates the similarity threshold is out of [0,1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Model provider identifiers used in Config.Provider.
const (
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// QdrantConfig configures the secondary vector store.
type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	Host       string `mapstructure:"host" json:"host"`
	Port       int    `mapstructure:"port" json:"port"`
	Collection string `mapstructure:"collection" json:"collection"`
	// MirrorWrites also writes ingested chunks into Qdrant so the
	// fallback index stays warm.
	MirrorWrites bool `mapstructure:"mirror_writes" json:"mirror_writes"`
}

// ExaConfig configures the web search tier. An empty APIKey disables it.
type ExaConfig struct {
	APIKey         string   `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	NumResults     int      `mapstructure:"num_results" json:"num_results"`
	IncludeDomains []string `mapstructure:"include_domains" json:"include_domains"`
}

// RetrievalConfig carries the default retrieval knobs; sessions may
// override the threshold per turn.
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k" json:"top_k"`
	SimilarityThreshold float32 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
}

// DriveConfig configures Google Drive ingestion.
type DriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file"`
	TokenFile       string `mapstructure:"token_file" json:"token_file"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Model provider configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "ollama" (default), "openai", "gemini"
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Primary store (PostgreSQL + pgvector)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Qdrant    QdrantConfig    `mapstructure:"qdrant" json:"qdrant"`
	Exa       ExaConfig       `mapstructure:"exa" json:"exa"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" json:"retrieval"`
	Drive     DriveConfig     `mapstructure:"drive" json:"drive"`

	// HTTP server
	ServeAddr string `mapstructure:"serve_addr" json:"serve_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
// A .env file in the working directory is loaded first, matching the
// dotenv convention.
func Load() (*Config, error) {
	// Best-effort: absence of .env is the normal case
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".deepseek-rag")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("model_name", "deepseek-r1")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("embedder_model", "snowflake-arctic-embed")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "rag")
	v.SetDefault("postgres_password", "rag_dev_password")
	v.SetDefault("postgres_db_name", "rag")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "documents")
	v.SetDefault("qdrant.mirror_writes", true)

	v.SetDefault("exa.num_results", 5)
	v.SetDefault("exa.include_domains", []string{"arxiv.org", "wikipedia.org", "github.com", "medium.com"})

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.similarity_threshold", 0.7)

	v.SetDefault("drive.credentials_file", filepath.Join(configDir, "credentials.json"))
	v.SetDefault("drive.token_file", filepath.Join(configDir, "token.json"))

	v.SetDefault("serve_addr", "localhost:8080")
}

// bindEnvVariables binds environment variables explicitly.
// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the
// Genkit plugins, not via Viper.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("exa.api_key", "EXA_API_KEY")
	mustBind("provider", "RAG_PROVIDER")
	mustBind("model_name", "RAG_MODEL_NAME")
	mustBind("ollama_host", "RAG_OLLAMA_HOST")
	mustBind("postgres_host", "RAG_POSTGRES_HOST")
	mustBind("postgres_password", "RAG_POSTGRES_PASSWORD")
	mustBind("qdrant.enabled", "RAG_QDRANT_ENABLED")
	mustBind("qdrant.host", "RAG_QDRANT_HOST")
	mustBind("serve_addr", "RAG_SERVE_ADDR")
}

// PostgresURL builds the connection string for pgx and migrations.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "ollama/deepseek-r1", "openai/gpt-4o", "googleai/gemini-2.5-flash".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	case ProviderGemini, ProviderGoogleAI:
		return ProviderGoogleAI + "/" + c.ModelName
	default:
		return ProviderOllama + "/" + c.ModelName
	}
}

// WebSearchAvailable reports whether the web tier can be constructed.
func (c *Config) WebSearchAvailable() bool {
	return c.Exa.APIKey != ""
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 bytes
// or fewer are fully masked; longer ones keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.Exa.APIKey = maskSecret(a.Exa.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
