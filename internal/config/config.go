// Package config provides configuration loading for codefinder.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then CODEFINDER_* environment variables. Command-line flags are applied on
// top by the binary.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete codefinder configuration.
//
// Every section is flat (section.field) so that each setting can be
// overridden by a single CODEFINDER_SECTION_FIELD environment variable.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Search      SearchConfig      `koanf:"search"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Secrets     SecretsConfig     `koanf:"secrets"`
	Watch       WatchConfig       `koanf:"watch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// QdrantConfig holds connection settings for the Qdrant gRPC API.
type QdrantConfig struct {
	Host                    string   `koanf:"host"`
	Port                    int      `koanf:"port"`
	APIKey                  Secret   `koanf:"api_key"`
	UseTLS                  bool     `koanf:"use_tls"`
	VectorSize              int      `koanf:"vector_size"`
	Distance                string   `koanf:"distance"`
	MaxRetries              int      `koanf:"max_retries"`
	RetryBackoff            Duration `koanf:"retry_backoff"`
	MaxMessageSize          int      `koanf:"max_message_size"`
	CircuitBreakerThreshold int      `koanf:"circuit_breaker_threshold"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "qdrant" (default) or "chromem" (embedded, no server).
	Provider        string `koanf:"provider"`
	ChromemPath     string `koanf:"chromem_path"`
	ChromemCompress bool   `koanf:"chromem_compress"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX) or "tei" (remote HTTP).
	Provider string   `koanf:"provider"`
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	CacheDir string   `koanf:"cache_dir"`
	Timeout  Duration `koanf:"timeout"`
}

// IngestConfig holds defaults for the ingestion pipeline.
type IngestConfig struct {
	Language        string   `koanf:"language"`
	Collection      string   `koanf:"collection"`
	ChunkSize       int      `koanf:"chunk_size"`
	Tokenizer       string   `koanf:"tokenizer"` // tiktoken | words
	ShouldIngest    bool     `koanf:"should_ingest"`
	Debug           bool     `koanf:"debug"`
	BatchSize       int      `koanf:"batch_size"`
	Workers         int      `koanf:"workers"`
	ReadWorkers     int      `koanf:"read_workers"`
	WritesPerSecond float64  `koanf:"writes_per_second"` // 0 disables pacing
	ContinueOnError bool     `koanf:"continue_on_error"`
	StrictLanguage  bool     `koanf:"strict_language"`
	MaxFileSize     int64    `koanf:"max_file_size"`
	ExcludeDirs     []string `koanf:"exclude_dirs"`
	SkipIgnoreFiles bool     `koanf:"skip_ignore_files"`
}

// SearchConfig holds defaults for the search wrapper.
type SearchConfig struct {
	Limit        int `koanf:"limit"`
	PreviewLines int `koanf:"preview_lines"`
}

// LoggingConfig is the user-facing subset of the logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// SecretsConfig controls redaction of secrets from chunk text before storage.
type SecretsConfig struct {
	Enabled bool `koanf:"enabled"`
	// Engine is "rules" (built-in regexp rules) or "gitleaks".
	Engine          string   `koanf:"engine"`
	RedactionString string   `koanf:"redaction_string"`
	AllowList       []string `koanf:"allow_list"`
	// AllowlistFile is a user-level gitleaks-style TOML allowlist.
	AllowlistFile string `koanf:"allowlist_file"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce Duration `koanf:"debounce"`
}

// Default returns the built-in configuration.
//
// Ingestion defaults to python sources, the "codebase_chunks" collection
// and a 2048 token chunk budget.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Qdrant: QdrantConfig{
			Host:                    "localhost",
			Port:                    6334,
			VectorSize:              384, // all-MiniLM-L6-v2
			Distance:                "cosine",
			MaxRetries:              3,
			RetryBackoff:            Duration(time.Second),
			MaxMessageSize:          50 * 1024 * 1024,
			CircuitBreakerThreshold: 5,
		},
		VectorStore: VectorStoreConfig{
			Provider:        "qdrant",
			ChromemPath:     "~/.config/codefinder/vectorstore",
			ChromemCompress: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "sentence-transformers/all-MiniLM-L6-v2",
			BaseURL:  "http://localhost:8080",
			Timeout:  Duration(30 * time.Second),
		},
		Ingest: IngestConfig{
			Language:     "python",
			Collection:   "codebase_chunks",
			ChunkSize:    2048,
			Tokenizer:    "tiktoken",
			ShouldIngest: true,
			BatchSize:    64,
			Workers:      1,
			ReadWorkers:  8,
			MaxFileSize:  1024 * 1024,
		},
		Search: SearchConfig{
			Limit:        5,
			PreviewLines: 12,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "codefinder",
			SampleRate:  1.0,
		},
		Secrets: SecretsConfig{
			Enabled:         true,
			Engine:          "rules",
			RedactionString: "[REDACTED]",
		},
		Watch: WatchConfig{
			Debounce: Duration(2 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server shutdown timeout must be positive"))
	}

	switch c.VectorStore.Provider {
	case "qdrant":
		if c.Qdrant.Host == "" {
			errs = append(errs, errors.New("qdrant host is required"))
		}
		if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port))
		}
	case "chromem":
		if c.VectorStore.ChromemPath == "" {
			errs = append(errs, errors.New("vectorstore chromem_path is required for chromem provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported vectorstore provider %q (use qdrant or chromem)", c.VectorStore.Provider))
	}
	if c.Qdrant.VectorSize <= 0 {
		errs = append(errs, errors.New("qdrant vector_size must be positive"))
	}

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei":
		if !strings.HasPrefix(c.Embeddings.BaseURL, "http://") && !strings.HasPrefix(c.Embeddings.BaseURL, "https://") {
			errs = append(errs, fmt.Errorf("embeddings base_url must be http(s), got %q", c.Embeddings.BaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported embeddings provider %q (use fastembed or tei)", c.Embeddings.Provider))
	}

	if c.Ingest.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest chunk_size must be positive, got %d", c.Ingest.ChunkSize))
	}
	if c.Ingest.Tokenizer != "tiktoken" && c.Ingest.Tokenizer != "words" {
		errs = append(errs, fmt.Errorf("ingest tokenizer must be tiktoken or words, got %q", c.Ingest.Tokenizer))
	}
	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, errors.New("ingest batch_size must be positive"))
	}
	if c.Ingest.Workers <= 0 || c.Ingest.ReadWorkers <= 0 {
		errs = append(errs, errors.New("ingest workers and read_workers must be positive"))
	}
	if c.Ingest.WritesPerSecond < 0 {
		errs = append(errs, errors.New("ingest writes_per_second cannot be negative"))
	}
	if c.Ingest.Collection == "" {
		errs = append(errs, errors.New("ingest collection is required"))
	}

	if c.Secrets.Enabled && c.Secrets.Engine != "rules" && c.Secrets.Engine != "gitleaks" {
		errs = append(errs, fmt.Errorf("secrets engine must be rules or gitleaks, got %q", c.Secrets.Engine))
	}

	if c.Search.Limit <= 0 {
		errs = append(errs, errors.New("search limit must be positive"))
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry endpoint required when telemetry is enabled"))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate))
	}

	return errors.Join(errs...)
}
