// Package config loads the service configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Embedding providers.
const (
	ProviderOllama    = "ollama"
	ProviderLangChain = "langchain"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes"`
}

// OllamaConfig points at the Ollama server used for generation.
type OllamaConfig struct {
	BaseURL         string   `yaml:"base_url"`
	GenerationModel string   `yaml:"generation_model"`
	Timeout         Duration `yaml:"timeout"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider string   `yaml:"provider"`
	BaseURL  string   `yaml:"base_url"`
	Model    string   `yaml:"model"`
	Timeout  Duration `yaml:"timeout"`
	Probe    bool     `yaml:"probe"`
}

// ChunkerConfig sets the chunk window, in words.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// SessionConfig bounds the in-memory session store. Zero means unbounded.
type SessionConfig struct {
	Capacity int      `yaml:"capacity"`
	TTL      Duration `yaml:"ttl"`
}

// KnowledgeBaseConfig locates the knowledge base folder.
type KnowledgeBaseConfig struct {
	Folder string `yaml:"folder"`
	Watch  bool   `yaml:"watch"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server        ServerConfig        `yaml:"server"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	Sessions      SessionConfig       `yaml:"sessions"`
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	Log           LogConfig           `yaml:"log"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Load reads the .env file if present, then the YAML config at path, then
// environment overrides. A missing YAML file yields the defaults.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: Duration{10 * time.Second},
			MaxUploadBytes:  32 << 20,
		},
		Ollama: OllamaConfig{
			BaseURL:         "http://localhost:11434",
			GenerationModel: "mistral",
			Timeout:         Duration{300 * time.Second},
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
			Model:    "all-minilm",
			Timeout:  Duration{60 * time.Second},
		},
		Chunker: ChunkerConfig{Size: 500, Overlap: 100},
		KnowledgeBase: KnowledgeBaseConfig{
			Folder: "kb",
			Watch:  true,
		},
		Log: LogConfig{Level: "info", Pretty: true},
	}
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.KnowledgeBase.Folder, "KB_FOLDER")
	setString(&cfg.Server.Addr, "DOCQA_ADDR")
	setString(&cfg.Ollama.BaseURL, "DOCQA_OLLAMA_URL")
	setString(&cfg.Ollama.GenerationModel, "DOCQA_GENERATION_MODEL")
	setString(&cfg.Embedding.Model, "DOCQA_EMBEDDING_MODEL")
	setString(&cfg.Embedding.Provider, "DOCQA_EMBEDDING_PROVIDER")
	setString(&cfg.Log.Level, "DOCQA_LOG_LEVEL")

	if v := os.Getenv("DOCQA_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("DOCQA_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.Size = n
		}
	}
	if v := os.Getenv("DOCQA_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.Overlap = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.ShutdownTimeout.Duration == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = def.Server.MaxUploadBytes
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = def.Ollama.BaseURL
	}
	if cfg.Ollama.GenerationModel == "" {
		cfg.Ollama.GenerationModel = def.Ollama.GenerationModel
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	cfg.Embedding.Provider = strings.ToLower(cfg.Embedding.Provider)
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.Ollama.BaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = def.Chunker.Size
	}
	if cfg.KnowledgeBase.Folder == "" {
		cfg.KnowledgeBase.Folder = def.KnowledgeBase.Folder
	}
}

// Validate rejects configurations the service cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunker.overlap must be in [0, %d), got %d", c.Chunker.Size, c.Chunker.Overlap)
	}
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderLangChain:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Sessions.Capacity < 0 {
		return fmt.Errorf("sessions.capacity must not be negative")
	}
	return nil
}
