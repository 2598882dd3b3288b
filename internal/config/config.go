package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	SplitterRecursive = "recursive"
	SplitterWindow    = "window"

	DriverPGDriver = "pgdriver"
	DriverPQ       = "pq"

	APIKeyEnv = "OPENAI_API_KEY"
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	UI       UIConfig       `yaml:"ui"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// LLMConfig describes one hosted model endpoint, used for both generation and embeddings.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
}

type RAGConfig struct {
	Splitter      string  `yaml:"splitter"`
	ChunkSize     int     `yaml:"chunk_size"`
	ChunkOverlap  int     `yaml:"chunk_overlap"`
	TopK          int     `yaml:"top_k"`
	MinSimilarity float32 `yaml:"min_similarity"`
	EncryptionKey string  `yaml:"encryption_key"`
}

// UIConfig carries the web app settings. Its chunk settings override RAG's for uploads.
type UIConfig struct {
	Addr         string `yaml:"addr"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	MaxUploadMB  int64  `yaml:"max_upload_mb"`
	TempDir      string `yaml:"temp_dir"`
}

type IndexConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Name     string `yaml:"name"`
	Compress bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Debug      bool   `yaml:"debug"`
	VectorSize int    `yaml:"vector_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
// A .env file in the working directory is loaded first so the API key can live there.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	key := os.Getenv(APIKeyEnv)
	c.LLM.applyDefaults("gpt-3.5-turbo", key)
	c.EmbedLLM.applyDefaults("text-embedding-ada-002", key)

	if c.RAG.Splitter == "" {
		c.RAG.Splitter = SplitterRecursive
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
		if c.RAG.ChunkOverlap == 0 {
			c.RAG.ChunkOverlap = 200
		}
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 4
	}

	if c.UI.Addr == "" {
		c.UI.Addr = ":8501"
	}
	if c.UI.ChunkSize == 0 {
		c.UI.ChunkSize = 500
		if c.UI.ChunkOverlap == 0 {
			c.UI.ChunkOverlap = 100
		}
	}
	if c.UI.MaxUploadMB == 0 {
		c.UI.MaxUploadMB = 32
	}

	if c.Index.Backend == "" {
		c.Index.Backend = BackendChromem
	}
	if c.Index.Path == "" {
		c.Index.Path = "./chromemdb"
	}
	if c.Index.Name == "" {
		c.Index.Name = "vector_index"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPGDriver
	}
	if c.Database.VectorSize == 0 {
		c.Database.VectorSize = 1536
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (l *LLMConfig) applyDefaults(model, key string) {
	if l.Provider == "" {
		l.Provider = ProviderOpenAI
	}
	if l.Model == "" {
		l.Model = model
	}
	if l.Key == "" {
		l.Key = key
	}
}

// Validate rejects chunk settings the splitters cannot honour and unknown backends.
func (c *Config) Validate() error {
	if err := validateChunking(c.RAG.ChunkSize, c.RAG.ChunkOverlap); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := validateChunking(c.UI.ChunkSize, c.UI.ChunkOverlap); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	switch c.RAG.Splitter {
	case SplitterRecursive, SplitterWindow:
	default:
		return fmt.Errorf("unknown splitter %q", c.RAG.Splitter)
	}
	switch c.Index.Backend {
	case BackendChromem, BackendPGVector:
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	switch c.Database.Driver {
	case DriverPGDriver, DriverPQ:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	for _, p := range []string{c.LLM.Provider, c.EmbedLLM.Provider} {
		if p != ProviderOpenAI && p != ProviderOllama {
			return fmt.Errorf("unknown provider %q", p)
		}
	}
	if k := c.RAG.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes, got %d", len(k))
	}
	if c.RAG.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	return nil
}

// WithChunking returns a copy of the RAG settings using the given chunk size and overlap.
func (r RAGConfig) WithChunking(size, overlap int) RAGConfig {
	r.ChunkSize = size
	r.ChunkOverlap = overlap
	return r
}

func validateChunking(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("chunk_overlap must be in [0, %d), got %d", size, overlap)
	}
	return nil
}

// Redacted hides credentials so the config can be logged.
func (c Config) Redacted() Config {
	c.LLM.Key = mask(c.LLM.Key)
	c.EmbedLLM.Key = mask(c.EmbedLLM.Key)
	c.RAG.EncryptionKey = mask(c.RAG.EncryptionKey)
	c.Database.Password = mask(c.Database.Password)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}
