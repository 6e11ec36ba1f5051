package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"

	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

const (
	defaultPort            = 8000
	defaultChunkSize       = 500
	defaultChunkOverlap    = 50
	defaultTopK            = 3
	defaultEmbedProvider   = "ollama"
	defaultEmbedModel      = "nomic-embed-text"
	defaultEmbedBatchSize  = 32
	defaultEmbedTimeout    = 30
	defaultLruTTLSeconds   = 7200
	defaultGenProvider     = "ollama"
	defaultGenModel        = "phi3"
	defaultGenTimeout      = 60
	defaultCacheMaxAgeDays = 30
	defaultCleanupSpec     = "0 3 * * *"

	DefaultFallback = "I don't have that information in my knowledge base."
)

type Config struct {
	Port           int                  `json:"port"`
	LogConfig      logger.LogConfig     `json:"log_config"`
	Source         SourceConfig         `json:"source"`
	Chunker        ChunkerConfig        `json:"chunker"`
	Retrieval      RetrievalConfig      `json:"retrieval"`
	Embedder       EmbedderConfig       `json:"embedder"`
	Generator      GeneratorConfig      `json:"generator"`
	Prompt         PromptConfig         `json:"prompt"`
	EmbeddingCache EmbeddingCacheConfig `json:"embedding_cache"`
	HTTP           HTTPConfig           `json:"http"`
}

// SourceConfig names the knowledge document. Data holds store specific
// settings such as s3 bucket and credentials.
type SourceConfig struct {
	Type   string      `json:"type"`
	Path   string      `json:"path"`
	Format string      `json:"format"`
	Data   interface{} `json:"data"`
}

type ChunkerConfig struct {
	ChunkSize    int  `json:"chunk_size"`
	ChunkOverlap *int `json:"chunk_overlap"`
}

// Overlap returns the configured overlap, falling back to the default when
// the field is absent. An explicit zero is kept.
func (c ChunkerConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return defaultChunkOverlap
	}
	return *c.ChunkOverlap
}

// RetrievalConfig.MinScore is a cosine floor in [-1, 1]. Leaving it out keeps
// every top-k hit; an explicit 0 drops only negative scores.
type RetrievalConfig struct {
	TopK     int      `json:"top_k"`
	MinScore *float32 `json:"min_score"`
}

type EmbedderConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	BatchSize     int         `json:"batch_size"`
	Timeout       int64       `json:"timeout"`
	LruSize       int         `json:"lru_size"`
	LruTTLSeconds int64       `json:"lru_ttl_seconds"`
	Data          interface{} `json:"data"`
}

type GeneratorConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Timeout  int64       `json:"timeout"`
	Data     interface{} `json:"data"`
}

type PromptConfig struct {
	Subject  string `json:"subject"`
	Fallback string `json:"fallback"`
}

type EmbeddingCacheConfig struct {
	Type        string `json:"type"`
	DSN         string `json:"dsn"`
	MaxAgeDays  int    `json:"max_age_days"`
	CleanupSpec string `json:"cleanup_spec"`
}

func (c EmbeddingCacheConfig) Enabled() bool {
	return c.Type != ""
}

type HTTPConfig struct {
	CORSAllowOrigins []string `json:"cors_allow_origins"`
	RateLimitRPS     float64  `json:"rate_limit_rps"`
	RateLimitBurst   int      `json:"rate_limit_burst"`
	Gzip             bool     `json:"gzip"`
	IncludeSources   bool     `json:"include_sources"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %w", appErr.ErrConfiguration, err)
	}
	cfg, err := Parse(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw in the format named by ext (".json", ".yaml", ".yml",
// ".toml"), applies defaults and validates the result.
func Parse(raw []byte, ext string) (*Config, error) {
	data, err := toJSON(raw, ext)
	if err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", appErr.ErrConfiguration, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", appErr.ErrConfiguration, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func toJSON(raw []byte, ext string) ([]byte, error) {
	var generic map[string]interface{}
	switch strings.ToLower(ext) {
	case "", ".json":
		return raw, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	return json.Marshal(generic)
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Source.Type == "" {
		c.Source.Type = "local"
	}
	if c.Source.Format == "" {
		c.Source.Format = "auto"
	}
	if c.Chunker.ChunkSize == 0 {
		c.Chunker.ChunkSize = defaultChunkSize
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = defaultTopK
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = defaultEmbedProvider
	}
	if c.Embedder.Model == "" {
		c.Embedder.Model = defaultEmbedModel
	}
	if c.Embedder.BatchSize == 0 {
		c.Embedder.BatchSize = defaultEmbedBatchSize
	}
	if c.Embedder.Timeout == 0 {
		c.Embedder.Timeout = defaultEmbedTimeout
	}
	if c.Embedder.LruSize > 0 && c.Embedder.LruTTLSeconds == 0 {
		c.Embedder.LruTTLSeconds = defaultLruTTLSeconds
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = defaultGenProvider
	}
	if c.Generator.Model == "" {
		c.Generator.Model = defaultGenModel
	}
	if c.Generator.Timeout == 0 {
		c.Generator.Timeout = defaultGenTimeout
	}
	if c.Prompt.Fallback == "" {
		c.Prompt.Fallback = DefaultFallback
	}
	if c.EmbeddingCache.MaxAgeDays == 0 {
		c.EmbeddingCache.MaxAgeDays = defaultCacheMaxAgeDays
	}
	if c.EmbeddingCache.CleanupSpec == "" {
		c.EmbeddingCache.CleanupSpec = defaultCleanupSpec
	}
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return configErr("port out of range: %d", c.Port)
	}
	if strings.TrimSpace(c.Source.Path) == "" {
		return configErr("source.path is required")
	}
	switch c.Source.Format {
	case "auto", "text", "markdown":
	default:
		return configErr("source.format must be auto, text or markdown")
	}
	size, overlap := c.Chunker.ChunkSize, c.Chunker.Overlap()
	if size <= 0 {
		return configErr("chunker.chunk_size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return configErr("chunker.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Retrieval.TopK <= 0 {
		return configErr("retrieval.top_k must be positive")
	}
	if m := c.Retrieval.MinScore; m != nil && (*m < -1 || *m > 1) {
		return configErr("retrieval.min_score must be in [-1, 1]")
	}
	if c.Embedder.BatchSize < 0 || c.Embedder.Timeout < 0 || c.Generator.Timeout < 0 {
		return configErr("batch_size and timeout must not be negative")
	}
	switch c.EmbeddingCache.Type {
	case "":
	case "sqlite", "postgres":
		if c.EmbeddingCache.DSN == "" {
			return configErr("embedding_cache.dsn is required for %s", c.EmbeddingCache.Type)
		}
	default:
		return configErr("embedding_cache.type must be sqlite or postgres")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return configErr("http rate limit must not be negative")
	}
	return nil
}

func configErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", appErr.ErrConfiguration, fmt.Sprintf(format, args...))
}
