// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Memory    MemoryConfig    `yaml:"memory"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the vector index, metadata sidecar,
// document registry, and keyword index.
type StorageConfig struct {
	IndexPath        string `yaml:"index_path"`
	MetaPath         string `yaml:"meta_path"`
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	UploadsDir       string `yaml:"uploads_dir"`
}

// LLMConfig holds generation and embedding model settings. BaseURL points at
// an OpenAI-compatible endpoint (e.g. Ollama's /v1). The API key is read from
// the environment, not the config file.
type LLMConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Dimensions     int     `yaml:"dimensions"`
	Temperature    float32 `yaml:"temperature"`
	TopP           float32 `yaml:"top_p"`
	TopK           int     `yaml:"top_k"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// RetrievalConfig holds retrieval and reranking settings.
type RetrievalConfig struct {
	TopK              int   `yaml:"top_k"`
	RerankEnabled     *bool `yaml:"rerank_enabled"`
	RerankConcurrency int   `yaml:"rerank_concurrency"`
}

// RerankEnabledOrDefault returns whether reranking is enabled; defaults to true when unset.
func (r *RetrievalConfig) RerankEnabledOrDefault() bool {
	if r.RerankEnabled != nil {
		return *r.RerankEnabled
	}
	return true
}

// ChunkingConfig holds chunker settings, all in characters.
type ChunkingConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars"`
	OverlapChars  int `yaml:"overlap_chars"`
	MinChunkSize  int `yaml:"min_chunk_size"`
}

// MemoryConfig holds session summarization settings.
type MemoryConfig struct {
	KeepRecent      int `yaml:"keep_recent"`
	SummaryMaxChars int `yaml:"summary_max_chars"`
}

// WatchConfig holds drop-directory ingest settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths, and validates. Returns an error if the file cannot be read or parsed,
// or if validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MetaPath = expandPath(cfg.Storage.MetaPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.UploadsDir = expandPath(cfg.Storage.UploadsDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration invariants. Chunk overlap must be strictly
// smaller than the chunk size or chunking would never advance.
func (c *Config) Validate() error {
	if c.Chunking.OverlapChars >= c.Chunking.MaxChunkChars {
		return fmt.Errorf("overlap_chars (%d) must be < max_chunk_chars (%d)",
			c.Chunking.OverlapChars, c.Chunking.MaxChunkChars)
	}
	if c.LLM.Dimensions <= 0 {
		return fmt.Errorf("llm.dimensions must be positive, got %d", c.LLM.Dimensions)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
