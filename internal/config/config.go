// Package config provides configuration loading and structs for the faqcache server.
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

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Relevance  RelevanceConfig  `yaml:"relevance"`
	Cache      CacheConfig      `yaml:"cache"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Corpus     CorpusConfig     `yaml:"corpus"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds paths for the vector store and the maintenance journal.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabaseFile string `yaml:"database_file"`
	JournalPath  string `yaml:"journal_path"`
	HotIndex     *bool  `yaml:"hot_index"`    // in-memory index for queries; false scans in SQL
	LegacyCheck  *bool  `yaml:"legacy_check"` // quarantine a store left in the legacy shape on open
}

// HotIndexOrDefault reports whether queries use the in-memory index; defaults to true.
func (s StorageConfig) HotIndexOrDefault() bool {
	if s.HotIndex != nil {
		return *s.HotIndex
	}
	return true
}

// LegacyCheckOrDefault reports whether the store is scanned for the legacy shape on open; defaults to true.
func (s StorageConfig) LegacyCheckOrDefault() bool {
	if s.LegacyCheck != nil {
		return *s.LegacyCheck
	}
	return true
}

// DatabasePath is the full path of the backing store file.
func (s StorageConfig) DatabasePath() string {
	return filepath.Join(s.DataDir, s.DatabaseFile)
}

// JournalFile is the journal path, defaulting to journal.db inside DataDir.
func (s StorageConfig) JournalFile() string {
	if s.JournalPath != "" {
		return s.JournalPath
	}
	return filepath.Join(s.DataDir, "journal.db")
}

// EmbeddingConfig holds vectorizer settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // onnx | mock
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
}

// RelevanceConfig holds relevance scorer settings.
type RelevanceConfig struct {
	Provider  string        `yaml:"provider"` // overlap | http | disabled
	Endpoint  string        `yaml:"endpoint"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig holds retrieval settings for the active collection.
type CacheConfig struct {
	Collection     string        `yaml:"collection"`
	TopK           int           `yaml:"top_k"`
	MaxDistance    float64       `yaml:"max_distance"`
	ResultCacheTTL time.Duration `yaml:"result_cache_ttl"`
}

// ThresholdsConfig holds the default thresholds used when a request omits them.
type ThresholdsConfig struct {
	VectorSimilarity float64 `yaml:"vector_similarity"`
	Relevance        float64 `yaml:"relevance"`
	FeedbackSave     float64 `yaml:"feedback_save"`
	FeedbackDelete   float64 `yaml:"feedback_delete"`
}

// CorpusConfig holds settings for the reconstruction source.
type CorpusConfig struct {
	Path             string        `yaml:"path"`
	Watch            bool          `yaml:"watch"`
	ReconstructOnRun bool          `yaml:"reconstruct_on_start"`
	BackupExisting   *bool         `yaml:"backup_existing"`
	Timeout          time.Duration `yaml:"timeout"`
}

// BackupOrDefault returns whether to back up before reconstruction; defaults to true when unset.
func (c *CorpusConfig) BackupOrDefault() bool {
	if c.BackupExisting != nil {
		return *c.BackupExisting
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. A .env file in the working directory is loaded first
// if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.JournalPath = expandPath(cfg.Storage.JournalPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Corpus.Path != "" {
		cfg.Corpus.Path = expandPath(cfg.Corpus.Path, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks value ranges that defaults cannot fix.
func (c *Config) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"thresholds.vector_similarity": c.Thresholds.VectorSimilarity,
		"thresholds.relevance":         c.Thresholds.Relevance,
		"thresholds.feedback_save":     c.Thresholds.FeedbackSave,
		"thresholds.feedback_delete":   c.Thresholds.FeedbackDelete,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive"))
	}
	if c.Cache.TopK < 1 {
		errs = append(errs, fmt.Errorf("cache.top_k must be at least 1"))
	}
	if c.Cache.MaxDistance <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_distance must be positive"))
	}
	switch c.Embedding.Provider {
	case "onnx", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	switch c.Relevance.Provider {
	case "overlap", "http", "disabled":
	default:
		errs = append(errs, fmt.Errorf("unknown relevance.provider %q", c.Relevance.Provider))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overrides config values from the environment. Names without the
// FAQCACHE_ prefix are kept for compatibility with existing deployments.
func applyEnv(c *Config) {
	applyInt("FAQ_CACHE_PORT", &c.Server.Port)
	applyInt("FAQCACHE_PORT", &c.Server.Port)
	applyString("FAQCACHE_HOST", &c.Server.Host)
	applyString("FAQCACHE_DATA_DIR", &c.Storage.DataDir)
	applyString("FAQCACHE_COLLECTION", &c.Cache.Collection)
	applyInt("FAQCACHE_TOP_K", &c.Cache.TopK)
	applyString("FAQCACHE_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	applyString("FAQCACHE_MODEL_PATH", &c.Embedding.ModelPath)
	applyString("FAQCACHE_RELEVANCE_PROVIDER", &c.Relevance.Provider)

	applyFloat64("VECTOR_SIMILARITY_THRESHOLD", &c.Thresholds.VectorSimilarity)
	applyFloat64("CROSS_ENCODER_THRESHOLD", &c.Thresholds.Relevance)
	applyFloat64("FEEDBACK_SAVE_THRESHOLD", &c.Thresholds.FeedbackSave)
	applyFloat64("FEEDBACK_DELETE_THRESHOLD", &c.Thresholds.FeedbackDelete)

	applyString("FAQ_EXCEL_PATH", &c.Corpus.Path)
	applyString("FAQCACHE_CORPUS_PATH", &c.Corpus.Path)

	// COMPUTE_EXPENSIVE_METRICS=0 turns relevance scoring off entirely.
	if v := os.Getenv("COMPUTE_EXPENSIVE_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && !b {
			c.Relevance.Provider = "disabled"
		}
	}
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
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
