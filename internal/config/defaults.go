package config

import "time"

const (
	DefaultCollection       = "faq_collection"
	DefaultVectorThreshold  = 0.8
	DefaultRelevanceThresh  = 0.5
	DefaultFeedbackSave     = 0.85
	DefaultFeedbackDelete   = 0.90
	DefaultMaxDistance      = 4.0 // squared L2 span of unit vectors
	DefaultTopK             = 3
	DefaultDatabaseFileName = "faq.sqlite3"
)

// Default returns a config with every default applied. Used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8001
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/faqcache/data"
	}
	if cfg.Storage.DatabaseFile == "" {
		cfg.Storage.DatabaseFile = DefaultDatabaseFileName
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/faqcache/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Relevance.Provider == "" {
		cfg.Relevance.Provider = "overlap"
	}
	if cfg.Relevance.Endpoint == "" {
		cfg.Relevance.Endpoint = "https://api.cohere.ai/v1/rerank"
	}
	if cfg.Relevance.APIKeyEnv == "" {
		cfg.Relevance.APIKeyEnv = "COHERE_API_KEY"
	}
	if cfg.Relevance.Model == "" {
		cfg.Relevance.Model = "rerank-multilingual-v3.0"
	}
	if cfg.Relevance.Timeout == 0 {
		cfg.Relevance.Timeout = 30 * time.Second
	}
	if cfg.Cache.Collection == "" {
		cfg.Cache.Collection = DefaultCollection
	}
	if cfg.Cache.TopK == 0 {
		cfg.Cache.TopK = DefaultTopK
	}
	if cfg.Cache.MaxDistance == 0 {
		cfg.Cache.MaxDistance = DefaultMaxDistance
	}
	if cfg.Cache.ResultCacheTTL == 0 {
		cfg.Cache.ResultCacheTTL = 30 * time.Second
	}
	if cfg.Thresholds.VectorSimilarity == 0 {
		cfg.Thresholds.VectorSimilarity = DefaultVectorThreshold
	}
	if cfg.Thresholds.Relevance == 0 {
		cfg.Thresholds.Relevance = DefaultRelevanceThresh
	}
	if cfg.Thresholds.FeedbackSave == 0 {
		cfg.Thresholds.FeedbackSave = DefaultFeedbackSave
	}
	if cfg.Thresholds.FeedbackDelete == 0 {
		cfg.Thresholds.FeedbackDelete = DefaultFeedbackDelete
	}
	if cfg.Corpus.Timeout == 0 {
		cfg.Corpus.Timeout = 10 * time.Minute
	}
}
