// Package models defines core data structures for cache entries, queries, and maintenance results.
package models

import "time"

// CacheEntry is the unit of storage: one question/answer pair and the vector of its question.
// Entries are immutable once stored.
type CacheEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Vector    []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Candidate is produced during a query and never persisted.
type Candidate struct {
	Entry            CacheEntry
	VectorDistance   float64
	VectorSimilarity float64
	RelevanceScore   *float64
}

// Collection describes a stored collection.
type Collection struct {
	Name              string    `json:"name"`
	Dimension         int       `json:"dimension"`
	VectorizerVersion string    `json:"vectorizer_version"`
	CreatedAt         time.Time `json:"created_at"`
}

// StoreHealth is derived from the backing store, never persisted.
type StoreHealth struct {
	FileExists        bool   `json:"file_exists"`
	CollectionExists  bool   `json:"collection_exists"`
	ConfigValid       bool   `json:"config_valid"`
	Dimension         int    `json:"dimension"`
	VectorizerVersion string `json:"vectorizer_version,omitempty"`
	EntryCount        int    `json:"entry_count"`
	MismatchedEntries int    `json:"mismatched_entries"`
	DiskUsageBytes    int64  `json:"disk_usage_bytes"`
}

// Stats is the summary returned by the stats operation.
type Stats struct {
	TotalEntries   int    `json:"total_entries"`
	CollectionName string `json:"collection_name"`
	DatabasePath   string `json:"database_path,omitempty"`
}

// ExportItem is one row of the debug export.
type ExportItem struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	AnswerPreview string `json:"answer_preview"`
}

// ExportResult is the debug dump of a collection.
type ExportResult struct {
	Count int          `json:"count"`
	Items []ExportItem `json:"items"`
}
