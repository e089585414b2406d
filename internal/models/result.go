package models

import (
	"fmt"
	"strings"
	"time"
)

// SaveRequest admits a new question/answer pair.
type SaveRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Validate trims both fields and rejects empty ones.
func (r *SaveRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	r.Answer = strings.TrimSpace(r.Answer)
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.Answer == "" {
		return fmt.Errorf("answer cannot be empty")
	}
	return nil
}

// ExistingEntry is the stored entry that made a save a duplicate.
type ExistingEntry struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// SaveResult reports an admission. A duplicate is a successful outcome, not an error.
type SaveResult struct {
	Success           bool               `json:"success"`
	Message           string             `json:"message"`
	EntryID           string             `json:"faq_id,omitempty"`
	DuplicateDetected bool               `json:"duplicate_detected"`
	SimilarityScore   *float64           `json:"similarity_score,omitempty"`
	Existing          *ExistingEntry     `json:"existing_faq,omitempty"`
	SimilarityScores  map[string]float64 `json:"similarity_scores,omitempty"`
}

// DeleteRequest evicts entries matching a question.
type DeleteRequest struct {
	Question string `json:"question"`
}

// Validate trims the question and rejects an empty one.
func (r *DeleteRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

// DeletedItem is a preview of an evicted entry.
type DeletedItem struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// DeleteResult reports an eviction. NoMatch is a normal outcome with Success false.
type DeleteResult struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	NoMatch        bool          `json:"no_match"`
	DeletedCount   int           `json:"deleted_count"`
	RemainingCount int           `json:"remaining_count"`
	DeletedItems   []DeletedItem `json:"deleted_items"`
	SearchCriteria string        `json:"search_criteria"`
}

// Feedback actions.
type Action string

const (
	ActionSaved    Action = "saved"
	ActionDeleted  Action = "deleted"
	ActionNoAction Action = "no_action"
	ActionError    Action = "error"
)

// FeedbackRequest converts an approval signal into a save or delete.
type FeedbackRequest struct {
	CacheSignal     int      `json:"cache_signal"`
	Query           string   `json:"query"`
	Answer          string   `json:"answer,omitempty"`
	SaveThreshold   *float64 `json:"save_threshold,omitempty"`
	DeleteThreshold *float64 `json:"delete_threshold,omitempty"`
}

// Validate checks the signal and trims text fields.
func (r *FeedbackRequest) Validate() error {
	if r.CacheSignal != 0 && r.CacheSignal != 1 {
		return fmt.Errorf("cache_signal must be 0 or 1")
	}
	r.Query = strings.TrimSpace(r.Query)
	r.Answer = strings.TrimSpace(r.Answer)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if err := checkUnit("save_threshold", r.SaveThreshold); err != nil {
		return err
	}
	return checkUnit("delete_threshold", r.DeleteThreshold)
}

// Thresholds resolves the request thresholds against defaults.
func (r *FeedbackRequest) Thresholds(defSave, defDelete float64) (float64, float64) {
	s, d := defSave, defDelete
	if r.SaveThreshold != nil {
		s = *r.SaveThreshold
	}
	if r.DeleteThreshold != nil {
		d = *r.DeleteThreshold
	}
	return s, d
}

// FeedbackResult reports the action taken for a feedback signal.
type FeedbackResult struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	ActionTaken     Action         `json:"action_taken"`
	CacheSignal     int            `json:"cache_signal"`
	SimilarFound    bool           `json:"similar_found"`
	SimilarityScore *float64       `json:"similarity_score,omitempty"`
	MatchedQuestion string         `json:"matched_question,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

// Match is a located stored entry with the score that selected it.
type Match struct {
	Entry CacheEntry
	Score float64
}

// ReconstructRequest rebuilds a collection from a corpus file.
type ReconstructRequest struct {
	CorpusPath     string `json:"corpus_path"`
	ExcelPath      string `json:"excel_path,omitempty"` // older clients
	CollectionName string `json:"collection_name"`
	BackupExisting *bool  `json:"backup_existing,omitempty"`
}

// Validate trims the corpus path and rejects an empty one.
func (r *ReconstructRequest) Validate() error {
	if r.CorpusPath == "" {
		r.CorpusPath = r.ExcelPath
	}
	r.CorpusPath = strings.TrimSpace(r.CorpusPath)
	r.CollectionName = strings.TrimSpace(r.CollectionName)
	if r.CorpusPath == "" {
		return fmt.Errorf("corpus_path cannot be empty")
	}
	return nil
}

// ReconstructResult reports a reconstruction.
type ReconstructResult struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	ItemsProcessed int           `json:"items_processed"`
	CollectionName string        `json:"collection_name"`
	CorpusPath     string        `json:"corpus_path"`
	BackupCreated  string        `json:"backup_created,omitempty"`
	Skipped        bool          `json:"skipped,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// ResetResult reports a collection reset.
type ResetResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	CollectionName string `json:"collection_name"`
}

// CleanAnswersResult reports an answer sanitization pass.
type CleanAnswersResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Count         int    `json:"count"`
	Changed       int    `json:"changed"`
	BackupCreated string `json:"backup_created,omitempty"`
}
