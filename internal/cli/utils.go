// Package cli provides output formatting and the HTTP client used by the faqcache CLI.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/models"
	"github.com/hyperjump/faqcache/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// Write writes v to w. JSON output is indented; text output uses the formatter for v's
// type and falls back to JSON for anything else.
func Write(w io.Writer, v any, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, v)
	}
	switch r := v.(type) {
	case models.QueryResult:
		writeQueryText(w, r)
	case models.SaveResult:
		writeSaveText(w, r)
	case models.DeleteResult:
		writeDeleteText(w, r)
	case models.FeedbackResult:
		writeFeedbackText(w, r)
	case models.ReconstructResult:
		writeReconstructText(w, r)
	case models.Stats:
		fmt.Fprintf(w, "Collection: %s\nEntries:    %d\n", r.CollectionName, r.TotalEntries)
		if r.DatabasePath != "" {
			fmt.Fprintf(w, "Database:   %s\n", r.DatabasePath)
		}
	case models.ExportResult:
		writeExportText(w, r)
	case []journal.Event:
		writeHistoryText(w, r)
	default:
		return writeJSON(w, v)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeQueryText(w io.Writer, r models.QueryResult) {
	c := r.Confidence
	switch r.Outcome {
	case models.OutcomeHit:
		fmt.Fprintln(w, "HIT")
		fmt.Fprintf(w, "Question: %s\n", r.Question)
		fmt.Fprintf(w, "\n%s\n\n", r.Answer)
	case models.OutcomeMiss:
		fmt.Fprintf(w, "MISS (%s)\n", r.Reason)
	default:
		fmt.Fprintf(w, "ERROR: %s\n", r.Message)
		return
	}
	fmt.Fprintf(w, "Vector similarity: %s (threshold %.2f)\n", score(c.VectorSimilarity), c.VectorThreshold)
	fmt.Fprintf(w, "Relevance score:   %s (threshold %.2f)\n", score(c.RelevanceScore), c.RelevanceThreshold)
}

func writeSaveText(w io.Writer, r models.SaveResult) {
	fmt.Fprintln(w, r.Message)
	if r.EntryID != "" {
		fmt.Fprintf(w, "ID: %s\n", r.EntryID)
	}
	if r.Existing != nil {
		fmt.Fprintf(w, "Existing: %s\n", r.Existing.Question)
		fmt.Fprintf(w, "          %s\n", utils.Truncate(r.Existing.Answer, 100))
	}
}

func writeDeleteText(w io.Writer, r models.DeleteResult) {
	fmt.Fprintln(w, r.Message)
	for _, item := range r.DeletedItems {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Q: %s\n", item.Question)
		fmt.Fprintf(w, "A: %s\n", item.Answer)
		if item.Similarity != nil {
			fmt.Fprintf(w, "Similarity: %.4f\n", *item.Similarity)
		}
	}
	fmt.Fprintf(w, "Remaining: %d\n", r.RemainingCount)
}

func writeFeedbackText(w io.Writer, r models.FeedbackResult) {
	fmt.Fprintf(w, "Action: %s\n", r.ActionTaken)
	fmt.Fprintln(w, r.Message)
	if r.MatchedQuestion != "" {
		fmt.Fprintf(w, "Matched: %s (%s)\n", r.MatchedQuestion, score(r.SimilarityScore))
	}
}

func writeReconstructText(w io.Writer, r models.ReconstructResult) {
	fmt.Fprintln(w, r.Message)
	if r.Skipped {
		return
	}
	fmt.Fprintf(w, "Collection: %s\n", r.CollectionName)
	fmt.Fprintf(w, "Corpus:     %s\n", r.CorpusPath)
	fmt.Fprintf(w, "Items:      %d\n", r.ItemsProcessed)
	if r.BackupCreated != "" {
		fmt.Fprintf(w, "Backup:     %s\n", r.BackupCreated)
	}
	if r.Duration > 0 {
		fmt.Fprintf(w, "Duration:   %s\n", r.Duration)
	}
}

func writeExportText(w io.Writer, r models.ExportResult) {
	fmt.Fprintf(w, "%d entries\n\n", r.Count)
	for _, item := range r.Items {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%s] %s\n", item.ID, item.Question)
		fmt.Fprintf(w, "%s\n", TruncateWords(item.AnswerPreview, 40))
	}
}

func writeHistoryText(w io.Writer, events []journal.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No history")
		return
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-13s %-10s %s", ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Action, ev.Outcome, ev.Collection)
		if ev.Question != "" {
			line += "  " + utils.Truncate(ev.Question, 60)
		}
		fmt.Fprintln(w, line)
	}
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
