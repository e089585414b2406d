package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/models"
)

func TestWrite_QueryText(t *testing.T) {
	hit := models.Hit(models.CacheEntry{Question: "Where?", Answer: "Tokyo"},
		models.Confidence{VectorSimilarity: models.Float(0.91), RelevanceScore: models.Float(0.7), VectorThreshold: 0.8, RelevanceThreshold: 0.5})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, hit, OutputText))
	out := buf.String()
	assert.Contains(t, out, "HIT")
	assert.Contains(t, out, "Tokyo")
	assert.Contains(t, out, "0.9100")

	buf.Reset()
	require.NoError(t, Write(&buf, models.Miss(models.ReasonNoCandidates, models.Confidence{}), OutputText))
	assert.Contains(t, buf.String(), "MISS (no_candidates)")
	assert.Contains(t, buf.String(), "Relevance score:   -")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	stats := models.Stats{TotalEntries: 3, CollectionName: "faq"}
	require.NoError(t, Write(&buf, stats, OutputJSON))

	var decoded models.Stats
	require.NoError(t, json.NewDecoder(&buf).Decode(&decoded))
	assert.Equal(t, stats, decoded)
}

func TestWrite_HistoryAndFallback(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []journal.Event{}, OutputText))
	assert.Equal(t, "No history\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, []journal.Event{{Action: "save", Outcome: "saved", Collection: "faq", Question: "q", Time: time.Now()}}, OutputText))
	assert.Contains(t, buf.String(), "save")
	assert.Contains(t, buf.String(), "saved")

	buf.Reset()
	require.NoError(t, Write(&buf, map[string]int{"a": 1}, OutputText))
	assert.Contains(t, buf.String(), "\"a\": 1")
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, OutputJSON, f)
	f, err = ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputText, f)
	_, err = ParseOutputFormat("xml")
	assert.Error(t, err)
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "a b c", TruncateWords("a b c", 3))
	assert.Equal(t, "a b...", TruncateWords("a b c d", 2))
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/query":
			var req models.QueryRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_ = json.NewEncoder(w).Encode(models.Hit(models.CacheEntry{Question: req.Query, Answer: "A"}, models.Confidence{}))
		case "/api/v1/save":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"answer cannot be empty","code":"request.validate.invalid_input"}`))
		case "/api/v1/history":
			assert.Equal(t, "limit=5", r.URL.RawQuery)
			_, _ = w.Write([]byte(`{"events":[{"action":"reset","outcome":"success"}]}`))
		case "/api/v1/feedback":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"message":"boom","action_taken":"error","cache_signal":0}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not found"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 5*time.Second)
	ctx := context.Background()

	res, err := c.Query(ctx, models.QueryRequest{Query: "Q"})
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Equal(t, "Q", res.Question)

	_, err = c.Save(ctx, models.SaveRequest{Question: "q"})
	require.Error(t, err)
	assert.True(t, cacheerr.IsInvalidInput(err))

	events, err := c.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "reset", events[0].Action)

	fb, err := c.Feedback(ctx, models.FeedbackRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionError, fb.ActionTaken)

	_, err = c.Stats(ctx)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"))
}
