package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *QueryRequest
		wantErr bool
	}{
		{"empty query", &QueryRequest{Query: ""}, true},
		{"whitespace query", &QueryRequest{Query: "   "}, true},
		{"valid query", &QueryRequest{Query: "hello"}, false},
		{"threshold above one", &QueryRequest{Query: "x", VectorThreshold: Float(1.2)}, true},
		{"negative relevance", &QueryRequest{Query: "x", RelevanceThreshold: Float(-0.1)}, true},
		{"boundary thresholds", &QueryRequest{Query: "x", VectorThreshold: Float(1), RelevanceThreshold: Float(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQueryRequest_ThresholdsAndCompat(t *testing.T) {
	req := &QueryRequest{Query: "  q  ", CrossEncoderCompat: Float(0.3)}
	require.NoError(t, req.Validate())
	assert.Equal(t, "q", req.Query)

	v, r := req.Thresholds(0.8, 0.5)
	assert.Equal(t, 0.8, v)
	assert.Equal(t, 0.3, r)
}

func TestFeedbackRequest_Validate(t *testing.T) {
	assert.Error(t, (&FeedbackRequest{CacheSignal: 2, Query: "q"}).Validate())
	assert.Error(t, (&FeedbackRequest{CacheSignal: 1, Query: " "}).Validate())
	assert.Error(t, (&FeedbackRequest{CacheSignal: 0, Query: "q", DeleteThreshold: Float(2)}).Validate())

	req := &FeedbackRequest{CacheSignal: 1, Query: " q ", Answer: " a "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "q", req.Query)
	assert.Equal(t, "a", req.Answer)

	s, d := req.Thresholds(0.85, 0.9)
	assert.Equal(t, 0.85, s)
	assert.Equal(t, 0.9, d)
}

func TestReconstructRequest_ValidateAcceptsExcelPath(t *testing.T) {
	req := &ReconstructRequest{ExcelPath: " /data/faq.xlsx "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "/data/faq.xlsx", req.CorpusPath)

	assert.Error(t, (&ReconstructRequest{}).Validate())
}

func TestResultConstructors(t *testing.T) {
	entry := CacheEntry{Question: "q", Answer: "a"}
	hit := Hit(entry, Confidence{VectorSimilarity: Float(0.9)})
	assert.True(t, hit.CacheHit)
	assert.Equal(t, OutcomeHit, hit.Outcome)
	assert.Equal(t, "a", hit.Answer)

	miss := Miss(ReasonRelevanceScoreTooLow, Confidence{})
	assert.False(t, miss.CacheHit)
	assert.Equal(t, OutcomeMiss, miss.Outcome)
	assert.Equal(t, ReasonRelevanceScoreTooLow, miss.Reason)
}
