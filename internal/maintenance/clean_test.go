package maintenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAnswer(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "  Use the portal.  ", "Use the portal."},
		{"empty", "", ""},
		{"english prompt", "You are a helpful assistant.\n\nUse the portal.", "Use the portal."},
		{"japanese prompt", "あなたは社内アシスタントです。\n#回答\nポータルを使ってください。", "回答\nポータルを使ってください。"},
		{"faq header", "## FAQ回答\n\n申請は総務部へ。", "申請は総務部へ。"},
		{"fallback marker", "You are helpful. Answer: Restart it.", "Restart it."},
		{"marker without break", "You are done", "You are done"},
		{"marker not at start", "Note: You are welcome.\n\nThanks", "Note: You are welcome.\n\nThanks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAnswer(tt.in))
		})
	}
}

func TestCleanAnswers(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		[2]string{"q1", "You are a bot.\n\nReal answer"},
		[2]string{"q2", "Already clean"},
	)
	ctx := context.Background()

	res, err := f.m.CleanAnswers(ctx, coll)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Changed)

	all, err := f.store.GetAll(ctx, coll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Real answer", all[0].Answer)
	assert.Equal(t, "Already clean", all[1].Answer)

	res, err = f.m.CleanAnswers(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Changed)
}
