package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostDraft_Normalize(t *testing.T) {
	draft, err := PostDraft{
		Title: "Demo",
		Body:  "Listen",
		Media: []Media{{URL: "https://cdn.example/track.mp3", Type: MediaAudio}},
		Tags:  []string{" afrobeats ", "", "afrobeats", "live"},
	}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"afrobeats", "live"}, draft.Tags)
	assert.Len(t, draft.Media, 1)

	_, err = PostDraft{Title: "t", Body: "b", Media: []Media{{URL: "x", Type: "gif"}}}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidMedia)

	_, err = PostDraft{Title: "t", Body: "b", Media: []Media{{Type: MediaImage}}}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidMedia)

	_, err = PostDraft{Title: " ", Body: "b"}.Normalize()
	assert.ErrorIs(t, err, ErrEmptyPost)
}

func TestPost_HasPendingTips(t *testing.T) {
	post, _, reply := newTreePost(t)
	assert.False(t, post.HasPendingTips())

	require.NoError(t, reply.AddTip(Tip{FromUserID: "fan", Amount: decimal.NewFromInt(1)}))
	assert.True(t, post.HasPendingTips())

	reply.MarkPaidOut()
	assert.False(t, post.HasPendingTips())
}
