package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 7 * 24 * time.Hour

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestPost() *Post {
	return &Post{
		ID:         "post-1",
		AuthorID:   "owner",
		AuthorName: "owner_name",
		Title:      "Title",
		Body:       "Body",
		Escrow:     NewEscrow(now, window),
		CreatedAt:  now,
	}
}

func TestPlaceComment_TopLevel(t *testing.T) {
	post := newTestPost()

	p, err := PlaceComment(post, Author{ID: "alice", Name: "alice"}, "First!", "", now, window)
	require.NoError(t, err)

	require.Len(t, post.Comments, 1)
	assert.Nil(t, p.Reply)
	assert.Equal(t, p.Comment, post.Comments[0])
	assert.Equal(t, "owner", p.NotifyUserID)
	assert.Equal(t, now.Add(window), p.Comment.PayoutAt)
	assert.False(t, p.Comment.IsPaidOut)
	assert.Empty(t, p.Comment.Children)
}

func TestPlaceComment_OwnerDoesNotNotifySelf(t *testing.T) {
	post := newTestPost()

	p, err := PlaceComment(post, Author{ID: "owner", Name: "owner_name"}, "thanks for reading", "", now, window)
	require.NoError(t, err)
	assert.Empty(t, p.NotifyUserID)
}

func TestPlaceComment_ReplyToComment(t *testing.T) {
	post := newTestPost()
	top, err := PlaceComment(post, Author{ID: "alice", Name: "alice"}, "Parent", "", now, window)
	require.NoError(t, err)

	p, err := PlaceComment(post, Author{ID: "bob", Name: "bob"}, "Child", top.Comment.ID, now, window)
	require.NoError(t, err)

	require.Len(t, post.Comments, 1)
	require.Len(t, post.Comments[0].Children, 1)
	assert.Equal(t, p.Reply, post.Comments[0].Children[0])
	assert.Equal(t, "alice", p.Reply.ParentAuthor)
	assert.Equal(t, top.Comment.ID, p.Reply.ReplyTo)
	assert.Equal(t, "alice", p.NotifyUserID)
}

func TestPlaceComment_ReplyToReplyStaysAtDepthTwo(t *testing.T) {
	post := newTestPost()
	top, err := PlaceComment(post, Author{ID: "alice", Name: "alice"}, "Parent", "", now, window)
	require.NoError(t, err)
	first, err := PlaceComment(post, Author{ID: "bob", Name: "bob"}, "Reply", top.Comment.ID, now, window)
	require.NoError(t, err)

	// Ответ на ответ становится соседом внутри того же комментария.
	second, err := PlaceComment(post, Author{ID: "carol", Name: "carol"}, "Reply to reply", first.Reply.ID, now, window)
	require.NoError(t, err)

	require.Len(t, post.Comments, 1)
	children := post.Comments[0].Children
	require.Len(t, children, 2)
	assert.Equal(t, first.Reply.ID, children[0].ID)
	assert.Equal(t, second.Reply.ID, children[1].ID)
	assert.Equal(t, top.Comment, second.Comment)
	assert.Equal(t, first.Reply.ID, second.Reply.ReplyTo)
	assert.Equal(t, "bob", second.Reply.ParentAuthor)
	assert.Equal(t, "bob", second.NotifyUserID)
}

func TestPlaceComment_ReplyToOwnReplySuppressesNotification(t *testing.T) {
	post := newTestPost()
	top, err := PlaceComment(post, Author{ID: "alice", Name: "alice"}, "Parent", "", now, window)
	require.NoError(t, err)

	p, err := PlaceComment(post, Author{ID: "alice", Name: "alice"}, "Edit: typo", top.Comment.ID, now, window)
	require.NoError(t, err)
	assert.Empty(t, p.NotifyUserID)
}

func TestPlaceComment_UnknownReplyTo(t *testing.T) {
	post := newTestPost()
	_, err := PlaceComment(post, Author{ID: "alice", Name: "alice"}, "Parent", "", now, window)
	require.NoError(t, err)

	_, err = PlaceComment(post, Author{ID: "bob", Name: "bob"}, "Lost", "missing-id", now, window)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, post.Comments[0].Children)
}

func TestPlaceComment_InvalidContent(t *testing.T) {
	post := newTestPost()

	_, err := PlaceComment(post, Author{ID: "alice"}, "   ", "", now, window)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "comment content cannot be empty", err.Error())

	_, err = PlaceComment(post, Author{ID: "alice"}, strings.Repeat("a", MaxContentLength+1), "", now, window)
	require.ErrorIs(t, err, ErrContentTooLong)

	assert.Empty(t, post.Comments)
}
