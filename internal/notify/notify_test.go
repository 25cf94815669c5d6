package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_RecordsNotification(t *testing.T) {
	rec := &Recorder{}
	Send(context.Background(), rec, slog.Default(), Notification{UserID: "u1", Type: TypeComment, PostID: "p1"})

	items := rec.All()
	require.Len(t, items, 1)
	assert.Equal(t, TypeComment, items[0].Type)
	assert.False(t, items[0].CreatedAt.IsZero())
}

func TestSend_SkipsEmptyRecipient(t *testing.T) {
	rec := &Recorder{}
	Send(context.Background(), rec, slog.Default(), Notification{Type: TypeComment})
	assert.Empty(t, rec.All())
}

func TestSend_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := &Recorder{Err: errors.New("boom")}

	Send(context.Background(), rec, logger, Notification{UserID: "u1", Type: TypePayout})

	assert.Empty(t, rec.All())
	assert.Contains(t, buf.String(), "failed to create notification")
	assert.Contains(t, buf.String(), "boom")
}
