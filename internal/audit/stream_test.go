package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "miriesgo/pkg/domain"
)

type record struct {
	topic      string
	key, value []byte
}

type fakeEventPublisher struct {
	records []record
	err     error
}

func (f *fakeEventPublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record{topic: topic, key: key, value: value})
	return nil
}

func TestStreamStoreMirrorsAppends(t *testing.T) {
	ctx := context.Background()
	inner := NewInMemoryStore()
	pub := &fakeEventPublisher{}
	store := NewStreamStore(inner, pub, "miriesgo.audit", nil)

	uid := id.UserID(3)
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, &Entry{
		UserID:    &uid,
		Action:    ActionLoanUpdated,
		TableName: "loans",
		RecordID:  "17",
		UserAgent: "curl/8.5",
		CreatedAt: at,
	}))

	require.Len(t, pub.records, 1)
	rec := pub.records[0]
	assert.Equal(t, "miriesgo.audit", rec.topic)
	assert.Equal(t, "loans", string(rec.key))

	var ev StreamEvent
	require.NoError(t, json.Unmarshal(rec.value, &ev))
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, ActionLoanUpdated, ev.Action)
	assert.Equal(t, "17", ev.RecordID)
	assert.True(t, at.Equal(ev.CreatedAt))
	require.NotNil(t, ev.UserID)
	assert.Equal(t, uid, *ev.UserID)

	stored, err := store.ListByUser(ctx, uid, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestStreamStorePublishFailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	logs := &bytes.Buffer{}
	inner := NewInMemoryStore()
	store := NewStreamStore(inner, &fakeEventPublisher{err: errors.New("broker down")}, "miriesgo.audit",
		slog.New(slog.NewJSONHandler(logs, nil)))

	uid := id.UserID(5)
	require.NoError(t, store.Append(ctx, &Entry{UserID: &uid, Action: ActionLogout, TableName: "users"}))

	stored, err := inner.ListByUser(ctx, uid, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Contains(t, logs.String(), "audit event not streamed")
}
