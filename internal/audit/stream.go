package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	id "miriesgo/pkg/domain"
)

// EventPublisher delivers one keyed record to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// StreamStore persists entries through the wrapped Store and then mirrors
// them to a topic. The database row is the source of truth: a failed
// publish is logged and never fails the append.
type StreamStore struct {
	Store
	publisher EventPublisher
	topic     string
	logger    *slog.Logger
}

func NewStreamStore(inner Store, publisher EventPublisher, topic string, logger *slog.Logger) *StreamStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamStore{Store: inner, publisher: publisher, topic: topic, logger: logger}
}

// StreamEvent is the JSON value written to the topic.
type StreamEvent struct {
	ID        int64      `json:"id"`
	UserID    *id.UserID `json:"user_id,omitempty"`
	Action    Action     `json:"action"`
	TableName string     `json:"table_name,omitempty"`
	RecordID  string     `json:"record_id,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s *StreamStore) Append(ctx context.Context, entry *Entry) error {
	if err := s.Store.Append(ctx, entry); err != nil {
		return err
	}

	value, err := json.Marshal(StreamEvent{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Action:    entry.Action,
		TableName: entry.TableName,
		RecordID:  entry.RecordID,
		Detail:    entry.Detail,
		IPAddress: entry.IPAddress,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "encode audit event", "error", err, "action", entry.Action)
		return nil
	}
	// Keyed by table so changes to one aggregate stay ordered within a partition.
	if err := s.publisher.Publish(ctx, s.topic, []byte(entry.TableName), value); err != nil {
		s.logger.WarnContext(ctx, "audit event not streamed", "error", err, "action", entry.Action)
	}
	return nil
}
