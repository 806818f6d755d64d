package audit

import (
	"context"

	id "miriesgo/pkg/domain"
)

type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*Entry, error)
}
