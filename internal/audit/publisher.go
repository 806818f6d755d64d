package audit

import (
	"context"
	"log/slog"
	"sync"

	"miriesgo/pkg/platform/privacy"
	"miriesgo/pkg/requestcontext"
)

// Publisher records audit entries. Every entry is logged with
// log_type=audit and persisted through the store, synchronously by default
// or from a background goroutine when WithAsyncBuffer is set.
type Publisher struct {
	store  Store
	logger *slog.Logger
	events chan *Entry
	wg     sync.WaitGroup
	async  bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer persists entries in the background. A full buffer drops
// the entry after logging it, so audit never blocks a request.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan *Entry, size)
			p.async = true
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for entry := range p.events {
		if err := p.store.Append(context.Background(), entry); err != nil {
			p.logger.Error("failed to persist audit entry",
				"error", err,
				"action", entry.Action,
			)
		}
	}
}

// Close drains pending entries. Emit must not be called afterwards.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit fills the actor, client metadata and timestamp from ctx when the
// entry leaves them empty, then logs and stores it.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	if entry.UserID == nil {
		if uid := requestcontext.UserID(ctx); !uid.IsNil() {
			entry.UserID = &uid
		}
	}
	if entry.IPAddress == "" {
		entry.IPAddress = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = privacy.DeviceLabel(requestcontext.UserAgent(ctx))
	}

	attrs := []any{
		"log_type", "audit",
		"action", entry.Action,
		"table", entry.TableName,
		"record_id", entry.RecordID,
		"ip_prefix", privacy.AnonymizeIP(entry.IPAddress),
		"device", entry.UserAgent,
		"request_id", requestcontext.RequestID(ctx),
	}
	if entry.UserID != nil {
		attrs = append(attrs, "user_id", entry.UserID.String())
	}
	p.logger.InfoContext(ctx, string(entry.Action), attrs...)

	if p.async {
		select {
		case p.events <- &entry:
		default:
			p.logger.WarnContext(ctx, "audit buffer full, entry dropped", "action", entry.Action)
		}
		return nil
	}
	return p.store.Append(ctx, &entry)
}
