package models

import (
	"cmp"
	"slices"
	"time"

	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
)

// HistoryKind is the closed set of contact channels tracked per client.
type HistoryKind string

const (
	KindAddress HistoryKind = "address"
	KindPhone   HistoryKind = "phone"
	KindEmail   HistoryKind = "email"
)

// Kinds lists every history kind in report order.
var Kinds = []HistoryKind{KindAddress, KindPhone, KindEmail}

func ParseHistoryKind(s string) (HistoryKind, error) {
	k := HistoryKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid history kind: "+s)
	}
	return k, nil
}

func (k HistoryKind) IsValid() bool {
	switch k {
	case KindAddress, KindPhone, KindEmail:
		return true
	}
	return false
}

func (k HistoryKind) String() string { return string(k) }

// HistoryEntry is one observed contact value. Entries are append-only.
type HistoryEntry struct {
	ID         int64
	ClientID   id.ClientID
	Kind       HistoryKind
	Value      string
	RecordedAt time.Time
}

type Flag struct {
	ID       int64
	ClientID id.ClientID
	Tag      string
}

// Client is the identity aggregate: its contact history and flags are
// owned by it and loaded with it.
type Client struct {
	ID                 id.ClientID
	NationalIdentifier string
	FullName           string
	BirthDate          *time.Time
	History            []HistoryEntry
	Flags              []Flag
	CreatedAt          time.Time
}

// CurrentValueOf returns the most recently recorded value of kind. Entries
// recorded at the same instant resolve to the one inserted last.
func CurrentValueOf(c *Client, kind HistoryKind) (string, bool) {
	if c == nil {
		return "", false
	}
	var (
		best  *HistoryEntry
		found bool
	)
	for i := range c.History {
		e := &c.History[i]
		if e.Kind != kind {
			continue
		}
		if !found || newer(e, best) {
			best = e
			found = true
		}
	}
	if !found {
		return "", false
	}
	return best.Value, true
}

func newer(a, b *HistoryEntry) bool {
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.After(b.RecordedAt)
	}
	return a.ID > b.ID
}

// HistoryOf returns the entries of kind, newest first.
func HistoryOf(c *Client, kind HistoryKind) []HistoryEntry {
	out := make([]HistoryEntry, 0)
	for _, e := range c.History {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b HistoryEntry) int {
		if c := b.RecordedAt.Compare(a.RecordedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// Tags returns the client's flag tags in stored order.
func (c *Client) Tags() []string {
	out := make([]string, 0, len(c.Flags))
	for _, f := range c.Flags {
		out = append(out, f.Tag)
	}
	return out
}

// UpdatePayload is the full desired state submitted by an operator.
type UpdatePayload struct {
	FullName string
	Address  string
	Phone    string
	Email    string
	Flags    []string
}

// ContactValue returns the payload value for kind.
func (p UpdatePayload) ContactValue(kind HistoryKind) string {
	switch kind {
	case KindAddress:
		return p.Address
	case KindPhone:
		return p.Phone
	case KindEmail:
		return p.Email
	}
	return ""
}

// NewClient is the input for creating a client during imports and seeding.
type NewClient struct {
	NationalIdentifier string
	FullName           string
	BirthDate          *time.Time
}
