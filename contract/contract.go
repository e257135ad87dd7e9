//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"io"
	"time"
)

// Fields holds the content of a document.
// Supported values are string, bool, numbers, time.Time, []string, []any,
// map[string]any, nil and ServerTimestamp.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp is replaced by the commit time when the document is written.
var ServerTimestamp = serverTimestamp{}

// Document is a snapshot of a stored document.
type Document struct {
	ID     string
	Path   string
	Fields Fields
}

// String returns the field as a string, or "" when absent or of another type.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Time returns nil when the field has no timestamp yet.
func (d Document) Time(field string) *time.Time {
	t, ok := d.Fields[field].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

func (d Document) Strings(field string) []string {
	switch values := d.Fields[field].(type) {
	case []string:
		return values
	case []any:
		out := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (d Document) Exists(field string) bool {
	_, ok := d.Fields[field]
	return ok
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Order describes how a collection is sorted. A zero Limit means no limit.
type Order struct {
	Field     string
	Direction Direction
	Limit     int
}

// Unsubscribe stops further snapshot deliveries.
type Unsubscribe func()

// DocumentStore is a hierarchical document database.
// Paths alternate collection and document segments: "users/u1",
// "private-chats/u1_u2/messages/m1".
type DocumentStore interface {
	Get(ctx context.Context, path string) (Document, bool, error)
	Set(ctx context.Context, path string, fields Fields) error
	Create(ctx context.Context, path string, fields Fields) error
	Update(ctx context.Context, path string, fields Fields) error
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Query(ctx context.Context, collection string, order Order) ([]Document, error)
	Subscribe(ctx context.Context, collection string, order Order, onChange func([]Document)) (Unsubscribe, error)
}

// BlobStorage stores files and hands out public URLs for them.
type BlobStorage interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	URL(ctx context.Context, path string) (string, error)
}
