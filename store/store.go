// Package store defines the remote document store contract consumed by the
// repositories: one-shot reads and writes, live document and query
// subscriptions, atomic multi-document batches, transactions, and
// server-side field increments.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when decoding a snapshot of a missing document.
var ErrNotFound = errors.New("store: document not found")

// Doc identifies a document inside a collection.
type Doc struct {
	Collection string
	ID         string
}

// DocSnapshot is a point-in-time materialization of a document. Fields
// holds the raw JSON encoding of each field; Exists is false when the
// document is absent.
type DocSnapshot struct {
	Doc    Doc
	Exists bool
	Fields map[string]json.RawMessage
}

// DataTo decodes the snapshot's fields into v.
func (s DocSnapshot) DataTo(v any) error {
	if !s.Exists {
		return ErrNotFound
	}
	b, err := json.Marshal(s.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// QuerySnapshot is the materialized result set of a query subscription.
type QuerySnapshot []DocSnapshot

// DataFrom converts a struct into the field map accepted by Set.
func DataFrom(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// incrementValue is the sentinel understood by Update/Set field maps.
type incrementValue struct {
	Delta int64
}

// Increment returns a field value that atomically adjusts a numeric field
// by delta when used inside Update.
func Increment(delta int64) any {
	return incrementValue{Delta: delta}
}

// IncrementDelta reports whether v is an increment sentinel and its delta.
func IncrementDelta(v any) (int64, bool) {
	inc, ok := v.(incrementValue)
	if !ok {
		return 0, false
	}
	return inc.Delta, true
}

// Filter operators supported by the store.
const (
	OpEqual = "=="
	OpIn    = "in"
)

// Direction of a query ordering.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is a single field predicate.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Order describes the single supported sort key.
type Order struct {
	Field     string
	Direction Direction
}

// Query describes a bounded query: equality and "in" filters, ordering by
// one field, and a result limit. Build with NewQuery and the chaining
// helpers; the zero limit means unbounded.
type Query struct {
	Collection string
	Filters    []Filter
	Ordering   *Order
	N          int
}

// NewQuery starts a query over the named collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where appends a field predicate. Op is OpEqual or OpIn.
func (q Query) Where(field, op string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy sets the sort field and direction.
func (q Query) OrderBy(field string, dir Direction) Query {
	q.Ordering = &Order{Field: field, Direction: dir}
	return q
}

// Limit bounds the result set to n documents.
func (q Query) Limit(n int) Query {
	q.N = n
	return q
}

// WriteBatch accumulates writes that Commit applies all-or-nothing.
type WriteBatch interface {
	Set(doc Doc, data map[string]any) WriteBatch
	Update(doc Doc, fields map[string]any) WriteBatch
	Delete(doc Doc) WriteBatch
	Commit(ctx context.Context) error
}

// Transaction provides read access plus conditional writes; the whole
// block is applied atomically and retried on contention.
type Transaction interface {
	Get(doc Doc) (DocSnapshot, error)
	Set(doc Doc, data map[string]any)
	Update(doc Doc, fields map[string]any)
	Delete(doc Doc)
}

// Client is the consumed remote store contract. Subscription channels
// deliver an initial snapshot promptly and a new snapshot on every
// matching change; they close when ctx is canceled or the listener fails
// (callers re-subscribe to recover).
type Client interface {
	Get(ctx context.Context, doc Doc) (DocSnapshot, error)
	Set(ctx context.Context, doc Doc, data map[string]any) error
	Update(ctx context.Context, doc Doc, fields map[string]any) error
	Delete(ctx context.Context, doc Doc) error
	// Add writes data under a freshly assigned id and returns it.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// NewID assigns a document id before any write.
	NewID() string

	Documents(ctx context.Context, q Query) (QuerySnapshot, error)
	Subscribe(ctx context.Context, q Query) (<-chan QuerySnapshot, error)
	SubscribeDoc(ctx context.Context, doc Doc) (<-chan DocSnapshot, error)

	Batch() WriteBatch
	RunTransaction(ctx context.Context, fn func(tx Transaction) error) error
}
