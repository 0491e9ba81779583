// Package redisstore implements the store contract on Redis: each document
// is a hash whose field values are JSON-encoded, collection membership
// lives in a set, and every committed write publishes the changed document
// id on the collection's change channel, which drives live subscriptions.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"agora/store"
)

const maxTxAttempts = 8

// Store implements store.Client on a Redis connection.
type Store struct {
	rdb     *redis.Client
	prefix  string
	log     *slog.Logger
	metrics *metrics
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key namespace prefix (default "agora").
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithLogger sets the logger used for listener errors.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithRegisterer registers store metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) { s.metrics = newMetrics(reg) }
}

// New creates a Store over an established Redis client.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		prefix: "agora",
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newMetrics(prometheus.NewRegistry())
	}
	return s
}

func (s *Store) docKey(doc store.Doc) string {
	return fmt.Sprintf("%s:doc:%s/%s", s.prefix, doc.Collection, doc.ID)
}

func (s *Store) colKey(collection string) string {
	return s.prefix + ":col:" + collection
}

func (s *Store) chgKey(collection string) string {
	return s.prefix + ":chg:" + collection
}

// NewID assigns a document id before any write.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// Get performs a one-shot read. A missing document yields Exists=false,
// not an error.
func (s *Store) Get(ctx context.Context, doc store.Doc) (store.DocSnapshot, error) {
	raw, err := s.rdb.HGetAll(ctx, s.docKey(doc)).Result()
	if err != nil {
		return store.DocSnapshot{}, err
	}
	return snapshotFromHash(doc, raw), nil
}

func snapshotFromHash(doc store.Doc, raw map[string]string) store.DocSnapshot {
	snap := store.DocSnapshot{Doc: doc, Exists: len(raw) > 0}
	if !snap.Exists {
		return snap
	}
	snap.Fields = make(map[string]json.RawMessage, len(raw))
	for f, v := range raw {
		snap.Fields[f] = json.RawMessage(v)
	}
	return snap
}

// Set replaces the document with data.
func (s *Store) Set(ctx context.Context, doc store.Doc, data map[string]any) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.applySet(ctx, pipe, doc, data)
	})
	if err != nil {
		return err
	}
	s.metrics.writes.WithLabelValues("set").Inc()
	s.publish(ctx, doc)
	return nil
}

// Update writes the given fields of an existing document. Increment
// sentinel values become atomic server-side adjustments.
func (s *Store) Update(ctx context.Context, doc store.Doc, fields map[string]any) error {
	n, err := s.rdb.Exists(ctx, s.docKey(doc)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.applyUpdate(ctx, pipe, doc, fields)
	})
	if err != nil {
		return err
	}
	s.metrics.writes.WithLabelValues("update").Inc()
	s.publish(ctx, doc)
	return nil
}

// Delete removes the document. Deleting a missing document is a no-op.
func (s *Store) Delete(ctx context.Context, doc store.Doc) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.applyDelete(ctx, pipe, doc)
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.writes.WithLabelValues("delete").Inc()
	s.publish(ctx, doc)
	return nil
}

// Add writes data under a freshly assigned id and returns it.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := s.NewID()
	if err := s.Set(ctx, store.Doc{Collection: collection, ID: id}, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) applySet(ctx context.Context, pipe redis.Pipeliner, doc store.Doc, data map[string]any) error {
	key := s.docKey(doc)
	pipe.Del(ctx, key)
	pairs := make([]any, 0, len(data)*2)
	for f, v := range data {
		enc, err := encodeField(v)
		if err != nil {
			return err
		}
		pairs = append(pairs, f, enc)
	}
	if len(pairs) > 0 {
		pipe.HSet(ctx, key, pairs...)
	}
	pipe.SAdd(ctx, s.colKey(doc.Collection), doc.ID)
	return nil
}

func (s *Store) applyUpdate(ctx context.Context, pipe redis.Pipeliner, doc store.Doc, fields map[string]any) error {
	key := s.docKey(doc)
	for f, v := range fields {
		if delta, ok := store.IncrementDelta(v); ok {
			// JSON integers encode to their plain decimal form, so
			// HINCRBY preserves the field's JSON validity.
			pipe.HIncrBy(ctx, key, f, delta)
			continue
		}
		enc, err := encodeField(v)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, f, enc)
	}
	return nil
}

func (s *Store) applyDelete(ctx context.Context, pipe redis.Pipeliner, doc store.Doc) {
	pipe.Del(ctx, s.docKey(doc))
	pipe.SRem(ctx, s.colKey(doc.Collection), doc.ID)
}

func encodeField(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode field: %w", err)
	}
	return string(b), nil
}

func (s *Store) publish(ctx context.Context, doc store.Doc) {
	if err := s.rdb.Publish(ctx, s.chgKey(doc.Collection), doc.ID).Err(); err != nil {
		s.log.Warn("change publish failed", "collection", doc.Collection, "doc", doc.ID, "error", err)
	}
}
