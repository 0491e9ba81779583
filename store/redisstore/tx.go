package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"agora/store"
)

var errTxContention = errors.New("redisstore: transaction retries exhausted")

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
)

var opNames = map[opKind]string{opSet: "set", opUpdate: "update", opDelete: "delete"}

type writeOp struct {
	kind opKind
	doc  store.Doc
	data map[string]any
}

func (s *Store) applyOp(ctx context.Context, pipe redis.Pipeliner, op writeOp) error {
	switch op.kind {
	case opSet:
		return s.applySet(ctx, pipe, op.doc, op.data)
	case opUpdate:
		return s.applyUpdate(ctx, pipe, op.doc, op.data)
	default:
		s.applyDelete(ctx, pipe, op.doc)
		return nil
	}
}

func (s *Store) commitOps(ctx context.Context, ops []writeOp) {
	for _, op := range ops {
		s.metrics.writes.WithLabelValues(opNames[op.kind]).Inc()
		s.publish(ctx, op.doc)
	}
}

// writeBatch accumulates writes applied all-or-nothing via MULTI/EXEC.
type writeBatch struct {
	s   *Store
	ops []writeOp
}

// Batch starts an empty write batch.
func (s *Store) Batch() store.WriteBatch {
	return &writeBatch{s: s}
}

func (b *writeBatch) Set(doc store.Doc, data map[string]any) store.WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opSet, doc: doc, data: data})
	return b
}

func (b *writeBatch) Update(doc store.Doc, fields map[string]any) store.WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opUpdate, doc: doc, data: fields})
	return b
}

func (b *writeBatch) Delete(doc store.Doc) store.WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opDelete, doc: doc})
	return b
}

func (b *writeBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	_, err := b.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range b.ops {
			if err := b.s.applyOp(ctx, pipe, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.s.commitOps(ctx, b.ops)
	return nil
}

// transaction implements store.Transaction over an optimistic WATCH/MULTI
// round: reads watch their keys, writes are staged and applied in one
// MULTI block, and the whole attempt is retried when a watched key moves.
type transaction struct {
	s   *Store
	ctx context.Context
	tx  *redis.Tx
	ops []writeOp
}

func (t *transaction) Get(doc store.Doc) (store.DocSnapshot, error) {
	key := t.s.docKey(doc)
	if err := t.tx.Watch(t.ctx, key).Err(); err != nil {
		return store.DocSnapshot{}, err
	}
	raw, err := t.tx.HGetAll(t.ctx, key).Result()
	if err != nil {
		return store.DocSnapshot{}, err
	}
	return snapshotFromHash(doc, raw), nil
}

func (t *transaction) Set(doc store.Doc, data map[string]any) {
	t.ops = append(t.ops, writeOp{kind: opSet, doc: doc, data: data})
}

func (t *transaction) Update(doc store.Doc, fields map[string]any) {
	t.ops = append(t.ops, writeOp{kind: opUpdate, doc: doc, data: fields})
}

func (t *transaction) Delete(doc store.Doc) {
	t.ops = append(t.ops, writeOp{kind: opDelete, doc: doc})
}

// RunTransaction runs fn atomically with read-then-conditional-write
// semantics, retrying on contention.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Transaction) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		t := &transaction{s: s, ctx: ctx}
		err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			t.tx = rtx
			t.ops = t.ops[:0]
			if err := fn(t); err != nil {
				return err
			}
			if len(t.ops) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, op := range t.ops {
					if err := s.applyOp(ctx, pipe, op); err != nil {
						return err
					}
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		s.commitOps(ctx, t.ops)
		return nil
	}
	return errTxContention
}
