package redisstore

import (
	"context"

	"agora/store"
)

// Subscribe delivers the query's current result set promptly, then a
// fresh result set whenever any document in the collection changes. The
// channel closes on ctx cancellation or listener failure; callers
// re-subscribe to recover. Closing releases the Redis subscription.
func (s *Store) Subscribe(ctx context.Context, q store.Query) (<-chan store.QuerySnapshot, error) {
	pubsub := s.rdb.Subscribe(ctx, s.chgKey(q.Collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan store.QuerySnapshot, 1)
	s.metrics.listeners.Inc()
	go func() {
		defer func() {
			_ = pubsub.Close()
			close(out)
			s.metrics.listeners.Dec()
		}()

		emit := func() bool {
			snap, err := s.Documents(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("query listener failed", "collection", q.Collection, "error", err)
				}
				return false
			}
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()
	return out, nil
}

// SubscribeDoc delivers the document's current state promptly, then again
// on every change to it, including deletion (Exists=false).
func (s *Store) SubscribeDoc(ctx context.Context, doc store.Doc) (<-chan store.DocSnapshot, error) {
	pubsub := s.rdb.Subscribe(ctx, s.chgKey(doc.Collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan store.DocSnapshot, 1)
	s.metrics.listeners.Inc()
	go func() {
		defer func() {
			_ = pubsub.Close()
			close(out)
			s.metrics.listeners.Dec()
		}()

		emit := func() bool {
			snap, err := s.Get(ctx, doc)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("doc listener failed", "collection", doc.Collection, "doc", doc.ID, "error", err)
				}
				return false
			}
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if msg.Payload != doc.ID {
					continue
				}
				if !emit() {
					return
				}
			}
		}
	}()
	return out, nil
}
