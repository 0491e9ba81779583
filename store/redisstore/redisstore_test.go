package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/store"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, WithPrefix("test"))
}

type widget struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Owner string `json:"owner"`
}

func putWidget(t *testing.T, s *Store, w widget) store.Doc {
	t.Helper()
	data, err := store.DataFrom(w)
	require.NoError(t, err)
	doc := store.Doc{Collection: "widgets", ID: w.ID}
	require.NoError(t, s.Set(context.Background(), doc, data))
	return doc
}

func TestStoreCRUD(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	t.Run("SetGet", func(t *testing.T) {
		doc := putWidget(t, s, widget{ID: "w1", Name: "anvil", Count: 3, Owner: "u1"})

		snap, err := s.Get(ctx, doc)
		require.NoError(t, err)
		require.True(t, snap.Exists)

		var got widget
		require.NoError(t, snap.DataTo(&got))
		assert.Equal(t, "anvil", got.Name)
		assert.Equal(t, int64(3), got.Count)
	})

	t.Run("GetMissing", func(t *testing.T) {
		snap, err := s.Get(ctx, store.Doc{Collection: "widgets", ID: "nope"})
		require.NoError(t, err)
		assert.False(t, snap.Exists)
		assert.ErrorIs(t, snap.DataTo(&widget{}), store.ErrNotFound)
	})

	t.Run("UpdateFields", func(t *testing.T) {
		doc := putWidget(t, s, widget{ID: "w2", Name: "rope", Count: 1})
		require.NoError(t, s.Update(ctx, doc, map[string]any{"name": "wire"}))

		snap, err := s.Get(ctx, doc)
		require.NoError(t, err)
		var got widget
		require.NoError(t, snap.DataTo(&got))
		assert.Equal(t, "wire", got.Name)
		assert.Equal(t, int64(1), got.Count, "untouched fields survive")
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := s.Update(ctx, store.Doc{Collection: "widgets", ID: "ghost"}, map[string]any{"name": "x"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Increment", func(t *testing.T) {
		doc := putWidget(t, s, widget{ID: "w3", Count: 10})
		require.NoError(t, s.Update(ctx, doc, map[string]any{"count": store.Increment(5)}))
		require.NoError(t, s.Update(ctx, doc, map[string]any{"count": store.Increment(-2)}))

		snap, err := s.Get(ctx, doc)
		require.NoError(t, err)
		var got widget
		require.NoError(t, snap.DataTo(&got))
		assert.Equal(t, int64(13), got.Count)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		doc := putWidget(t, s, widget{ID: "w4"})
		require.NoError(t, s.Delete(ctx, doc))
		require.NoError(t, s.Delete(ctx, doc))

		snap, err := s.Get(ctx, doc)
		require.NoError(t, err)
		assert.False(t, snap.Exists)
	})

	t.Run("Add", func(t *testing.T) {
		id, err := s.Add(ctx, "widgets", map[string]any{"name": "fresh"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		snap, err := s.Get(ctx, store.Doc{Collection: "widgets", ID: id})
		require.NoError(t, err)
		assert.True(t, snap.Exists)
	})
}

func TestStoreQueries(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putWidget(t, s, widget{ID: "a", Name: "anvil", Count: 3, Owner: "u1"})
	putWidget(t, s, widget{ID: "b", Name: "rope", Count: 1, Owner: "u2"})
	putWidget(t, s, widget{ID: "c", Name: "anvil", Count: 7, Owner: "u1"})

	t.Run("Equality", func(t *testing.T) {
		snaps, err := s.Documents(ctx, store.NewQuery("widgets").Where("owner", store.OpEqual, "u1"))
		require.NoError(t, err)
		assert.Len(t, snaps, 2)
	})

	t.Run("In", func(t *testing.T) {
		snaps, err := s.Documents(ctx, store.NewQuery("widgets").Where("id", store.OpIn, []string{"a", "b", "zzz"}))
		require.NoError(t, err)
		assert.Len(t, snaps, 2)
	})

	t.Run("OrderAndLimit", func(t *testing.T) {
		snaps, err := s.Documents(ctx, store.NewQuery("widgets").OrderBy("count", store.Desc).Limit(2))
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "c", snaps[0].Doc.ID)
		assert.Equal(t, "a", snaps[1].Doc.ID)
	})

	t.Run("NoMatches", func(t *testing.T) {
		snaps, err := s.Documents(ctx, store.NewQuery("widgets").Where("owner", store.OpEqual, "nobody"))
		require.NoError(t, err)
		assert.Empty(t, snaps)
	})
}

type event struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Timestamps encode as RFC3339Nano with trailing zeros trimmed, so
// same-second values of different fractional precision ("…05Z",
// "…05.5Z", "…05.52Z") are prefix-related strings that a lexicographic
// compare mis-orders. The ordering must still be chronological.
func TestOrderByTimeMixedPrecision(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC)
	events := []event{
		{ID: "whole", CreatedAt: base},
		{ID: "half", CreatedAt: base.Add(500 * time.Millisecond)},
		{ID: "finer", CreatedAt: base.Add(520 * time.Millisecond)},
		{ID: "next", CreatedAt: base.Add(time.Second)},
	}
	for _, e := range events {
		data, err := store.DataFrom(e)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, store.Doc{Collection: "events", ID: e.ID}, data))
	}

	t.Run("Descending", func(t *testing.T) {
		snaps, err := s.Documents(ctx, store.NewQuery("events").OrderBy("createdAt", store.Desc))
		require.NoError(t, err)
		require.Len(t, snaps, 4)
		got := make([]string, 0, 4)
		for _, snap := range snaps {
			got = append(got, snap.Doc.ID)
		}
		assert.Equal(t, []string{"next", "finer", "half", "whole"}, got)
	})

	t.Run("Ascending", func(t *testing.T) {
		snaps, err := s.Documents(ctx, store.NewQuery("events").OrderBy("createdAt", store.Asc))
		require.NoError(t, err)
		require.Len(t, snaps, 4)
		assert.Equal(t, "whole", snaps[0].Doc.ID)
		assert.Equal(t, "next", snaps[3].Doc.ID)
	})

	t.Run("LimitCutsAtTheRightBoundary", func(t *testing.T) {
		snaps, err := s.Documents(ctx, store.NewQuery("events").OrderBy("createdAt", store.Desc).Limit(2))
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "next", snaps[0].Doc.ID)
		assert.Equal(t, "finer", snaps[1].Doc.ID)
	})
}

func TestSubscribe(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, store.NewQuery("widgets").Where("owner", store.OpEqual, "u1"))
	require.NoError(t, err)

	initial := recvQuery(t, ch)
	assert.Empty(t, initial, "initial snapshot arrives before any write")

	putWidget(t, s, widget{ID: "a", Owner: "u1"})
	snap := recvQuery(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].Doc.ID)

	// A non-matching write still triggers re-evaluation, the result set
	// just doesn't grow.
	putWidget(t, s, widget{ID: "b", Owner: "u2"})
	snap = recvQuery(t, ch)
	assert.Len(t, snap, 1)

	cancel()
	assertClosed(t, ch)
}

func TestSubscribeDoc(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := putWidget(t, s, widget{ID: "w", Name: "anvil"})

	ch, err := s.SubscribeDoc(ctx, doc)
	require.NoError(t, err)

	snap := recvDoc(t, ch)
	require.True(t, snap.Exists)

	require.NoError(t, s.Update(ctx, doc, map[string]any{"name": "press"}))
	snap = recvDoc(t, ch)
	var got widget
	require.NoError(t, snap.DataTo(&got))
	assert.Equal(t, "press", got.Name)

	require.NoError(t, s.Delete(ctx, doc))
	snap = recvDoc(t, ch)
	assert.False(t, snap.Exists, "deletion emits Exists=false")
}

func TestBatch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	doc := putWidget(t, s, widget{ID: "w", Count: 1})
	other := store.Doc{Collection: "widgets", ID: "x"}

	err := s.Batch().
		Set(other, map[string]any{"id": "x", "name": "new"}).
		Update(doc, map[string]any{"count": store.Increment(1)}).
		Commit(ctx)
	require.NoError(t, err)

	snap, err := s.Get(ctx, doc)
	require.NoError(t, err)
	var got widget
	require.NoError(t, snap.DataTo(&got))
	assert.Equal(t, int64(2), got.Count)

	snap, err = s.Get(ctx, other)
	require.NoError(t, err)
	assert.True(t, snap.Exists)

	err = s.Batch().Delete(doc).Delete(other).Commit(ctx)
	require.NoError(t, err)
	snaps, err := s.Documents(ctx, store.NewQuery("widgets"))
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRunTransaction(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	t.Run("ConditionalWrite", func(t *testing.T) {
		doc := putWidget(t, s, widget{ID: "w", Count: 0})
		err := s.RunTransaction(ctx, func(tx store.Transaction) error {
			snap, err := tx.Get(doc)
			if err != nil {
				return err
			}
			if !snap.Exists {
				t.Fatal("expected document")
			}
			tx.Update(doc, map[string]any{"count": store.Increment(1)})
			return nil
		})
		require.NoError(t, err)

		snap, err := s.Get(ctx, doc)
		require.NoError(t, err)
		var got widget
		require.NoError(t, snap.DataTo(&got))
		assert.Equal(t, int64(1), got.Count)
	})

	t.Run("CallbackErrorAborts", func(t *testing.T) {
		doc := putWidget(t, s, widget{ID: "w2", Count: 5})
		wantErr := assert.AnError
		err := s.RunTransaction(ctx, func(tx store.Transaction) error {
			tx.Update(doc, map[string]any{"count": store.Increment(100)})
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)

		snap, err := s.Get(ctx, doc)
		require.NoError(t, err)
		var got widget
		require.NoError(t, snap.DataTo(&got))
		assert.Equal(t, int64(5), got.Count, "staged writes discarded on error")
	})

	t.Run("ConcurrentIncrements", func(t *testing.T) {
		doc := putWidget(t, s, widget{ID: "w3", Count: 0})
		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.RunTransaction(ctx, func(tx store.Transaction) error {
					if _, err := tx.Get(doc); err != nil {
						return err
					}
					tx.Update(doc, map[string]any{"count": store.Increment(1)})
					return nil
				})
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		snap, err := s.Get(ctx, doc)
		require.NoError(t, err)
		var got widget
		require.NoError(t, snap.DataTo(&got))
		assert.Equal(t, int64(n), got.Count)
	})
}

func recvQuery(t *testing.T, ch <-chan store.QuerySnapshot) store.QuerySnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for query snapshot")
		return nil
	}
}

func recvDoc(t *testing.T, ch <-chan store.DocSnapshot) store.DocSnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for doc snapshot")
		return store.DocSnapshot{}
	}
}

func assertClosed(t *testing.T, ch <-chan store.QuerySnapshot) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription did not close after cancel")
		}
	}
}
