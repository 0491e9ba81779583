package redisstore

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"

	"agora/store"
)

// Documents evaluates a query one-shot. The store's query surface is
// deliberately bounded (equality, "in", one sort key, limit), so
// evaluation scans the collection membership set and filters here.
func (s *Store) Documents(ctx context.Context, q store.Query) (store.QuerySnapshot, error) {
	ids, err := s.rdb.SMembers(ctx, s.colKey(q.Collection)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	snaps := make(store.QuerySnapshot, 0, len(ids))
	for _, id := range ids {
		doc := store.Doc{Collection: q.Collection, ID: id}
		snap, err := s.Get(ctx, doc)
		if err != nil {
			return nil, err
		}
		if !snap.Exists {
			continue
		}
		if matches(snap, q.Filters) {
			snaps = append(snaps, snap)
		}
	}

	if q.Ordering != nil {
		ord := *q.Ordering
		sort.SliceStable(snaps, func(i, j int) bool {
			c := compareValues(fieldValue(snaps[i], ord.Field), fieldValue(snaps[j], ord.Field))
			if ord.Direction == store.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.N > 0 && len(snaps) > q.N {
		snaps = snaps[:q.N]
	}
	return snaps, nil
}

func matches(snap store.DocSnapshot, filters []store.Filter) bool {
	for _, f := range filters {
		got := fieldValue(snap, f.Field)
		switch f.Op {
		case store.OpEqual:
			if !reflect.DeepEqual(got, canon(f.Value)) {
				return false
			}
		case store.OpIn:
			if !containsValue(canon(f.Value), got) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsValue(list any, v any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// fieldValue decodes a stored field into its canonical JSON form
// (string, float64, bool, nil, []any, map[string]any).
func fieldValue(snap store.DocSnapshot, field string) any {
	raw, ok := snap.Fields[field]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// canon round-trips a Go value through JSON so typed strings, ints and
// slices compare against decoded field values.
func canon(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			// Timestamps marshal as RFC3339Nano with trailing zeros
			// trimmed, so same-second values of different fractional
			// precision do not sort lexicographically ("…05Z" vs
			// "…05.5Z"). Compare them as times.
			if at, err := time.Parse(time.RFC3339Nano, av); err == nil {
				if bt, err := time.Parse(time.RFC3339Nano, bv); err == nil {
					switch {
					case at.Before(bt):
						return -1
					case at.After(bt):
						return 1
					}
					return 0
				}
			}
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case !av && bv:
				return -1
			case av && !bv:
				return 1
			}
			return 0
		}
	}
	if a == nil && b != nil {
		return -1
	}
	if a != nil && b == nil {
		return 1
	}
	return 0
}
