// Package repository translates feed and marketplace operations into
// remote store calls and shapes snapshot streams into domain entities.
package repository

import (
	"errors"
	"log/slog"

	"agora/models"
	"agora/store"
)

// inFilterLimit bounds the size of a single "in" filter; larger id sets
// are fetched in chunks.
const inFilterLimit = 10

// wrapRemote passes through application errors and wraps transport
// failures into the RemoteFailure taxonomy.
func wrapRemote(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewRemoteError(err)
}

// decodeAll decodes every snapshot into T, skipping malformed documents.
func decodeAll[T any](snaps store.QuerySnapshot, log *slog.Logger, kind string) []T {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		var v T
		if err := s.DataTo(&v); err != nil {
			log.Warn("skipping malformed document", "kind", kind, "doc", s.Doc.ID, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}
