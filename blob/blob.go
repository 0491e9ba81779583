// Package blob defines the object storage contract for post and product
// images. Uploads return a retrievable URL; there is deliberately no
// delete operation, orphaned blobs are accepted.
package blob

import (
	"context"
	"fmt"
	"sync"
)

// Store uploads binary objects and returns their public URL.
type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Memory is an in-process Store used by tests and local development.
type Memory struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{BaseURL: "mem://blobs", objects: make(map[string][]byte)}
}

func (m *Memory) Upload(_ context.Context, path string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[path] = cp
	return fmt.Sprintf("%s/%s", m.BaseURL, path), nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
