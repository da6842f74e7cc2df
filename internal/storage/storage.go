// Package storage abstracts the object store holding document uploads and
// rendered certificate PDFs. The core only needs store/delete; byte transport
// for applicant uploads lives outside this repository.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Storage stores a blob and returns a stable URL for it.
type Storage interface {
	Store(ctx context.Context, content []byte, contentType string) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// InMemory keeps blobs in a map. Used by tests and local development.
type InMemory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{objects: make(map[string][]byte)}
}

func (s *InMemory) Store(_ context.Context, content []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url := fmt.Sprintf("mem://%s", uuid.NewString())
	copied := make([]byte, len(content))
	copy(copied, content)
	s.objects[url] = copied
	return url, nil
}

func (s *InMemory) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, url)
	return nil
}

// Get returns a stored blob. Test helper.
func (s *InMemory) Get(url string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.objects[url]
	return content, ok
}
