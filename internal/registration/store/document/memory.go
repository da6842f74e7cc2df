package document

import (
	"context"
	"sort"
	"sync"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
)

// InMemory stores documents behind a mutex, indexed by owning application.
type InMemory struct {
	mu        sync.Mutex
	documents map[id.DocumentID]*models.Document
}

func NewInMemory() *InMemory {
	return &InMemory{documents: make(map[id.DocumentID]*models.Document)}
}

func (s *InMemory) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	copied := *doc
	s.documents[doc.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, documentID id.DocumentID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

// ListByApplication returns the application's documents ordered by upload
// time, oldest first.
func (s *InMemory) ListByApplication(_ context.Context, applicationID id.ApplicationID) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []*models.Document
	for _, doc := range s.documents {
		if doc.ApplicationID == applicationID {
			copied := *doc
			docs = append(docs, &copied)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UploadedAt.Before(docs[j].UploadedAt) })
	return docs, nil
}

// Execute runs validate then mutate on the stored document while holding the
// store lock.
func (s *InMemory) Execute(_ context.Context, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(doc); err != nil {
			return nil, err
		}
	}
	mutate(doc)
	copied := *doc
	return &copied, nil
}
