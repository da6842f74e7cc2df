package application

import (
	"context"
	"sync"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
)

// InMemory stores applications behind a mutex. Execute holds the lock across
// validate-then-mutate so concurrent admin sessions cannot interleave between
// the gate check and the flag flip.
type InMemory struct {
	mu           sync.Mutex
	applications map[id.ApplicationID]*models.Application
}

func NewInMemory() *InMemory {
	return &InMemory{applications: make(map[id.ApplicationID]*models.Application)}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.applications[app.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	copied := *app
	s.applications[app.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (s *InMemory) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[app.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *app
	s.applications[app.ID] = &copied
	return nil
}

// Execute runs validate then mutate on the stored application while holding
// the store lock. The returned application is a copy of the mutated state.
func (s *InMemory) Execute(_ context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(app); err != nil {
			return nil, err
		}
	}
	mutate(app)
	copied := *app
	return &copied, nil
}
