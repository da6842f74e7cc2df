package certificate

import (
	"context"
	"sync"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
)

// InMemory stores certificates behind a mutex and enforces the one-per-
// application constraint the same way the Postgres store's unique index
// does: Create under lock fails with ErrAlreadyUsed when a certificate for
// the application already exists.
type InMemory struct {
	mu            sync.Mutex
	certificates  map[id.CertificateID]*models.Certificate
	byApplication map[id.ApplicationID]id.CertificateID
}

func NewInMemory() *InMemory {
	return &InMemory{
		certificates:  make(map[id.CertificateID]*models.Certificate),
		byApplication: make(map[id.ApplicationID]id.CertificateID),
	}
}

// Create inserts the certificate unless one already exists for its
// application, in which case it returns sentinel.ErrAlreadyUsed. The check
// and insert happen under one lock, so concurrent issuance cannot double-
// insert.
func (s *InMemory) Create(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byApplication[cert.ApplicationID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	copied := *cert
	s.certificates[cert.ID] = &copied
	s.byApplication[cert.ApplicationID] = cert.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *cert
	return &copied, nil
}

func (s *InMemory) FindByApplication(_ context.Context, applicationID id.ApplicationID) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	certID, ok := s.byApplication[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.certificates[certID]
	return &copied, nil
}

// Len reports the number of stored certificates. Test helper.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.certificates)
}

// Execute runs validate then mutate on the stored certificate while holding
// the store lock. Used for the explicit download-enable action.
func (s *InMemory) Execute(_ context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(cert); err != nil {
			return nil, err
		}
	}
	mutate(cert)
	copied := *cert
	return &copied, nil
}
