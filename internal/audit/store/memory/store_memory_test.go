package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vivaha/internal/audit"
	id "vivaha/pkg/domain"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()

	entries := []audit.Entry{
		{
			ID:        uuid.New(),
			ActorID:   id.UserID(uuid.New()),
			ActorName: "Asha Registrar",
			ActorRole: "registrar",
			Action:    audit.ActionApplicationVerified,
			Details:   map[string]any{"certificate_number": "MH-2025-00042"},
		},
		{
			ID:        uuid.New(),
			ActorID:   id.UserID(uuid.New()),
			ActorName: "Ravi Admin",
			ActorRole: "admin",
			Action:    audit.ActionDocumentRejected,
			Details:   map[string]any{"reason": "Blurry Scan"},
		},
		{
			ID:        uuid.New(),
			ActorID:   id.UserID(uuid.New()),
			ActorName: "Asha Registrar",
			ActorRole: "registrar",
			Action:    audit.ActionDocumentApproved,
		},
	}
	for _, entry := range entries {
		_, err := s.store.Append(s.ctx, entry)
		s.Require().NoError(err)
	}
}

func (s *InMemoryStoreSuite) TestQuery() {
	s.Run("no filters returns everything", func() {
		entries, err := s.store.Query(s.ctx, audit.Filters{})
		s.Require().NoError(err)
		s.Len(entries, 3)
	})

	s.Run("actor role matches exactly", func() {
		entries, err := s.store.Query(s.ctx, audit.Filters{ActorRole: "admin"})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("Ravi Admin", entries[0].ActorName)
	})

	s.Run("action matches by substring", func() {
		entries, err := s.store.Query(s.ctx, audit.Filters{ActionContains: "document"})
		s.Require().NoError(err)
		s.Len(entries, 2)
	})

	s.Run("free-text search is case-insensitive and covers details", func() {
		entries, err := s.store.Query(s.ctx, audit.Filters{Search: "blurry"})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionDocumentRejected, entries[0].Action)
	})

	s.Run("search across actor names", func() {
		entries, err := s.store.Query(s.ctx, audit.Filters{Search: "asha"})
		s.Require().NoError(err)
		s.Len(entries, 2)
	})

	s.Run("filters combine", func() {
		entries, err := s.store.Query(s.ctx, audit.Filters{ActorRole: "registrar", ActionContains: "document"})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionDocumentApproved, entries[0].Action)
	})
}

func (s *InMemoryStoreSuite) TestAppendIsAppendOnly() {
	before, err := s.store.Query(s.ctx, audit.Filters{})
	s.Require().NoError(err)

	// Mutating queried copies does not alter the stored log.
	before[0].ActorName = "tampered"

	after, err := s.store.Query(s.ctx, audit.Filters{})
	s.Require().NoError(err)
	s.NotEqual("tampered", after[0].ActorName)
}
