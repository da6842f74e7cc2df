//go:build integration

package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vivaha/internal/audit"
	auditpostgres "vivaha/internal/audit/store/postgres"
	"vivaha/internal/outbox"
	id "vivaha/pkg/domain"
	"vivaha/pkg/testutil/containers"
)

type OutboxStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *outbox.Store
	audits   *auditpostgres.Store
}

func TestOutboxStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxStoreSuite))
}

func (s *OutboxStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = outbox.NewStore(s.postgres.DB)
	s.audits = auditpostgres.New(s.postgres.DB)
}

func (s *OutboxStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "outbox", "audit_entries")
	s.Require().NoError(err)
}

// appendAudit writes an audit entry, which also inserts its outbox row.
func (s *OutboxStoreSuite) appendAudit(action audit.Action) audit.Entry {
	entry := audit.Entry{
		ID:           uuid.New(),
		ActorID:      id.UserID(uuid.New()),
		ActorName:    "Asha Registrar",
		ActorRole:    "registrar",
		Action:       action,
		ResourceType: audit.ResourceApplication,
		ResourceID:   uuid.NewString(),
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := s.audits.Append(context.Background(), entry)
	s.Require().NoError(err)
	return entry
}

func (s *OutboxStoreSuite) TestFetchPendingAndMarkPublished() {
	ctx := context.Background()
	first := s.appendAudit(audit.ActionApplicationVerified)
	second := s.appendAudit(audit.ActionCertificateGenerated)

	tx, err := s.store.Begin(ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback() }()

	events, err := s.store.FetchPending(ctx, tx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(first.ResourceID, events[0].AggregateID)
	s.Equal(string(first.Action), events[0].EventType)
	s.Equal(second.ResourceID, events[1].AggregateID)

	ids := []uuid.UUID{events[0].ID, events[1].ID}
	s.Require().NoError(s.store.MarkPublished(ctx, tx, ids, time.Now().UTC()))
	s.Require().NoError(tx.Commit())

	// Settled rows are not fetched again.
	tx2, err := s.store.Begin(ctx)
	s.Require().NoError(err)
	defer func() { _ = tx2.Rollback() }()

	remaining, err := s.store.FetchPending(ctx, tx2, 10)
	s.Require().NoError(err)
	s.Empty(remaining)
}

func (s *OutboxStoreSuite) TestFetchPendingRespectsLimit() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.appendAudit(audit.ActionDocumentApproved)
	}

	tx, err := s.store.Begin(ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback() }()

	events, err := s.store.FetchPending(ctx, tx, 3)
	s.Require().NoError(err)
	s.Len(events, 3)
}

func (s *OutboxStoreSuite) TestSkipLockedLetsWorkersShareTheBacklog() {
	ctx := context.Background()
	s.appendAudit(audit.ActionApplicationVerified)
	s.appendAudit(audit.ActionApplicationUnverified)

	// First worker locks the whole backlog.
	tx1, err := s.store.Begin(ctx)
	s.Require().NoError(err)
	defer func() { _ = tx1.Rollback() }()
	locked, err := s.store.FetchPending(ctx, tx1, 10)
	s.Require().NoError(err)
	s.Len(locked, 2)

	// A second worker sees nothing instead of blocking.
	tx2, err := s.store.Begin(ctx)
	s.Require().NoError(err)
	defer func() { _ = tx2.Rollback() }()
	overlap, err := s.store.FetchPending(ctx, tx2, 10)
	s.Require().NoError(err)
	s.Empty(overlap)
}
