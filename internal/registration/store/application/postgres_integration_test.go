//go:build integration

package application_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vivaha/internal/registration/models"
	applicationstore "vivaha/internal/registration/store/application"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
	"vivaha/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *applicationstore.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = applicationstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "outbox", "audit_entries", "certificates", "documents", "applications")
	s.Require().NoError(err)
}

func newApplication() *models.Application {
	now := time.Now().UTC().Truncate(time.Microsecond)
	app := models.NewApplication(id.ApplicationID(uuid.New()), id.UserID(uuid.New()), now)
	app.Groom = models.PersonDetails{
		FullName:   "Arjun Sharma",
		FatherName: "Ramesh Sharma",
		Address:    models.Address{Line1: "12 MG Road", City: "Pune", State: "Maharashtra", PinCode: "411001"},
	}
	app.Bride = models.PersonDetails{
		FullName: "Priya Patel",
		Address:  models.Address{Line1: "4 Lake View", City: "Mumbai", State: "Maharashtra", PinCode: "400001"},
	}
	app.Declarations = models.Declarations{TermsAccepted: true, InfoAccurate: true, NoLegalObjection: true}
	return app
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	app := newApplication()
	s.Require().NoError(s.store.Create(ctx, app))

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(app.ID, found.ID)
	s.Equal(app.OwnerUserID, found.OwnerUserID)
	s.Equal(models.ApplicationStatusDraft, found.Status)
	s.Equal(app.Groom, found.Groom)
	s.Equal(app.Bride, found.Bride)
	s.Equal(app.Declarations, found.Declarations)
	s.False(found.Verified)
	s.Nil(found.VerifiedAt)
	s.Nil(found.VerifiedBy)
	s.Empty(found.CertificateNumber)
	s.Nil(found.RegistrationDate)
}

func (s *PostgresStoreSuite) TestVerificationFieldsRoundTrip() {
	ctx := context.Background()
	app := newApplication()
	s.Require().NoError(s.store.Create(ctx, app))

	now := time.Now().UTC().Truncate(time.Microsecond)
	registrar := id.UserID(uuid.New())
	regDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.store.Execute(ctx, app.ID, nil, func(a *models.Application) {
		a.ApplyVerification(now, registrar, "MH-2025-00042", regDate)
	})
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.True(found.Verified)
	s.Require().NotNil(found.VerifiedAt)
	s.Require().NotNil(found.VerifiedBy)
	s.Equal(registrar, *found.VerifiedBy)
	s.Equal("MH-2025-00042", found.CertificateNumber)
	s.Require().NotNil(found.RegistrationDate)
	s.True(regDate.Equal(*found.RegistrationDate))

	// Unverification clears the companion fields but keeps certificate data.
	_, err = s.store.Execute(ctx, app.ID, nil, func(a *models.Application) {
		a.ApplyUnverification(now)
	})
	s.Require().NoError(err)

	found, err = s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.False(found.Verified)
	s.Nil(found.VerifiedAt)
	s.Nil(found.VerifiedBy)
}

func (s *PostgresStoreSuite) TestExecuteValidateFailureLeavesRowUntouched() {
	ctx := context.Background()
	app := newApplication()
	s.Require().NoError(s.store.Create(ctx, app))

	gateErr := errors.New("gate refused")
	_, err := s.store.Execute(ctx, app.ID,
		func(*models.Application) error { return gateErr },
		func(a *models.Application) { a.Verified = true },
	)
	s.ErrorIs(err, gateErr)

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.False(found.Verified)
}

func (s *PostgresStoreSuite) TestConcurrentExecuteSerializes() {
	ctx := context.Background()
	app := newApplication()
	s.Require().NoError(s.store.Create(ctx, app))

	const goroutines = 20
	var wg sync.WaitGroup
	var failures atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.store.Execute(ctx, app.ID, nil, func(a *models.Application) {
				a.Progress = (a.Progress + 5) % 101
			})
			if err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load(), "row lock should serialize, never fail")

	found, err := s.store.FindByID(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(goroutines*5%101, found.Progress)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.ApplicationID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	ghost := newApplication()
	s.ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)

	_, err = s.store.Execute(ctx, id.ApplicationID(uuid.New()), nil, func(a *models.Application) {
		a.Progress = 10
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}
