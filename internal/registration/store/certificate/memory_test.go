package certificate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
)

func newCertificate(applicationID id.ApplicationID) *models.Certificate {
	return &models.Certificate{
		ID:                id.CertificateID(uuid.New()),
		ApplicationID:     applicationID,
		VerificationID:    uuid.NewString(),
		CertificateNumber: "MH-2025-00042",
		IssuedAt:          time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryCreateRejectsDuplicateApplication(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	appID := id.ApplicationID(uuid.New())

	require.NoError(t, store.Create(ctx, newCertificate(appID)))

	err := store.Create(ctx, newCertificate(appID))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryConcurrentCreateAdmitsOne(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	appID := id.ApplicationID(uuid.New())

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = store.Create(ctx, newCertificate(appID))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryFindByApplication(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	appID := id.ApplicationID(uuid.New())
	cert := newCertificate(appID)
	require.NoError(t, store.Create(ctx, cert))

	found, err := store.FindByApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, found.ID)

	_, err = store.FindByApplication(ctx, id.ApplicationID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryExecute(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	cert := newCertificate(id.ApplicationID(uuid.New()))
	require.NoError(t, store.Create(ctx, cert))

	updated, err := store.Execute(ctx, cert.ID, nil, func(c *models.Certificate) {
		c.CanDownload = true
	})
	require.NoError(t, err)
	assert.True(t, updated.CanDownload)

	stored, err := store.FindByID(ctx, cert.ID)
	require.NoError(t, err)
	assert.True(t, stored.CanDownload)
}

func TestInMemoryCopiesOnRead(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	cert := newCertificate(id.ApplicationID(uuid.New()))
	require.NoError(t, store.Create(ctx, cert))

	found, err := store.FindByID(ctx, cert.ID)
	require.NoError(t, err)
	found.CanDownload = true

	again, err := store.FindByID(ctx, cert.ID)
	require.NoError(t, err)
	assert.False(t, again.CanDownload)
}
