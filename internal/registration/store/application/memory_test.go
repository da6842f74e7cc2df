package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
)

func newApplication() *models.Application {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	return models.NewApplication(id.ApplicationID(uuid.New()), id.UserID(uuid.New()), now)
}

func TestInMemoryCreateAndFind(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	app := newApplication()

	require.NoError(t, store.Create(ctx, app))
	assert.ErrorIs(t, store.Create(ctx, app), sentinel.ErrAlreadyUsed)

	found, err := store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, found.ID)

	_, err = store.FindByID(ctx, id.ApplicationID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryExecuteValidateFailureLeavesStateUntouched(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	app := newApplication()
	require.NoError(t, store.Create(ctx, app))

	gateErr := errors.New("gate refused")
	_, err := store.Execute(ctx, app.ID,
		func(*models.Application) error { return gateErr },
		func(a *models.Application) { a.Verified = true },
	)
	assert.ErrorIs(t, err, gateErr)

	stored, err := store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.False(t, stored.Verified)
}

func TestInMemoryExecuteMutatesStoredCopy(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	app := newApplication()
	require.NoError(t, store.Create(ctx, app))

	updated, err := store.Execute(ctx, app.ID, nil, func(a *models.Application) {
		a.Status = models.ApplicationStatusSubmitted
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusSubmitted, updated.Status)

	// Mutating the returned copy does not leak into the store.
	updated.Status = models.ApplicationStatusRejected
	stored, err := store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusSubmitted, stored.Status)
}

func TestInMemoryUpdate(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	app := newApplication()
	require.NoError(t, store.Create(ctx, app))

	app.Progress = 40
	require.NoError(t, store.Update(ctx, app))

	stored, err := store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Progress)

	missing := newApplication()
	assert.ErrorIs(t, store.Update(ctx, missing), sentinel.ErrNotFound)
}
