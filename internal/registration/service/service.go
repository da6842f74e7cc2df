// Package service holds the registration workflow: verification gating,
// document review, and certificate issuance. Services are constructed with
// injected stores and collaborators so tests substitute fakes freely.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	regmetrics "vivaha/internal/registration/metrics"
	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
	"vivaha/pkg/platform/sentinel"
	"vivaha/pkg/requestcontext"
)

// ApplicationStore persists applications. Execute holds the entity lock
// (mutex or FOR UPDATE) across validate-then-mutate.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error)
	Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error)
}

// DocumentStore persists documents owned by applications.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]*models.Document, error)
	Execute(ctx context.Context, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error)
}

// CertificateStore persists certificates. Create returns
// sentinel.ErrAlreadyUsed when a certificate for the application already
// exists; backed by a unique constraint, it is the idempotency backstop for
// concurrent issuance.
type CertificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error)
	FindByApplication(ctx context.Context, applicationID id.ApplicationID) (*models.Certificate, error)
	Execute(ctx context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error)
}

// tracerName identifies spans produced by this package.
const tracerName = "vivaha/internal/registration/service"

type serviceConfig struct {
	logger  *slog.Logger
	metrics *regmetrics.Metrics
	tx      StoreTx
	tracer  trace.Tracer
}

// Option customizes a service at construction.
type Option func(cfg *serviceConfig)

// WithLogger injects the structured logger used for secondary-effect
// failures and audit-style event logs.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

// WithMetrics injects the Prometheus counters.
func WithMetrics(m *regmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithStoreTx injects the transaction runner so the primary mutation and its
// audit entry commit atomically. Defaults to a passthrough for memory stores.
func WithStoreTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

func buildConfig(opts []Option) *serviceConfig {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tx == nil {
		cfg.tx = NewPassthroughTx()
	}
	cfg.tracer = otel.Tracer(tracerName)
	return cfg
}

// requireActor fetches the acting admin from context; every state-changing
// operation refuses to run without one.
func requireActor(ctx context.Context) (requestcontext.ActorInfo, error) {
	actor := requestcontext.Actor(ctx)
	if actor.ID.IsNil() {
		return requestcontext.ActorInfo{}, dErrors.New(dErrors.CodeUnauthorized, "acting admin is required")
	}
	return actor, nil
}

// wrapStoreErr translates store sentinels into domain errors for the named
// entity.
func wrapStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, entity+" already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+entity)
	}
}
