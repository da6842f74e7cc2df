package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"vivaha/internal/audit"
	"vivaha/internal/notification"
	"vivaha/internal/registration/lock"
	regmetrics "vivaha/internal/registration/metrics"
	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
	"vivaha/pkg/requestcontext"
)

// secondaryEffectTimeout bounds post-commit side effects (notification
// dispatch, certificate issuance from verify) so a stuck collaborator cannot
// hold the request.
const secondaryEffectTimeout = 10 * time.Second

// WorkflowService orchestrates application verification. It enforces the
// document gate, drives the audit recorder inside the primary transaction,
// and runs notification + issuance as post-commit best-effort steps.
type WorkflowService struct {
	applications ApplicationStore
	documents    DocumentStore
	recorder     *audit.Recorder
	issuer       *CertificateService
	dispatcher   notification.Dispatcher
	locker       lock.Locker
	tx           StoreTx
	logger       *slog.Logger
	metrics      *regmetrics.Metrics
	tracer       trace.Tracer
}

func NewWorkflowService(
	applications ApplicationStore,
	documents DocumentStore,
	recorder *audit.Recorder,
	issuer *CertificateService,
	dispatcher notification.Dispatcher,
	locker lock.Locker,
	opts ...Option,
) *WorkflowService {
	cfg := buildConfig(opts)
	return &WorkflowService{
		applications: applications,
		documents:    documents,
		recorder:     recorder,
		issuer:       issuer,
		dispatcher:   dispatcher,
		locker:       locker,
		tx:           cfg.tx,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		tracer:       cfg.tracer,
	}
}

// VerifyApplication flips an application to verified once every owned
// document clears the gate: no document may be rejected without a
// subsequent reupload. On refusal the error enumerates the offending
// documents by label and nothing is mutated.
//
// The advisory per-application lock is held for the whole verify+issue
// sequence; the certificate store's unique constraint independently closes
// the issuance race.
func (s *WorkflowService) VerifyApplication(ctx context.Context, applicationID id.ApplicationID, certificateNumber string, registrationDate time.Time) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.verify_application")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	certificateNumber = strings.TrimSpace(certificateNumber)
	if certificateNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate number is required")
	}
	if registrationDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "registration date is required")
	}

	release, err := s.locker.Acquire(ctx, applicationID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire application lock")
	}
	defer release()

	now := requestcontext.Now(ctx)
	var app *models.Application
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		docs, err := s.documents.ListByApplication(txCtx, applicationID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list application documents")
		}
		app, err = s.applications.Execute(txCtx, applicationID,
			func(a *models.Application) error {
				return a.CanVerify(docs)
			},
			func(a *models.Application) {
				a.ApplyVerification(now, actor.ID, certificateNumber, registrationDate)
			},
		)
		if err != nil {
			var blocked *models.BlockedByRejectedDocumentsError
			if errors.As(err, &blocked) {
				return dErrors.Wrap(err, dErrors.CodeValidation, "application has rejected documents awaiting reupload")
			}
			return wrapStoreErr(err, "application")
		}

		_, err = s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionApplicationVerified,
			ResourceType: audit.ResourceApplication,
			ResourceID:   applicationID.String(),
			Details: map[string]any{
				"certificate_number": certificateNumber,
				"registration_date":  registrationDate.Format("2006-01-02"),
			},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			s.incVerificationsBlocked()
		}
		return nil, err
	}
	s.incApplicationsVerified()

	// Post-commit side effects. Failures are logged and swallowed:
	// verification has already succeeded and must report success.
	s.notifyOwner(ctx, notification.Notification{
		UserID:        app.OwnerUserID,
		Type:          notification.TypeApplicationVerified,
		Title:         "Application verified",
		Message:       "Your marriage registration application has been verified.",
		ApplicationID: &app.ID,
	})
	effectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), secondaryEffectTimeout)
	defer cancel()
	if _, err := s.issuer.IssueIfAbsent(effectCtx, app); err != nil {
		s.incIssuanceFailures()
		s.logger.ErrorContext(ctx, "certificate issuance deferred after verification",
			"application_id", applicationID.String(),
			"error", err.Error(),
		)
	}
	return app, nil
}

// UnverifyApplication unconditionally resets the verification flag. An
// already-issued certificate and its download flag are untouched.
func (s *WorkflowService) UnverifyApplication(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var app *models.Application
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		app, err = s.applications.Execute(txCtx, applicationID, nil,
			func(a *models.Application) {
				a.ApplyUnverification(now)
			},
		)
		if err != nil {
			return wrapStoreErr(err, "application")
		}
		_, err = s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionApplicationUnverified,
			ResourceType: audit.ResourceApplication,
			ResourceID:   applicationID.String(),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.incApplicationsUnverified()
	return app, nil
}

// UpdateApplication applies a partial update to the editable fields with no
// gating logic. The audit entry lists the names of changed fields, never
// their values.
func (s *WorkflowService) UpdateApplication(ctx context.Context, applicationID id.ApplicationID, update models.ApplicationUpdate) (*models.Application, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		app     *models.Application
		changed []string
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		app, err = s.applications.Execute(txCtx, applicationID, nil,
			func(a *models.Application) {
				changed = a.ApplyUpdate(update, now)
			},
		)
		if err != nil {
			return wrapStoreErr(err, "application")
		}
		_, err = s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionApplicationUpdated,
			ResourceType: audit.ResourceApplication,
			ResourceID:   applicationID.String(),
			Details:      map[string]any{"changed_fields": changed},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// GetApplication returns the application with its owned documents.
func (s *WorkflowService) GetApplication(ctx context.Context, applicationID id.ApplicationID) (*models.Application, []*models.Document, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, nil, wrapStoreErr(err, "application")
	}
	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list application documents")
	}
	return app, docs, nil
}

// notifyOwner dispatches a notification with a bounded timeout, logging and
// swallowing any failure.
func (s *WorkflowService) notifyOwner(ctx context.Context, n notification.Notification) {
	if s.dispatcher == nil {
		return
	}
	n.CreatedAt = requestcontext.Now(ctx)
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), secondaryEffectTimeout)
	defer cancel()
	if err := s.dispatcher.Notify(notifyCtx, n); err != nil {
		s.incNotificationFailures()
		s.logger.WarnContext(ctx, "notification dispatch failed",
			"user_id", n.UserID.String(),
			"type", string(n.Type),
			"error", err.Error(),
		)
	}
}

func (s *WorkflowService) incApplicationsVerified() {
	if s.metrics != nil {
		s.metrics.ApplicationsVerified.Inc()
	}
}

func (s *WorkflowService) incApplicationsUnverified() {
	if s.metrics != nil {
		s.metrics.ApplicationsUnverified.Inc()
	}
}

func (s *WorkflowService) incVerificationsBlocked() {
	if s.metrics != nil {
		s.metrics.VerificationsBlocked.Inc()
	}
}

func (s *WorkflowService) incNotificationFailures() {
	if s.metrics != nil {
		s.metrics.NotificationFailures.Inc()
	}
}

func (s *WorkflowService) incIssuanceFailures() {
	if s.metrics != nil {
		s.metrics.IssuanceFailures.Inc()
	}
}
