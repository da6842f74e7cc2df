package service

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"vivaha/internal/audit"
	"vivaha/internal/notification"
	regmetrics "vivaha/internal/registration/metrics"
	"vivaha/internal/registration/models"
	"vivaha/internal/storage"
	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
	"vivaha/pkg/requestcontext"
)

// DocumentService reviews uploaded documents: approve, reject, and accept
// citizen reuploads of rejected documents. Replacement content goes through
// the object store; the service only keeps the returned URL.
type DocumentService struct {
	documents    DocumentStore
	applications ApplicationStore
	recorder     *audit.Recorder
	dispatcher   notification.Dispatcher
	files        storage.Storage
	tx           StoreTx
	logger       *slog.Logger
	metrics      *regmetrics.Metrics
	tracer       trace.Tracer
}

func NewDocumentService(
	documents DocumentStore,
	applications ApplicationStore,
	recorder *audit.Recorder,
	dispatcher notification.Dispatcher,
	files storage.Storage,
	opts ...Option,
) *DocumentService {
	cfg := buildConfig(opts)
	return &DocumentService{
		documents:    documents,
		applications: applications,
		recorder:     recorder,
		dispatcher:   dispatcher,
		files:        files,
		tx:           cfg.tx,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		tracer:       cfg.tracer,
	}
}

// ApproveDocument marks a document approved. Approval is terminal: an
// approved document can no longer be rejected or re-approved.
func (s *DocumentService) ApproveDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "documents.approve")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	var doc *models.Document
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err = s.documents.Execute(txCtx, documentID,
			func(d *models.Document) error { return d.CanApprove() },
			func(d *models.Document) { d.ApplyApproval() },
		)
		if err != nil {
			return wrapStoreErr(err, "document")
		}
		if err := s.recomputeProgress(txCtx, doc.ApplicationID); err != nil {
			return err
		}
		_, err = s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionDocumentApproved,
			ResourceType: audit.ResourceDocument,
			ResourceID:   documentID.String(),
			Details: map[string]any{
				"application_id": doc.ApplicationID.String(),
				"document":       doc.Label(),
			},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.incDocumentsApproved()
	return doc, nil
}

// RejectDocument marks a document rejected with the reviewer's reason. A
// rejected document blocks verification of its application until the citizen
// reuploads it. The owner is notified only when the reviewer asks for it;
// dispatch stays best-effort either way.
func (s *DocumentService) RejectDocument(ctx context.Context, documentID id.DocumentID, reason string, notify bool) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "documents.reject")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}

	var (
		doc *models.Document
		app *models.Application
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err = s.documents.Execute(txCtx, documentID,
			func(d *models.Document) error { return d.CanReject() },
			func(d *models.Document) { d.ApplyRejection(reason) },
		)
		if err != nil {
			return wrapStoreErr(err, "document")
		}
		app, err = s.applications.FindByID(txCtx, doc.ApplicationID)
		if err != nil {
			return wrapStoreErr(err, "application")
		}
		if err := s.recomputeProgress(txCtx, doc.ApplicationID); err != nil {
			return err
		}
		_, err = s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionDocumentRejected,
			ResourceType: audit.ResourceDocument,
			ResourceID:   documentID.String(),
			Details: map[string]any{
				"application_id": doc.ApplicationID.String(),
				"document":       doc.Label(),
				"reason":         reason,
				"notify":         notify,
			},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.incDocumentsRejected()

	if notify {
		s.notifyOwner(ctx, notification.Notification{
			UserID:        app.OwnerUserID,
			Type:          notification.TypeDocumentRejected,
			Title:         "Document rejected",
			Message:       doc.Label() + " was rejected: " + reason,
			ApplicationID: &doc.ApplicationID,
		})
	}
	return doc, nil
}

// ReuploadDocument stores the replacement content and marks a rejected
// document reuploaded, which clears its hold on verification. Only rejected
// documents accept a reupload.
func (s *DocumentService) ReuploadDocument(ctx context.Context, documentID id.DocumentID, content []byte, contentType string) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "documents.reupload")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "replacement content is required")
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	contentURL, err := s.files.Store(ctx, content, contentType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store replacement content")
	}

	now := requestcontext.Now(ctx)
	var doc *models.Document
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.documents.FindByID(txCtx, documentID)
		if err != nil {
			return wrapStoreErr(err, "document")
		}
		app, err := s.applications.FindByID(txCtx, existing.ApplicationID)
		if err != nil {
			return wrapStoreErr(err, "application")
		}
		// Registrars reupload on behalf of offline applicants only; online
		// applicants replace documents through their own portal.
		if !app.CreatedByAdmin {
			return dErrors.New(dErrors.CodeForbidden, "reupload on behalf of the applicant is only available for offline applications")
		}
		doc, err = s.documents.Execute(txCtx, documentID,
			func(d *models.Document) error { return d.CanReupload() },
			func(d *models.Document) { d.ApplyReupload(contentURL, now) },
		)
		if err != nil {
			return wrapStoreErr(err, "document")
		}
		if err := s.recomputeProgress(txCtx, doc.ApplicationID); err != nil {
			return err
		}
		_, err = s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionDocumentReuploaded,
			ResourceType: audit.ResourceDocument,
			ResourceID:   documentID.String(),
			Details: map[string]any{
				"application_id": doc.ApplicationID.String(),
				"document":       doc.Label(),
			},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		return nil
	})
	if err != nil {
		s.removeDocumentFile(ctx, contentURL)
		return nil, err
	}
	s.incDocumentsReuploaded()
	return doc, nil
}

// removeDocumentFile cleans up a stored replacement that never made it onto a
// document. Failures are logged; an orphaned object is not worth failing the
// request over.
func (s *DocumentService) removeDocumentFile(ctx context.Context, contentURL string) {
	if err := s.files.Delete(ctx, contentURL); err != nil {
		s.logger.WarnContext(ctx, "failed to remove orphaned document content",
			slog.String("content_url", contentURL),
			slog.Any("error", err),
		)
	}
}

// ListDocuments returns the documents of an application in upload order.
func (s *DocumentService) ListDocuments(ctx context.Context, applicationID id.ApplicationID) ([]*models.Document, error) {
	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list application documents")
	}
	return docs, nil
}

// recomputeProgress refreshes the application's review-progress percentage
// after a document transition. It runs inside the same transaction as the
// transition.
func (s *DocumentService) recomputeProgress(ctx context.Context, applicationID id.ApplicationID) error {
	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list application documents")
	}
	_, err = s.applications.Execute(ctx, applicationID, nil,
		func(a *models.Application) { a.RecomputeProgress(docs) },
	)
	if err != nil {
		return wrapStoreErr(err, "application")
	}
	return nil
}

func (s *DocumentService) notifyOwner(ctx context.Context, n notification.Notification) {
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

func (s *DocumentService) incDocumentsApproved() {
	if s.metrics != nil {
		s.metrics.DocumentsApproved.Inc()
	}
}

func (s *DocumentService) incDocumentsRejected() {
	if s.metrics != nil {
		s.metrics.DocumentsRejected.Inc()
	}
}

func (s *DocumentService) incDocumentsReuploaded() {
	if s.metrics != nil {
		s.metrics.DocumentsReuploaded.Inc()
	}
}

func (s *DocumentService) incNotificationFailures() {
	if s.metrics != nil {
		s.metrics.NotificationFailures.Inc()
	}
}
