package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"vivaha/internal/audit"
	regmetrics "vivaha/internal/registration/metrics"
	"vivaha/internal/registration/models"
	"vivaha/internal/render"
	"vivaha/internal/storage"
	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
	"vivaha/pkg/platform/sentinel"
	"vivaha/pkg/requestcontext"
)

// CertificateService issues certificates for verified applications and
// controls their download flag.
type CertificateService struct {
	certificates CertificateStore
	applications ApplicationStore
	recorder     *audit.Recorder
	renderer     render.Renderer
	files        storage.Storage
	tx           StoreTx
	logger       *slog.Logger
	metrics      *regmetrics.Metrics
	tracer       trace.Tracer
}

func NewCertificateService(
	certificates CertificateStore,
	applications ApplicationStore,
	recorder *audit.Recorder,
	renderer render.Renderer,
	files storage.Storage,
	opts ...Option,
) *CertificateService {
	cfg := buildConfig(opts)
	return &CertificateService{
		certificates: certificates,
		applications: applications,
		recorder:     recorder,
		renderer:     renderer,
		files:        files,
		tx:           cfg.tx,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		tracer:       cfg.tracer,
	}
}

// IssueIfAbsent creates the certificate for a verified application exactly
// once. Calling it again, from any goroutine, returns the existing record.
// The fresh certificate is never downloadable; that takes a separate
// EnableDownload call.
func (s *CertificateService) IssueIfAbsent(ctx context.Context, app *models.Application) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.issue_if_absent")
	defer span.End()

	if app == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "application is required")
	}
	if !app.Verified {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot issue a certificate for an unverified application")
	}

	existing, err := s.certificates.FindByApplication(ctx, app.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certificate")
	}

	cert, err := s.issueNew(ctx, app)
	if err != nil {
		// A concurrent issuer won the insert race; return the winner.
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			existing, findErr := s.certificates.FindByApplication(ctx, app.ID)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to look up certificate")
			}
			return existing, nil
		}
		return nil, err
	}
	return cert, nil
}

// renderCertificate renders the PDF, stores it, and builds the certificate
// record. Nothing is inserted; the caller owns the insert and, on failure,
// removal of the stored file.
func (s *CertificateService) renderCertificate(ctx context.Context, app *models.Application) (*models.Certificate, error) {
	pdf, err := s.renderer.RenderCertificatePDF(models.SnapshotForCertificate(app))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render certificate")
	}
	pdfURL, err := s.files.Store(ctx, pdf, "application/pdf")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate file")
	}

	cert := &models.Certificate{
		ID:                id.CertificateID(uuid.New()),
		ApplicationID:     app.ID,
		VerificationID:    uuid.NewString(),
		CertificateNumber: app.CertificateNumber,
		GroomName:         app.Groom.FullName,
		BrideName:         app.Bride.FullName,
		PDFURL:            pdfURL,
		CanDownload:       false,
		IssuedAt:          requestcontext.Now(ctx),
	}
	if app.RegistrationDate != nil {
		cert.RegistrationDate = *app.RegistrationDate
	}
	return cert, nil
}

// removeCertificateFile deletes a stored PDF that never got a certificate
// row, logging and swallowing any failure.
func (s *CertificateService) removeCertificateFile(ctx context.Context, pdfURL string) {
	if delErr := s.files.Delete(ctx, pdfURL); delErr != nil {
		s.logger.WarnContext(ctx, "failed to delete orphaned certificate file",
			"url", pdfURL,
			"error", delErr.Error(),
		)
	}
}

// issueNew renders, stores, and inserts a fresh certificate. An insert that
// loses to a concurrent issuer returns sentinel.ErrAlreadyUsed after the
// orphaned file is removed.
func (s *CertificateService) issueNew(ctx context.Context, app *models.Application) (*models.Certificate, error) {
	cert, err := s.renderCertificate(ctx, app)
	if err != nil {
		return nil, err
	}
	if err := s.certificates.Create(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.removeCertificateFile(ctx, cert.PDFURL)
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate")
	}
	s.incCertificatesIssued()
	s.logger.InfoContext(ctx, "certificate issued",
		"application_id", app.ID.String(),
		"certificate_id", cert.ID.String(),
	)
	return cert, nil
}

// GenerateCertificate explicitly issues the certificate for an application,
// recording the action in the audit trail. The workflow engine issues
// implicitly on verification; this endpoint covers the retry path when that
// deferred issuance failed. Unlike IssueIfAbsent it is an intentional action
// expecting a fresh result, so an already-issued certificate is a conflict,
// and renderer or storage failures surface to the caller.
func (s *CertificateService) GenerateCertificate(ctx context.Context, applicationID id.ApplicationID) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.generate")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, wrapStoreErr(err, "application")
	}
	if !app.Verified {
		return nil, dErrors.New(dErrors.CodeConflict, "application must be verified before a certificate can be generated")
	}

	_, err = s.certificates.FindByApplication(ctx, applicationID)
	if err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "a certificate has already been issued for this application")
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certificate")
	}

	cert, err := s.renderCertificate(ctx, app)
	if err != nil {
		return nil, err
	}

	// The audit entry and the insert commit together: a generated certificate
	// must never outlive a failed append, or retries would hit the conflict
	// path and the issuance would stay unrecorded.
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionCertificateGenerated,
			ResourceType: audit.ResourceCertificate,
			ResourceID:   cert.ID.String(),
			Details: map[string]any{
				"application_id":     applicationID.String(),
				"certificate_number": cert.CertificateNumber,
			},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		if err := s.certificates.Create(txCtx, cert); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate")
		}
		return nil
	})
	if err != nil {
		s.removeCertificateFile(ctx, cert.PDFURL)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "a certificate has already been issued for this application")
		}
		return nil, err
	}
	s.incCertificatesIssued()
	s.logger.InfoContext(ctx, "certificate issued",
		"application_id", applicationID.String(),
		"certificate_id", cert.ID.String(),
	)
	return cert, nil
}

// EnableDownload flips the certificate's download flag. This is the only
// path that makes a certificate downloadable.
func (s *CertificateService) EnableDownload(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	var cert *models.Certificate
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		cert, err = s.certificates.Execute(txCtx, certificateID, nil,
			func(c *models.Certificate) {
				c.CanDownload = true
			},
		)
		if err != nil {
			return wrapStoreErr(err, "certificate")
		}
		_, err = s.recorder.Append(txCtx, audit.Entry{
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			ActorRole:    actor.Role,
			Action:       audit.ActionCertificateDownloadEnabled,
			ResourceType: audit.ResourceCertificate,
			ResourceID:   certificateID.String(),
			Details: map[string]any{
				"application_id": cert.ApplicationID.String(),
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
	return cert, nil
}

// GetCertificate returns the certificate for an application.
func (s *CertificateService) GetCertificate(ctx context.Context, applicationID id.ApplicationID) (*models.Certificate, error) {
	cert, err := s.certificates.FindByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no certificate issued for application %s", applicationID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certificate")
	}
	return cert, nil
}

func (s *CertificateService) incCertificatesIssued() {
	if s.metrics != nil {
		s.metrics.CertificatesIssued.Inc()
	}
}
