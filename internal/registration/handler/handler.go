// Package handler exposes the registrar admin API over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
	"vivaha/pkg/platform/httputil"
	"vivaha/pkg/requestcontext"
)

// WorkflowService defines the application verification operations.
type WorkflowService interface {
	VerifyApplication(ctx context.Context, applicationID id.ApplicationID, certificateNumber string, registrationDate time.Time) (*models.Application, error)
	UnverifyApplication(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error)
	UpdateApplication(ctx context.Context, applicationID id.ApplicationID, update models.ApplicationUpdate) (*models.Application, error)
	GetApplication(ctx context.Context, applicationID id.ApplicationID) (*models.Application, []*models.Document, error)
}

// DocumentService defines the document review operations.
type DocumentService interface {
	ApproveDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	RejectDocument(ctx context.Context, documentID id.DocumentID, reason string, notify bool) (*models.Document, error)
	ReuploadDocument(ctx context.Context, documentID id.DocumentID, content []byte, contentType string) (*models.Document, error)
}

// CertificateService defines the certificate operations.
type CertificateService interface {
	GenerateCertificate(ctx context.Context, applicationID id.ApplicationID) (*models.Certificate, error)
	EnableDownload(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error)
	GetCertificate(ctx context.Context, applicationID id.ApplicationID) (*models.Certificate, error)
}

// Handler wires registration endpoints to their services.
type Handler struct {
	workflow     WorkflowService
	documents    DocumentService
	certificates CertificateService
	logger       *slog.Logger
}

// New constructs a registration handler with its dependencies.
func New(workflow WorkflowService, documents DocumentService, certificates CertificateService, logger *slog.Logger) *Handler {
	return &Handler{
		workflow:     workflow,
		documents:    documents,
		certificates: certificates,
		logger:       logger,
	}
}

// Register mounts registration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/applications/{applicationID}", h.HandleGetApplication)
	r.Patch("/applications/{applicationID}", h.HandleUpdateApplication)
	r.Post("/applications/{applicationID}/verify", h.HandleVerify)
	r.Post("/applications/{applicationID}/unverify", h.HandleUnverify)
	r.Post("/applications/{applicationID}/certificate", h.HandleGenerateCertificate)
	r.Get("/applications/{applicationID}/certificate", h.HandleGetCertificate)
	r.Post("/documents/{documentID}/approve", h.HandleApproveDocument)
	r.Post("/documents/{documentID}/reject", h.HandleRejectDocument)
	r.Post("/documents/{documentID}/reupload", h.HandleReuploadDocument)
	r.Post("/certificates/{certificateID}/enable-download", h.HandleEnableDownload)
}

func applicationIDParam(r *http.Request) (id.ApplicationID, error) {
	return id.ParseApplicationID(chi.URLParam(r, "applicationID"))
}

// HandleVerify handles POST /applications/{id}/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	applicationID, err := applicationIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.workflow.VerifyApplication(ctx, applicationID, req.CertificateNumber, req.ParsedRegistrationDate())
	if err != nil {
		var blocked *models.BlockedByRejectedDocumentsError
		if errors.As(err, &blocked) {
			httputil.WriteJSON(w, http.StatusBadRequest, VerifyBlockedResponse{
				Error:            string(dErrors.CodeValidation),
				ErrorDescription: "application has rejected documents awaiting reupload",
				BlockedDocuments: blocked.Labels,
			})
			return
		}
		h.logger.ErrorContext(ctx, "application verification failed",
			"request_id", requestID,
			"application_id", applicationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application verified",
		"request_id", requestID,
		"application_id", applicationID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleUnverify handles POST /applications/{id}/unverify requests.
func (h *Handler) HandleUnverify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	applicationID, err := applicationIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, err := h.workflow.UnverifyApplication(ctx, applicationID)
	if err != nil {
		h.logger.ErrorContext(ctx, "application unverification failed",
			"request_id", requestID,
			"application_id", applicationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleUpdateApplication handles PATCH /applications/{id} requests.
func (h *Handler) HandleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	applicationID, err := applicationIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.workflow.UpdateApplication(ctx, applicationID, req.ParsedUpdate())
	if err != nil {
		h.logger.ErrorContext(ctx, "application update failed",
			"request_id", requestID,
			"application_id", applicationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleGetApplication handles GET /applications/{id} requests.
func (h *Handler) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	applicationID, err := applicationIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, docs, err := h.workflow.GetApplication(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ApplicationDetailResponse{
		Application: FromApplication(app),
		Documents:   FromDocuments(docs),
	})
}

// HandleApproveDocument handles POST /documents/{id}/approve requests.
func (h *Handler) HandleApproveDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.documents.ApproveDocument(ctx, documentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "document approval failed",
			"request_id", requestID,
			"document_id", documentID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleRejectDocument handles POST /documents/{id}/reject requests.
func (h *Handler) HandleRejectDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RejectDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	doc, err := h.documents.RejectDocument(ctx, documentID, req.Reason, req.Notify)
	if err != nil {
		h.logger.ErrorContext(ctx, "document rejection failed",
			"request_id", requestID,
			"document_id", documentID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleReuploadDocument handles POST /documents/{id}/reupload requests.
func (h *Handler) HandleReuploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReuploadDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	doc, err := h.documents.ReuploadDocument(ctx, documentID, req.Content, req.ContentType)
	if err != nil {
		h.logger.ErrorContext(ctx, "document reupload failed",
			"request_id", requestID,
			"document_id", documentID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleGenerateCertificate handles POST /applications/{id}/certificate
// requests.
func (h *Handler) HandleGenerateCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	applicationID, err := applicationIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.certificates.GenerateCertificate(ctx, applicationID)
	if err != nil {
		h.logger.ErrorContext(ctx, "certificate generation failed",
			"request_id", requestID,
			"application_id", applicationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCertificate(cert))
}

// HandleGetCertificate handles GET /applications/{id}/certificate requests.
func (h *Handler) HandleGetCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	applicationID, err := applicationIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.certificates.GetCertificate(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCertificate(cert))
}

// HandleEnableDownload handles POST /certificates/{id}/enable-download
// requests.
func (h *Handler) HandleEnableDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.certificates.EnableDownload(ctx, certificateID)
	if err != nil {
		h.logger.ErrorContext(ctx, "enable download failed",
			"request_id", requestID,
			"certificate_id", certificateID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCertificate(cert))
}
