package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vivaha/internal/audit"
	auditmemory "vivaha/internal/audit/store/memory"
	"vivaha/internal/notification"
	"vivaha/internal/registration/lock"
	"vivaha/internal/registration/models"
	"vivaha/internal/registration/service"
	applicationstore "vivaha/internal/registration/store/application"
	certificatestore "vivaha/internal/registration/store/certificate"
	documentstore "vivaha/internal/registration/store/document"
	"vivaha/internal/render"
	"vivaha/internal/storage"
	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
	"vivaha/pkg/testutil"
)

// HandlerSuite drives the admin API against the full service stack over
// in-memory stores, the same wiring cmd/server uses without Postgres.
type HandlerSuite struct {
	suite.Suite
	now    time.Time
	router chi.Router

	applications *applicationstore.InMemory
	documents    *documentstore.InMemory
	certificates *certificatestore.InMemory
	auditStore   *auditmemory.InMemoryStore

	app *models.Application
	doc *models.Document
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	s.applications = applicationstore.NewInMemory()
	s.documents = documentstore.NewInMemory()
	s.certificates = certificatestore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(s.auditStore)
	dispatcher := notification.NewLogDispatcher(log)

	issuer := service.NewCertificateService(s.certificates, s.applications, recorder, render.NewTextRenderer(), storage.NewInMemory())
	workflow := service.NewWorkflowService(s.applications, s.documents, recorder, issuer, dispatcher, lock.NewKeyedMutex())
	docs := service.NewDocumentService(s.documents, s.applications, recorder, dispatcher, storage.NewInMemory())

	s.router = chi.NewRouter()
	New(workflow, docs, issuer, log).Register(s.router)

	ctx := context.Background()
	s.app = models.NewApplication(id.ApplicationID(uuid.New()), id.UserID(uuid.New()), s.now)
	s.app.Groom.FullName = "Arjun Sharma"
	s.app.Bride.FullName = "Priya Patel"
	s.app.CreatedByAdmin = true
	s.Require().NoError(s.applications.Create(ctx, s.app))

	s.doc = models.NewDocument(id.DocumentID(uuid.New()), s.app.ID, models.DocumentTypeAadhaar, models.DocumentOwnerUser, "mem://aadhaar", s.now)
	s.Require().NoError(s.documents.Create(ctx, s.doc))
}

func (s *HandlerSuite) TestVerify() {
	s.Run("verifies and returns the application", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+s.app.ID.String()+"/verify", VerifyRequest{
			CertificateNumber: "MH-2025-00042",
			RegistrationDate:  "2025-06-01",
		})
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[ApplicationResponse](s.T(), rr)
		s.True(resp.Verified)
		s.Equal("MH-2025-00042", resp.CertificateNumber)
		s.Require().NotNil(resp.RegistrationDate)
		s.Equal("2025-06-01", *resp.RegistrationDate)
	})

	s.Run("missing certificate number is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+s.app.ID.String()+"/verify", VerifyRequest{
			RegistrationDate: "2025-06-01",
		})
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("without an actor the request is unauthorized", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+s.app.ID.String()+"/verify", VerifyRequest{
			CertificateNumber: "MH-2025-00042",
			RegistrationDate:  "2025-06-01",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})
}

func (s *HandlerSuite) TestVerifyBlockedByRejectedDocument() {
	ctx := context.Background()
	_, err := s.documents.Execute(ctx, s.doc.ID, nil, func(d *models.Document) {
		d.ApplyRejection("blurry scan")
	})
	s.Require().NoError(err)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+s.app.ID.String()+"/verify", VerifyRequest{
		CertificateNumber: "MH-2025-00042",
		RegistrationDate:  "2025-06-01",
	})
	rr := testutil.DoRequest(s.router, testutil.WithActor(req))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)

	resp := testutil.UnmarshalResponse[VerifyBlockedResponse](s.T(), rr)
	s.Equal(string(dErrors.CodeValidation), resp.Error)
	s.Equal([]string{"Groom's Aadhaar Card"}, resp.BlockedDocuments)
}

func (s *HandlerSuite) TestUnverify() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/applications/"+s.app.ID.String()+"/unverify")
	rr := testutil.DoRequest(s.router, testutil.WithActor(req))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[ApplicationResponse](s.T(), rr)
	s.False(resp.Verified)
}

func (s *HandlerSuite) TestUpdateApplication() {
	s.Run("applies a partial update", func() {
		status := "under_review"
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/applications/"+s.app.ID.String(), UpdateApplicationRequest{
			Status: &status,
		})
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[ApplicationResponse](s.T(), rr)
		s.Equal("under_review", resp.Status)
	})

	s.Run("rejects an unknown status", func() {
		status := "archived"
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/applications/"+s.app.ID.String(), UpdateApplicationRequest{
			Status: &status,
		})
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestGetApplication() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/applications/"+s.app.ID.String())
	rr := testutil.DoRequest(s.router, testutil.WithActor(req))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[ApplicationDetailResponse](s.T(), rr)
	s.Equal(s.app.ID.String(), resp.Application.ID)
	s.Require().Len(resp.Documents, 1)
	s.Equal("Groom's Aadhaar Card", resp.Documents[0].Label)
}

func (s *HandlerSuite) TestGetApplicationNotFound() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/applications/"+uuid.NewString())
	rr := testutil.DoRequest(s.router, testutil.WithActor(req))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
}

func (s *HandlerSuite) TestDocumentReview() {
	s.Run("approve", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/documents/"+s.doc.ID.String()+"/approve")
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[DocumentResponse](s.T(), rr)
		s.Equal("approved", resp.Status)
	})

	s.Run("reject an approved document fails", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/documents/"+s.doc.ID.String()+"/reject", RejectDocumentRequest{
			Reason: "too late",
		})
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvariantViolation))
	})
}

func (s *HandlerSuite) TestDocumentRejectAndReupload() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/documents/"+s.doc.ID.String()+"/reject", RejectDocumentRequest{
		Reason: "blurry scan",
	})
	rr := testutil.DoRequest(s.router, testutil.WithActor(req))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[DocumentResponse](s.T(), rr)
	s.Equal("rejected", resp.Status)
	s.Equal("blurry scan", resp.RejectionReason)

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/documents/"+s.doc.ID.String()+"/reupload", ReuploadDocumentRequest{
		Content:     []byte("fresh aadhaar scan"),
		ContentType: "image/png",
	})
	rr = testutil.DoRequest(s.router, testutil.WithActor(req))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp = testutil.UnmarshalResponse[DocumentResponse](s.T(), rr)
	s.Equal("pending", resp.Status)
	s.True(resp.IsReuploaded)
	s.Empty(resp.RejectionReason)
}

func (s *HandlerSuite) TestCertificateEndpoints() {
	verify := testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+s.app.ID.String()+"/verify", VerifyRequest{
		CertificateNumber: "MH-2025-00042",
		RegistrationDate:  "2025-06-01",
	})
	rr := testutil.DoRequest(s.router, testutil.WithActor(verify))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	s.Run("get certificate", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/applications/"+s.app.ID.String()+"/certificate")
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[CertificateResponse](s.T(), rr)
		s.Equal("MH-2025-00042", resp.CertificateNumber)
		s.False(resp.CanDownload)
	})

	s.Run("explicit generate conflicts with the certificate verify issued", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/applications/"+s.app.ID.String()+"/certificate")
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
		s.Equal(1, s.certificates.Len())
	})

	s.Run("enable download", func() {
		cert, err := s.certificates.FindByApplication(context.Background(), s.app.ID)
		s.Require().NoError(err)

		req := testutil.NewRequest(s.T(), http.MethodPost, "/certificates/"+cert.ID.String()+"/enable-download")
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[CertificateResponse](s.T(), rr)
		s.True(resp.CanDownload)
	})

	s.Run("certificate for unknown application is not found", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/applications/"+uuid.NewString()+"/certificate")
		rr := testutil.DoRequest(s.router, testutil.WithActor(req))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}
