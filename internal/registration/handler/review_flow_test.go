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
	"github.com/stretchr/testify/require"

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
	"vivaha/pkg/testutil"
)

// TestDocumentReviewFlow walks a rejected document through reupload and
// approval over the HTTP surface, end to end on the in-memory stack.
func TestDocumentReviewFlow(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	applications := applicationstore.NewInMemory()
	documents := documentstore.NewInMemory()
	certificates := certificatestore.NewInMemory()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(auditmemory.NewInMemoryStore())
	dispatcher := notification.NewLogDispatcher(log)
	files := storage.NewInMemory()

	issuer := service.NewCertificateService(certificates, applications, recorder, render.NewTextRenderer(), files)
	workflow := service.NewWorkflowService(applications, documents, recorder, issuer, dispatcher, lock.NewKeyedMutex())
	docs := service.NewDocumentService(documents, applications, recorder, dispatcher, files)

	router := chi.NewRouter()
	New(workflow, docs, issuer, log).Register(router)

	app := models.NewApplication(id.ApplicationID(uuid.New()), id.UserID(uuid.New()), now)
	app.CreatedByAdmin = true
	require.NoError(t, applications.Create(ctx, app))

	doc := models.NewDocument(id.DocumentID(uuid.New()), app.ID, models.DocumentTypeAadhaar, models.DocumentOwnerUser, "mem://aadhaar", now)
	require.NoError(t, documents.Create(ctx, doc))

	testutil.Given(t, "a rejected document", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/documents/"+doc.ID.String()+"/reject", RejectDocumentRequest{
			Reason: "blurry scan",
		})
		rr := testutil.DoRequest(router, testutil.WithActor(req))
		testutil.AssertStatus(t, rr, http.StatusOK)

		testutil.When(t, "approval is attempted before a reupload", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/documents/"+doc.ID.String()+"/approve")
			rr := testutil.DoRequest(router, testutil.WithActor(req))

			testutil.Then(t, "the transition is refused", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusConflict)
			})
		})

		testutil.When(t, "the registrar submits replacement content", func(t *testing.T) {
			replacement := []byte("fresh aadhaar scan")
			req := testutil.NewJSONRequest(t, http.MethodPost, "/documents/"+doc.ID.String()+"/reupload", ReuploadDocumentRequest{
				Content:     replacement,
				ContentType: "image/png",
			})
			rr := testutil.DoRequest(router, testutil.WithActor(req))
			testutil.AssertStatus(t, rr, http.StatusOK)

			testutil.Then(t, "the replacement lands in the object store", func(t *testing.T) {
				resp := testutil.UnmarshalResponse[DocumentResponse](t, rr)
				require.Equal(t, "pending", resp.Status)
				require.True(t, resp.IsReuploaded)

				stored, err := documents.FindByID(ctx, doc.ID)
				require.NoError(t, err)
				content, ok := files.Get(stored.ContentURL)
				require.True(t, ok)
				require.Equal(t, replacement, content)
			})

			testutil.Then(t, "the document can now be approved", func(t *testing.T) {
				req := testutil.NewRequest(t, http.MethodPost, "/documents/"+doc.ID.String()+"/approve")
				rr := testutil.DoRequest(router, testutil.WithActor(req))
				testutil.AssertStatus(t, rr, http.StatusOK)

				resp := testutil.UnmarshalResponse[DocumentResponse](t, rr)
				require.Equal(t, "approved", resp.Status)
			})
		})
	})
}
