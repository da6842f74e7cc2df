package handler

import (
	"time"

	"vivaha/internal/registration/models"
)

// ApplicationResponse is the HTTP representation of an application.
type ApplicationResponse struct {
	ID                string               `json:"id"`
	OwnerUserID       string               `json:"owner_user_id"`
	Status            string               `json:"status"`
	Groom             models.PersonDetails `json:"groom"`
	Bride             models.PersonDetails `json:"bride"`
	Declarations      models.Declarations  `json:"declarations"`
	Progress          int                  `json:"progress"`
	CreatedByAdmin    bool                 `json:"created_by_admin"`
	Verified          bool                 `json:"verified"`
	VerifiedAt        *time.Time           `json:"verified_at,omitempty"`
	CertificateNumber string               `json:"certificate_number,omitempty"`
	RegistrationDate  *string              `json:"registration_date,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// FromApplication converts a domain application to an HTTP response.
func FromApplication(app *models.Application) *ApplicationResponse {
	resp := &ApplicationResponse{
		ID:                app.ID.String(),
		OwnerUserID:       app.OwnerUserID.String(),
		Status:            string(app.Status),
		Groom:             app.Groom,
		Bride:             app.Bride,
		Declarations:      app.Declarations,
		Progress:          app.Progress,
		CreatedByAdmin:    app.CreatedByAdmin,
		Verified:          app.Verified,
		VerifiedAt:        app.VerifiedAt,
		CertificateNumber: app.CertificateNumber,
		CreatedAt:         app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}
	if app.RegistrationDate != nil {
		formatted := app.RegistrationDate.Format(registrationDateLayout)
		resp.RegistrationDate = &formatted
	}
	return resp
}

// DocumentResponse is the HTTP representation of a document.
type DocumentResponse struct {
	ID              string    `json:"id"`
	ApplicationID   string    `json:"application_id"`
	Type            string    `json:"type"`
	BelongsTo       string    `json:"belongs_to"`
	Label           string    `json:"label"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	IsReuploaded    bool      `json:"is_reuploaded"`
	ContentURL      string    `json:"content_url"`
	UploadedAt      time.Time `json:"uploaded_at"`
}

// FromDocument converts a domain document to an HTTP response.
func FromDocument(doc *models.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:              doc.ID.String(),
		ApplicationID:   doc.ApplicationID.String(),
		Type:            string(doc.Type),
		BelongsTo:       string(doc.BelongsTo),
		Label:           doc.Label(),
		Status:          string(doc.Status),
		RejectionReason: doc.RejectionReason,
		IsReuploaded:    doc.IsReuploaded,
		ContentURL:      doc.ContentURL,
		UploadedAt:      doc.UploadedAt,
	}
}

// FromDocuments converts a document list, never returning null for an empty
// list.
func FromDocuments(docs []*models.Document) []*DocumentResponse {
	out := make([]*DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, FromDocument(doc))
	}
	return out
}

// ApplicationDetailResponse is the application together with its documents.
type ApplicationDetailResponse struct {
	Application *ApplicationResponse `json:"application"`
	Documents   []*DocumentResponse  `json:"documents"`
}

// VerifyBlockedResponse is returned with 400 when the document gate refuses
// verification. BlockedDocuments carries the human labels of the offenders.
type VerifyBlockedResponse struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description"`
	BlockedDocuments []string `json:"blocked_documents"`
}

// CertificateResponse is the HTTP representation of a certificate.
type CertificateResponse struct {
	ID                string    `json:"id"`
	ApplicationID     string    `json:"application_id"`
	CertificateNumber string    `json:"certificate_number"`
	RegistrationDate  string    `json:"registration_date"`
	GroomName         string    `json:"groom_name"`
	BrideName         string    `json:"bride_name"`
	PDFURL            string    `json:"pdf_url"`
	CanDownload       bool      `json:"can_download"`
	IssuedAt          time.Time `json:"issued_at"`
}

// FromCertificate converts a domain certificate to an HTTP response.
func FromCertificate(cert *models.Certificate) *CertificateResponse {
	return &CertificateResponse{
		ID:                cert.ID.String(),
		ApplicationID:     cert.ApplicationID.String(),
		CertificateNumber: cert.CertificateNumber,
		RegistrationDate:  cert.RegistrationDate.Format(registrationDateLayout),
		GroomName:         cert.GroomName,
		BrideName:         cert.BrideName,
		PDFURL:            cert.PDFURL,
		CanDownload:       cert.CanDownload,
		IssuedAt:          cert.IssuedAt,
	}
}
