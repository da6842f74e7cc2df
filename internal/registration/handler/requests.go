package handler

import (
	"strings"
	"time"

	"vivaha/internal/registration/models"
	dErrors "vivaha/pkg/domain-errors"
)

// registrationDateLayout is the wire format for registration dates.
const registrationDateLayout = "2006-01-02"

// VerifyRequest is the HTTP request body for POST /applications/{id}/verify.
type VerifyRequest struct {
	CertificateNumber string `json:"certificate_number"`
	RegistrationDate  string `json:"registration_date"`

	parsedRegistrationDate time.Time
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CertificateNumber = strings.TrimSpace(r.CertificateNumber)
	if r.CertificateNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "certificate_number is required")
	}
	if len(r.CertificateNumber) > 64 {
		return dErrors.New(dErrors.CodeValidation, "certificate_number must be at most 64 characters")
	}
	r.RegistrationDate = strings.TrimSpace(r.RegistrationDate)
	if r.RegistrationDate == "" {
		return dErrors.New(dErrors.CodeValidation, "registration_date is required")
	}
	parsed, err := time.Parse(registrationDateLayout, r.RegistrationDate)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "registration_date must be formatted YYYY-MM-DD")
	}
	r.parsedRegistrationDate = parsed
	return nil
}

// ParsedRegistrationDate returns the validated registration date.
func (r *VerifyRequest) ParsedRegistrationDate() time.Time {
	return r.parsedRegistrationDate
}

// UpdateApplicationRequest is the HTTP request body for
// PATCH /applications/{id}. Omitted members leave the field unchanged.
type UpdateApplicationRequest struct {
	Status       *string               `json:"status,omitempty"`
	Groom        *models.PersonDetails `json:"groom,omitempty"`
	Bride        *models.PersonDetails `json:"bride,omitempty"`
	Declarations *models.Declarations  `json:"declarations,omitempty"`
	Progress     *int                  `json:"progress,omitempty"`

	parsed models.ApplicationUpdate
}

// Validate validates and parses the request.
func (r *UpdateApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	update := models.ApplicationUpdate{
		Groom:        r.Groom,
		Bride:        r.Bride,
		Declarations: r.Declarations,
		Progress:     r.Progress,
	}
	if r.Status != nil {
		status := models.ApplicationStatus(strings.TrimSpace(*r.Status))
		update.Status = &status
	}
	if err := update.Validate(); err != nil {
		return err
	}
	r.parsed = update
	return nil
}

// ParsedUpdate returns the validated partial update.
func (r *UpdateApplicationRequest) ParsedUpdate() models.ApplicationUpdate {
	return r.parsed
}

// RejectDocumentRequest is the HTTP request body for
// POST /documents/{id}/reject.
type RejectDocumentRequest struct {
	Reason string `json:"reason"`
	// Notify asks for a best-effort owner notification; it defaults off so
	// reviewers can batch rejections without spamming the applicant.
	Notify bool `json:"notify"`
}

// Validate validates the request.
func (r *RejectDocumentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}

// ReuploadDocumentRequest is the HTTP request body for
// POST /documents/{id}/reupload. Content is base64-encoded in JSON.
type ReuploadDocumentRequest struct {
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
}

// Validate validates the request.
func (r *ReuploadDocumentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	return nil
}
