package models

import (
	"strings"
	"time"

	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
)

// ApplicationStatus tracks the submission lifecycle of an application.
// It is deliberately independent of the Verified flag: verification is the
// registrar's document-gate decision, status is the applicant-facing stage.
// The two are not coupled anywhere in the core.
type ApplicationStatus string

const (
	ApplicationStatusDraft       ApplicationStatus = "draft"
	ApplicationStatusSubmitted   ApplicationStatus = "submitted"
	ApplicationStatusUnderReview ApplicationStatus = "under_review"
	ApplicationStatusApproved    ApplicationStatus = "approved"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
)

// Address is a validated postal address. Applicant details arrive as explicit
// records at the boundary, never as untyped maps.
type Address struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	PinCode  string `json:"pin_code"`
	District string `json:"district,omitempty"`
}

// PersonDetails describes one party to the marriage.
type PersonDetails struct {
	FullName    string  `json:"full_name"`
	FatherName  string  `json:"father_name,omitempty"`
	MotherName  string  `json:"mother_name,omitempty"`
	DateOfBirth string  `json:"date_of_birth,omitempty"`
	Nationality string  `json:"nationality,omitempty"`
	Address     Address `json:"address"`
}

// Declarations are the statutory checkboxes both parties confirm before
// submission.
type Declarations struct {
	TermsAccepted    bool `json:"terms_accepted"`
	InfoAccurate     bool `json:"info_accurate"`
	NoLegalObjection bool `json:"no_legal_objection"`
}

// Application is the aggregate root for a marriage registration.
//
// Invariants:
//   - Verified may flip false→true only when no owned Document is
//     rejected without a subsequent reupload (the document gate).
//   - VerifiedAt/VerifiedBy/CertificateNumber/RegistrationDate are set
//     together on verification and cleared together on unverification.
//   - CreatedByAdmin is immutable; it marks offline applicants registered at
//     a facilitation desk and gates the document-reupload capability.
type Application struct {
	ID                id.ApplicationID  `json:"id"`
	OwnerUserID       id.UserID         `json:"owner_user_id"`
	Status            ApplicationStatus `json:"status"`
	Groom             PersonDetails     `json:"groom"`
	Bride             PersonDetails     `json:"bride"`
	Declarations      Declarations      `json:"declarations"`
	Progress          int               `json:"progress"`
	CreatedByAdmin    bool              `json:"created_by_admin"`
	Verified          bool              `json:"verified"`
	VerifiedAt        *time.Time        `json:"verified_at,omitempty"`
	VerifiedBy        *id.UserID        `json:"verified_by,omitempty"`
	CertificateNumber string            `json:"certificate_number,omitempty"`
	RegistrationDate  *time.Time        `json:"registration_date,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewApplication constructs a draft application owned by the applicant.
func NewApplication(applicationID id.ApplicationID, owner id.UserID, now time.Time) *Application {
	return &Application{
		ID:          applicationID,
		OwnerUserID: owner,
		Status:      ApplicationStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanVerify checks the document gate: verification is refused while any
// owned document is rejected and not yet reuploaded. The returned error
// enumerates the offending documents by human label so the registrar knows
// exactly what to wait for.
func (a *Application) CanVerify(docs []*Document) error {
	labels := BlockingLabels(docs)
	if len(labels) > 0 {
		return &BlockedByRejectedDocumentsError{Labels: labels}
	}
	return nil
}

// ApplyVerification flips the verified flag and records the registrar's
// certificate details. Call CanVerify first; this method does not re-check
// the gate.
func (a *Application) ApplyVerification(now time.Time, verifiedBy id.UserID, certificateNumber string, registrationDate time.Time) {
	a.Verified = true
	a.VerifiedAt = &now
	a.VerifiedBy = &verifiedBy
	a.CertificateNumber = certificateNumber
	a.RegistrationDate = &registrationDate
	a.UpdatedAt = now
}

// ApplyUnverification unconditionally resets the verification flag and its
// companion fields. An already-issued certificate is untouched; revoking it
// is a separate, unimplemented product decision.
func (a *Application) ApplyUnverification(now time.Time) {
	a.Verified = false
	a.VerifiedAt = nil
	a.VerifiedBy = nil
	a.UpdatedAt = now
}

// ApplicationUpdate is a partial update to the editable fields. Nil members
// are left unchanged.
type ApplicationUpdate struct {
	Status       *ApplicationStatus `json:"status,omitempty"`
	Groom        *PersonDetails     `json:"groom,omitempty"`
	Bride        *PersonDetails     `json:"bride,omitempty"`
	Declarations *Declarations      `json:"declarations,omitempty"`
	Progress     *int               `json:"progress,omitempty"`
}

var validStatuses = map[ApplicationStatus]bool{
	ApplicationStatusDraft:       true,
	ApplicationStatusSubmitted:   true,
	ApplicationStatusUnderReview: true,
	ApplicationStatusApproved:    true,
	ApplicationStatusRejected:    true,
}

// Validate rejects malformed partial updates before they reach the store.
func (u *ApplicationUpdate) Validate() error {
	if u.Status != nil && !validStatuses[*u.Status] {
		return dErrors.New(dErrors.CodeValidation, "unknown application status: "+string(*u.Status))
	}
	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 100) {
		return dErrors.New(dErrors.CodeValidation, "progress must be between 0 and 100")
	}
	if u.Groom != nil && strings.TrimSpace(u.Groom.FullName) == "" {
		return dErrors.New(dErrors.CodeValidation, "groom full name must not be empty")
	}
	if u.Bride != nil && strings.TrimSpace(u.Bride.FullName) == "" {
		return dErrors.New(dErrors.CodeValidation, "bride full name must not be empty")
	}
	return nil
}

// ApplyUpdate mutates the editable fields and returns the names of fields
// that changed. Only field names flow into the audit log, never values.
func (a *Application) ApplyUpdate(update ApplicationUpdate, now time.Time) []string {
	var changed []string
	if update.Status != nil && *update.Status != a.Status {
		a.Status = *update.Status
		changed = append(changed, "status")
	}
	if update.Groom != nil {
		a.Groom = *update.Groom
		changed = append(changed, "groom")
	}
	if update.Bride != nil {
		a.Bride = *update.Bride
		changed = append(changed, "bride")
	}
	if update.Declarations != nil {
		a.Declarations = *update.Declarations
		changed = append(changed, "declarations")
	}
	if update.Progress != nil && *update.Progress != a.Progress {
		a.Progress = *update.Progress
		changed = append(changed, "progress")
	}
	if len(changed) > 0 {
		a.UpdatedAt = now
	}
	return changed
}

// RecomputeProgress derives the document-review progress percentage from the
// owned documents. It has no role in gating.
func (a *Application) RecomputeProgress(docs []*Document) {
	if len(docs) == 0 {
		a.Progress = 0
		return
	}
	approved := 0
	for _, doc := range docs {
		if doc.Status == DocumentStatusApproved {
			approved++
		}
	}
	a.Progress = approved * 100 / len(docs)
}

// BlockedByRejectedDocumentsError is returned when verification is refused
// because rejected documents are still awaiting reupload.
type BlockedByRejectedDocumentsError struct {
	Labels []string
}

func (e *BlockedByRejectedDocumentsError) Error() string {
	return "application blocked by rejected documents: " + strings.Join(e.Labels, ", ")
}
