package models

import (
	"time"

	id "vivaha/pkg/domain"
)

// Certificate is the issued marriage certificate record.
//
// Invariants:
//   - At most one certificate exists per application; the store enforces
//     uniqueness on ApplicationID and issuance is idempotent on top of it.
//   - CanDownload starts false and is flipped true only by an explicit admin
//     action. Issuance never flips it.
type Certificate struct {
	ID                id.CertificateID `json:"id"`
	ApplicationID     id.ApplicationID `json:"application_id"`
	VerificationID    string           `json:"verification_id"`
	CertificateNumber string           `json:"certificate_number"`
	RegistrationDate  time.Time        `json:"registration_date"`
	GroomName         string           `json:"groom_name"`
	BrideName         string           `json:"bride_name"`
	PDFURL            string           `json:"pdf_url"`
	CanDownload       bool             `json:"can_download"`
	IssuedAt          time.Time        `json:"issued_at"`
}

// CertificateSnapshot is the application data handed to the PDF renderer.
// It is a value copy so rendering never observes concurrent mutation.
type CertificateSnapshot struct {
	ApplicationID     id.ApplicationID
	CertificateNumber string
	RegistrationDate  time.Time
	GroomName         string
	BrideName         string
}

// SnapshotForCertificate captures the renderer inputs from a verified
// application.
func SnapshotForCertificate(app *Application) CertificateSnapshot {
	snapshot := CertificateSnapshot{
		ApplicationID:     app.ID,
		CertificateNumber: app.CertificateNumber,
		GroomName:         app.Groom.FullName,
		BrideName:         app.Bride.FullName,
	}
	if app.RegistrationDate != nil {
		snapshot.RegistrationDate = *app.RegistrationDate
	}
	return snapshot
}
