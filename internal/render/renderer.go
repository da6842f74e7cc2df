// Package render defines the certificate PDF renderer contract. Rendering
// mechanics are a collaborator concern; the core only needs deterministic
// bytes for a given snapshot.
package render

import (
	"fmt"

	"vivaha/internal/registration/models"
)

// Renderer is a pure function from application data to PDF bytes.
type Renderer interface {
	RenderCertificatePDF(snapshot models.CertificateSnapshot) ([]byte, error)
}

// TextRenderer produces a minimal placeholder payload in lieu of a real PDF
// pipeline. Deployments swap in a template-driven renderer behind the same
// interface.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) RenderCertificatePDF(snapshot models.CertificateSnapshot) ([]byte, error) {
	body := fmt.Sprintf(
		"MARRIAGE CERTIFICATE\nCertificate No: %s\nRegistration Date: %s\nGroom: %s\nBride: %s\n",
		snapshot.CertificateNumber,
		snapshot.RegistrationDate.Format("2006-01-02"),
		snapshot.GroomName,
		snapshot.BrideName,
	)
	return []byte(body), nil
}
