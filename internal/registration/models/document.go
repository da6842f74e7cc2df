package models

import (
	"time"

	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
)

// DocumentType classifies an uploaded proof.
type DocumentType string

const (
	DocumentTypeAadhaar          DocumentType = "aadhaar"
	DocumentTypeTenthCertificate DocumentType = "tenth_certificate"
	DocumentTypeVoterID          DocumentType = "voter_id"
	DocumentTypeID               DocumentType = "id"
	DocumentTypePhoto            DocumentType = "photo"
	DocumentTypeCertificate      DocumentType = "certificate"
	DocumentTypeOther            DocumentType = "other"
)

// DocumentOwner says which party a proof belongs to.
type DocumentOwner string

const (
	DocumentOwnerUser    DocumentOwner = "user"
	DocumentOwnerPartner DocumentOwner = "partner"
	DocumentOwnerJoint   DocumentOwner = "joint"
)

// DocumentStatus is the review state of a proof.
//
// Transitions: pending →approve→ approved (terminal);
// pending →reject→ rejected; rejected →reupload→ pending (sets IsReuploaded).
// No transition leaves approved.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// Document is a single uploaded proof owned by an application.
type Document struct {
	ID              id.DocumentID    `json:"id"`
	ApplicationID   id.ApplicationID `json:"application_id"`
	Type            DocumentType     `json:"type"`
	BelongsTo       DocumentOwner    `json:"belongs_to"`
	Status          DocumentStatus   `json:"status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	IsReuploaded    bool             `json:"is_reuploaded"`
	ContentURL      string           `json:"content_url"`
	UploadedAt      time.Time        `json:"uploaded_at"`
}

// NewDocument constructs a pending document for an application.
func NewDocument(documentID id.DocumentID, applicationID id.ApplicationID, docType DocumentType, belongsTo DocumentOwner, contentURL string, now time.Time) *Document {
	return &Document{
		ID:            documentID,
		ApplicationID: applicationID,
		Type:          docType,
		BelongsTo:     belongsTo,
		Status:        DocumentStatusPending,
		ContentURL:    contentURL,
		UploadedAt:    now,
	}
}

// IsBlocking reports whether this document blocks verification of its
// application: rejected and not replaced since.
func (d *Document) IsBlocking() bool {
	return d.Status == DocumentStatusRejected && !d.IsReuploaded
}

// CanApprove checks the approve transition. Only pending documents can be
// approved; a rejected document must be reuploaded first, and approved is
// terminal.
func (d *Document) CanApprove() error {
	switch d.Status {
	case DocumentStatusApproved:
		return dErrors.New(dErrors.CodeInvariantViolation, "document is already approved")
	case DocumentStatusRejected:
		return dErrors.New(dErrors.CodeInvariantViolation, "rejected documents must be reuploaded before approval")
	default:
		return nil
	}
}

// ApplyApproval marks the document approved. Call CanApprove first.
func (d *Document) ApplyApproval() {
	d.Status = DocumentStatusApproved
	d.RejectionReason = ""
}

// CanReject checks the reject transition. An approved document cannot be
// rejected; re-review happens through a fresh upload.
func (d *Document) CanReject() error {
	if d.Status == DocumentStatusApproved {
		return dErrors.New(dErrors.CodeInvariantViolation, "approved documents cannot be rejected")
	}
	return nil
}

// ApplyRejection marks the document rejected with the reviewer's reason.
// Call CanReject first.
func (d *Document) ApplyRejection(reason string) {
	d.Status = DocumentStatusRejected
	d.RejectionReason = reason
}

// CanReupload checks the reupload transition: only rejected documents accept
// replacement content.
func (d *Document) CanReupload() error {
	if d.Status != DocumentStatusRejected {
		return dErrors.New(dErrors.CodeInvariantViolation, "only rejected documents can be reuploaded")
	}
	return nil
}

// ApplyReupload records the replacement content, returning the document to
// pending review. IsReuploaded removes it from the blocking set; it is read,
// never cleared, by subsequent verification attempts.
func (d *Document) ApplyReupload(contentURL string, now time.Time) {
	d.ContentURL = contentURL
	d.Status = DocumentStatusPending
	d.RejectionReason = ""
	d.IsReuploaded = true
	d.UploadedAt = now
}

var documentTypeLabels = map[DocumentType]string{
	DocumentTypeAadhaar:          "Aadhaar Card",
	DocumentTypeTenthCertificate: "10th Certificate",
	DocumentTypeVoterID:          "Voter ID",
	DocumentTypeID:               "ID Document",
	DocumentTypePhoto:            "Photo",
	DocumentTypeCertificate:      "Certificate",
	DocumentTypeOther:            "Other",
}

var documentOwnerLabels = map[DocumentOwner]string{
	DocumentOwnerUser:    "Groom's",
	DocumentOwnerPartner: "Bride's",
	DocumentOwnerJoint:   "Joint",
}

// Label renders the human name shown to registrars and applicants,
// e.g. "Groom's Aadhaar Card" or "Joint Photo".
func (d *Document) Label() string {
	owner, ok := documentOwnerLabels[d.BelongsTo]
	if !ok {
		owner = documentOwnerLabels[DocumentOwnerJoint]
	}
	typeLabel, ok := documentTypeLabels[d.Type]
	if !ok {
		typeLabel = documentTypeLabels[DocumentTypeOther]
	}
	return owner + " " + typeLabel
}

// BlockingLabels returns the human labels of every document that blocks
// verification, in input order.
func BlockingLabels(docs []*Document) []string {
	var labels []string
	for _, doc := range docs {
		if doc.IsBlocking() {
			labels = append(labels, doc.Label())
		}
	}
	return labels
}
