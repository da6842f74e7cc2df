// Package audit keeps the immutable record of every state-changing
// administrative action. Entries are append-only: no update or delete path
// exists anywhere in this package or its stores.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "vivaha/pkg/domain"
)

// Action names the primary transition an entry records.
type Action string

const (
	ActionApplicationVerified        Action = "application_verified"
	ActionApplicationUnverified      Action = "application_unverified"
	ActionApplicationUpdated         Action = "application_updated"
	ActionDocumentApproved           Action = "document_approved"
	ActionDocumentRejected           Action = "document_rejected"
	ActionDocumentReuploaded         Action = "document_reuploaded"
	ActionCertificateGenerated       Action = "certificate_generated"
	ActionCertificateDownloadEnabled Action = "certificate_download_enabled"
)

// ResourceType names the entity an entry is about.
type ResourceType string

const (
	ResourceApplication ResourceType = "application"
	ResourceDocument    ResourceType = "document"
	ResourceCertificate ResourceType = "certificate"
)

// Entry is one immutable audit record. Details carries structured facts about
// the transition (changed field names, rejection reason, certificate number);
// it never carries applicant personal data beyond what the transition needs.
type Entry struct {
	ID           uuid.UUID      `json:"id"`
	ActorID      id.UserID      `json:"actor_id"`
	ActorName    string         `json:"actor_name"`
	ActorRole    string         `json:"actor_role"`
	Action       Action         `json:"action"`
	ResourceType ResourceType   `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	ClientIP     string         `json:"client_ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Filters narrow a read-only query over the log. Zero values match
// everything; the query surface exposes no mutation capability.
type Filters struct {
	ActorRole      string
	ActionContains string
	Search         string
}
