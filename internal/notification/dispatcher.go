// Package notification carries best-effort user notifications out of the
// registration workflow. Dispatch failures are the caller's to log and
// swallow; nothing here may block or fail a primary transition.
package notification

import (
	"context"
	"log/slog"
	"time"

	id "vivaha/pkg/domain"
)

// Type classifies a notification for the recipient's inbox.
type Type string

const (
	TypeApplicationVerified Type = "application_verified"
	TypeDocumentRejected    Type = "document_rejected"
)

// Notification is the message handed to the dispatcher.
type Notification struct {
	UserID        id.UserID         `json:"user_id"`
	Type          Type              `json:"type"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	ApplicationID *id.ApplicationID `json:"application_id,omitempty"`
	DocumentID    *id.DocumentID    `json:"document_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Dispatcher delivers a notification. Implementations may fail; callers
// treat any error as a secondary-effect failure.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification) error
}

// LogDispatcher writes notifications to the structured log. It is the
// default sink when no broker is configured and never fails.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(ctx context.Context, n Notification) error {
	d.logger.InfoContext(ctx, "notification dispatched",
		"user_id", n.UserID.String(),
		"type", string(n.Type),
		"title", n.Title,
	)
	return nil
}
