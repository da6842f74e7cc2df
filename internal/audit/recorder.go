package audit

import (
	"context"

	"github.com/google/uuid"

	"vivaha/pkg/requestcontext"
)

// Store persists audit entries. Append is a pure insert; implementations
// expose no update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	Query(ctx context.Context, filters Filters) ([]Entry, error)
}

// Recorder captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Append assigns the entry an ID and timestamp (request-scoped when
// available) and enriches it with request metadata before inserting. The
// caller runs it inside the primary transaction so the log never records a
// transition that did not commit.
func (r *Recorder) Append(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if entry.ClientIP == "" {
		entry.ClientIP = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = requestcontext.UserAgent(ctx)
	}
	return r.store.Append(ctx, entry)
}

// Query exposes the read-only audit console search.
func (r *Recorder) Query(ctx context.Context, filters Filters) ([]Entry, error) {
	return r.store.Query(ctx, filters)
}
