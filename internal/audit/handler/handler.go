// Package handler exposes the audit console query endpoint.
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vivaha/internal/audit"
	"vivaha/pkg/platform/httputil"
)

// Handler serves read access to the audit trail.
type Handler struct {
	recorder *audit.Recorder
	logger   *slog.Logger
}

func New(recorder *audit.Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// Register mounts the audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleQuery)
}

// EntryResponse is the HTTP representation of an audit entry.
type EntryResponse struct {
	ID           string         `json:"id"`
	ActorID      string         `json:"actor_id"`
	ActorName    string         `json:"actor_name"`
	ActorRole    string         `json:"actor_role"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	ClientIP     string         `json:"client_ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// QueryResponse wraps the entry list.
type QueryResponse struct {
	Entries []EntryResponse `json:"entries"`
}

// HandleQuery handles GET /audit requests. Filters arrive as the query
// parameters actor_role, action, and q; all are optional and combine with
// AND semantics.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters := audit.Filters{
		ActorRole:      strings.TrimSpace(r.URL.Query().Get("actor_role")),
		ActionContains: strings.TrimSpace(r.URL.Query().Get("action")),
		Search:         strings.TrimSpace(r.URL.Query().Get("q")),
	}
	entries, err := h.recorder.Query(ctx, filters)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := QueryResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, EntryResponse{
			ID:           entry.ID.String(),
			ActorID:      entry.ActorID.String(),
			ActorName:    entry.ActorName,
			ActorRole:    entry.ActorRole,
			Action:       string(entry.Action),
			ResourceType: string(entry.ResourceType),
			ResourceID:   entry.ResourceID,
			Details:      entry.Details,
			ClientIP:     entry.ClientIP,
			UserAgent:    entry.UserAgent,
			RequestID:    entry.RequestID,
			Timestamp:    entry.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
