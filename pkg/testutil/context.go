package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	id "vivaha/pkg/domain"
	"vivaha/pkg/requestcontext"
)

// TestActor returns a stable admin actor for tests.
func TestActor() requestcontext.ActorInfo {
	return requestcontext.ActorInfo{
		ID:   id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
		Name: "Asha Registrar",
		Role: "registrar",
	}
}

// ContextWithActor builds a context carrying the test admin actor.
// This simulates what the auth middleware does for authenticated requests.
func ContextWithActor(ctx context.Context) context.Context {
	return requestcontext.WithActor(ctx, TestActor())
}

// ContextAt builds a context with the test actor and a fixed request time so
// assertions on timestamps are deterministic.
func ContextAt(ctx context.Context, now time.Time) context.Context {
	return requestcontext.WithTime(ContextWithActor(ctx), now)
}

// WithActor attaches the test admin actor to the request context.
func WithActor(req *http.Request) *http.Request {
	return req.WithContext(ContextWithActor(req.Context()))
}
