package testutil

import (
	"net/http"
	"time"

	"vialidad/pkg/requestcontext"
)

// WithOperator stamps an authenticated operator into the request context,
// simulating what the auth middleware does for a valid bearer token.
func WithOperator(req *http.Request, email string) *http.Request {
	return req.WithContext(requestcontext.WithOperatorEmail(req.Context(), email))
}

// WithFixedTime pins the request clock so date-sensitive operations are
// deterministic.
func WithFixedTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
