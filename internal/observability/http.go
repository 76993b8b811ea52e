package observability

import (
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// EnsureRequestID stamps a request id on outgoing requests that lack one.
func EnsureRequestID(r *http.Request) string {
	if id := RequestIDFromRequest(r); id != "" {
		return id
	}
	id := uuid.NewString()
	r.Header.Set(RequestIDHeader, id)
	return id
}
