package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/proplex/searchd/pkg/logger"
)

// HeaderRequestID is the header used to propagate request ids between
// services and back to clients.
const HeaderRequestID = "X-Request-ID"

// RequestID returns middleware that ensures every request carries a request
// id. An incoming X-Request-ID header is honoured; otherwise a new UUID is
// generated. The id is stored in the request context and echoed in the
// response header.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			ctx := logger.WithRequestID(r.Context(), id)
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
