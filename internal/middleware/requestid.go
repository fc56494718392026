package middleware

import (
	"context"
	"net/http"

	"github.com/NeapolitanIcecream/openbridge/internal/ids"
)

type contextKey int

const requestIDKey contextKey = 0

// NewRequestIDMiddleware echoes an inbound X-Request-ID or mints one with the
// "req" prefix, attaching it to the request context and the response header.
func NewRequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = ids.New("req")
			}

			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestID returns the request ID bound to ctx by NewRequestIDMiddleware,
// or the empty string if none was bound.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
