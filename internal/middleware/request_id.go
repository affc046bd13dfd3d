package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"
)

// maxInboundIDLength caps client-supplied IDs that end up in logs.
const maxInboundIDLength = 128

type correlationKey struct{}

// correlation holds the IDs that tie one request's log lines together.
type correlation struct {
	requestID string
	traceID   string
}

// RequestID tags every request with an ID, echoed in X-Request-ID. A
// well-formed inbound X-Request-ID is reused; anything else is replaced with
// a fresh UUID. A well-formed X-Trace-ID is passed through, otherwise dropped.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := correlation{
			requestID: r.Header.Get(RequestIDHeader),
			traceID:   r.Header.Get(TraceIDHeader),
		}
		if !isSafeID(c.requestID) {
			c.requestID = uuid.NewString()
		}
		if !isSafeID(c.traceID) {
			c.traceID = ""
		}

		w.Header().Set(RequestIDHeader, c.requestID)
		if c.traceID != "" {
			w.Header().Set(TraceIDHeader, c.traceID)
		}

		ctx := context.WithValue(r.Context(), correlationKey{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func correlationFrom(ctx context.Context) correlation {
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

// GetRequestID returns the request ID, or "" outside RequestID.
func GetRequestID(ctx context.Context) string { return correlationFrom(ctx).requestID }

// GetTraceID returns the inbound trace ID, or "".
func GetTraceID(ctx context.Context) string { return correlationFrom(ctx).traceID }

// isSafeID accepts short IDs made of URL-safe characters.
func isSafeID(id string) bool {
	if id == "" || len(id) > maxInboundIDLength {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
