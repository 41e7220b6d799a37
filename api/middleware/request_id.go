package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableorders-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	// Set by Google's front ends as TRACE_ID/SPAN_ID;o=OPTIONS.
	cloudTraceHeader = "X-Cloud-Trace-Context"
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID tags each request with an id: the caller's X-Request-Id when well formed,
// else the Cloud trace id, else a fresh UUID. The id is echoed back and logged.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := resolveRequestID(r.Header)
			w.Header().Set(requestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveRequestID(h http.Header) string {
	if id := h.Get(requestIDHeader); requestIDPattern.MatchString(id) {
		return id
	}
	if trace, _, _ := strings.Cut(h.Get(cloudTraceHeader), "/"); requestIDPattern.MatchString(trace) {
		return trace
	}
	return uuid.NewString()
}
