package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LibraryInfo reports which media bundle is currently installed.
type LibraryInfo interface {
	InstalledHash() string
}

// LibraryHeaders middleware adds an X-Library-Hash header to all responses
// when the media library was installed from a published bundle, so operators
// can tell at a glance which bundle a response was served from.
func LibraryHeaders(info LibraryInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info != nil {
				if h := info.InstalledHash(); h != "" {
					// Use short hash for header (first 12 chars)
					headerHash := h
					if len(headerHash) > 12 {
						headerHash = headerHash[:12]
					}
					w.Header().Set("X-Library-Hash", headerHash)

					// Enrich the current trace span with the bundle hash
					if span := trace.SpanFromContext(r.Context()); span != nil && span.IsRecording() {
						span.SetAttributes(attribute.String("library.hash", headerHash))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
