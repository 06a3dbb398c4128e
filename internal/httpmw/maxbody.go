package httpmw

import "net/http"

// MaxBody caps request body size. Only the gate endpoints accept bodies
// (a small JSON credential), so the cap can be tight. Oversized bodies get
// 413 when the handler reads them.
func MaxBody(bytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, bytes)
			next.ServeHTTP(w, r)
		})
	}
}
