package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/RagingGuard/simple-video-share/internal/log"
	"github.com/RagingGuard/simple-video-share/internal/xerrors"
)

// Recover converts handler panics into 500 responses and logs them with
// a stack. onPanic, when non-nil, is invoked once per recovered panic
// (metrics counter hook). http.ErrAbortHandler is re-raised so the
// server can abort the connection the way net/http expects.
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				if onPanic != nil {
					onPanic()
				}

				var err error
				if e, ok := rec.(error); ok {
					err = xerrors.Wrap(e, "panic")
				} else {
					err = xerrors.Newf("panic: %v", rec)
				}

				if logger != nil {
					logger.With(
						"http.request.method", r.Method,
						"url.path", r.URL.Path,
					).Error(r.Context(), err, "httpserver panic recovered",
						"stack", string(debug.Stack()),
					)
				}

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
