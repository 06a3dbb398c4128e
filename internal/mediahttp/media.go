package mediahttp

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RagingGuard/simple-video-share/internal/httprange"
	"github.com/RagingGuard/simple-video-share/internal/library"
)

// HandleMedia streams one file from the scope's root, honoring a single
// byte range. The response headers are what browser video players key
// off: Accept-Ranges always, Content-Range and an exact Content-Length
// on 206. HEAD gets full headers and no body.
func (api *API) HandleMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	root, scope := api.scopeRoot(r)

	abs, err := root.Resolve(name)
	if err != nil {
		if errors.Is(err, library.ErrForbidden) {
			api.metrics.IncTraversalRejected()
			api.logger.Warn(ctx, "rejected media path outside content root",
				"path", name,
				"scope", scope.String(),
			)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(abs)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", library.ContentType(name))

	rng := httprange.Parse(r.Header.Get("Range"), size)
	switch rng.Kind {
	case httprange.Unsatisfiable:
		api.metrics.IncRangeRequest("unsatisfiable")
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)

	case httprange.Satisfiable:
		api.metrics.IncRangeRequest("partial")
		w.Header().Set("Content-Range",
			"bytes "+strconv.FormatInt(rng.Start, 10)+"-"+strconv.FormatInt(rng.End, 10)+"/"+strconv.FormatInt(size, 10))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		w.WriteHeader(http.StatusPartialContent)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			// Headers are out; nothing to do but drop the connection.
			api.logger.Error(ctx, err, "seek failed mid-response", "path", name)
			return
		}
		n, err := io.CopyN(w, f, rng.Length())
		api.metrics.AddMediaBytes(n)
		if err != nil {
			// Client disconnects land here too; debug, not error.
			api.logger.Debug(ctx, "media stream aborted",
				"path", name,
				"sent", n,
				"error", err,
			)
		}

	default:
		api.metrics.IncRangeRequest("full")
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		n, err := io.Copy(w, f)
		api.metrics.AddMediaBytes(n)
		if err != nil {
			api.logger.Debug(ctx, "media stream aborted",
				"path", name,
				"sent", n,
				"error", err,
			)
		}
	}
}
