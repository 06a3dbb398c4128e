// Package mediahttp serves the public HTTP surface: the embedded player
// page, the media catalog, ranged media streaming, and the token gate
// endpoints for the restricted library.
package mediahttp

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RagingGuard/simple-video-share/internal/library"
	"github.com/RagingGuard/simple-video-share/internal/log"
	"github.com/RagingGuard/simple-video-share/internal/metrics"
	"github.com/RagingGuard/simple-video-share/internal/tokengate"
)

// Options configures the API.
type Options struct {
	// Public and Restricted are the two content roots. Restricted may
	// point at a nonexistent directory; it then serves an empty catalog.
	Public     library.Root
	Restricted library.Root

	// Gate owns the single-use access tokens for the restricted root.
	Gate *tokengate.Gate

	// GateSecret is the credential /gate/verify checks. Empty disables
	// the gate entirely; every verify attempt is denied.
	GateSecret string

	// PlayerFS holds the embedded player page (index.html at its root).
	PlayerFS fs.FS

	Logger  log.Logger
	Metrics *metrics.ServerMetrics
}

// API implements the media endpoints.
type API struct {
	public     library.Root
	restricted library.Root
	gate       *tokengate.Gate
	gateSecret string
	logger     log.Logger
	metrics    *metrics.ServerMetrics
	playerPage []byte
}

// NewAPI builds the handler set. The player page is read from
// opts.PlayerFS once at construction.
func NewAPI(opts Options) (*API, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	page, err := fs.ReadFile(opts.PlayerFS, "index.html")
	if err != nil {
		return nil, err
	}

	return &API{
		public:     opts.Public,
		restricted: opts.Restricted,
		gate:       opts.Gate,
		gateSecret: opts.GateSecret,
		logger:     logger,
		metrics:    opts.Metrics,
		playerPage: page,
	}, nil
}

// RegisterRoutes attaches the public endpoints to the router. gateMW is
// applied to the password check only; everything else stays unthrottled
// so playback never competes with an abuse limiter.
func (api *API) RegisterRoutes(r chi.Router, gateMW ...func(http.Handler) http.Handler) {
	r.Get("/", api.HandleIndex)
	r.Get("/secret", api.HandleSecretLanding)
	r.Get("/catalog", api.HandleCatalog)
	r.Get("/media/*", api.HandleMedia)
	r.Head("/media/*", api.HandleMedia)
	r.With(gateMW...).Post("/gate/verify", api.HandleGateVerify)
	r.Post("/gate/invalidate", api.HandleGateInvalidate)
}

// scopeRoot maps the token carried by a request to the content root it
// may resolve against. Invalid or absent tokens degrade to the public
// root; they are never an error.
func (api *API) scopeRoot(r *http.Request) (library.Root, tokengate.Scope) {
	scope := api.gate.PeekScope(r.URL.Query().Get("token"))
	if scope == tokengate.Restricted {
		return api.restricted, scope
	}
	return api.public, scope
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
