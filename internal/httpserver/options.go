package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RagingGuard/simple-video-share/internal/health"
	"github.com/RagingGuard/simple-video-share/internal/httpmw"
	"github.com/RagingGuard/simple-video-share/internal/log"
)

type Options struct {
	Logger       log.Logger
	BindAddress  string // listen address, empty means all interfaces
	Port         int
	UseRecoverMW bool
	OnPanic      func() // invoked once per recovered panic (metrics hook)
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	APIRoutes    func(chi.Router) // application routes (catalog, media, gate)
	Health       health.Probe
	Readiness    health.Probe
	LibraryInfo  httpmw.LibraryInfo // For the X-Library-Hash header
}
