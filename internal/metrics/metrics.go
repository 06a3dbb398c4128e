package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RagingGuard/simple-video-share/internal/version"
)

type ServerMetrics struct {
	reg                    *prometheus.Registry
	handler                http.Handler
	inflight               prometheus.Gauge
	reqTotal               *prometheus.CounterVec
	reqDur                 *prometheus.HistogramVec
	respBytes              *prometheus.HistogramVec
	httpPanicTotal         prometheus.Counter
	buildInfo              *prometheus.GaugeVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	errorsTotal *prometheus.CounterVec

	profilingActive prometheus.Gauge

	// media serving
	mediaBytesTotal        prometheus.Counter
	rangeRequestsTotal     *prometheus.CounterVec
	traversalRejectedTotal prometheus.Counter

	// token gate
	tokensMintedTotal      prometheus.Counter
	tokensConsumedTotal    prometheus.Counter
	tokensRejectedTotal    *prometheus.CounterVec
	tokensInvalidatedTotal prometheus.Counter
	tokensSweptTotal       prometheus.Counter
	gateVerifyTotal        *prometheus.CounterVec

	// library sync
	syncPollsTotal    prometheus.Counter
	syncSwapsTotal    prometheus.Counter
	syncErrorsTotal   *prometheus.CounterVec
	syncDuration      prometheus.Histogram
	syncLastSuccessTs prometheus.Gauge
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		mediaBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_bytes_sent_total",
			Help: "Total media payload bytes written to clients",
		}),
		rangeRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_range_requests_total",
			Help: "Media requests by range outcome (full, partial, unsatisfiable)",
		}, []string{"outcome"}),
		traversalRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_traversal_rejected_total",
			Help: "Total media requests rejected for attempting to escape a content root",
		}),
		tokensMintedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_tokens_minted_total",
			Help: "Total access tokens minted",
		}),
		tokensConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_tokens_consumed_total",
			Help: "Total access tokens redeemed successfully",
		}),
		tokensRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_tokens_rejected_total",
			Help: "Total token redemptions rejected, by reason (unknown, already_used)",
		}, []string{"reason"}),
		tokensInvalidatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_tokens_invalidated_total",
			Help: "Total explicit token invalidations",
		}),
		tokensSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_tokens_swept_total",
			Help: "Total expired unused tokens removed by the sweeper",
		}),
		gateVerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_verify_total",
			Help: "Total gate password checks by result (ok, denied)",
		}, []string{"result"}),
		syncPollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_sync_polls_total",
			Help: "Total number of library sync poll cycles",
		}),
		syncSwapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_sync_swaps_total",
			Help: "Total number of successful library bundle installs",
		}),
		syncErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_sync_errors_total",
			Help: "Total library sync errors by type",
		}, []string{"type"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "library_sync_duration_seconds",
			Help:    "Time to download, verify, and extract a library bundle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		syncLastSuccessTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "library_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful library sync poll",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.errorsTotal,
		m.profilingActive,
		m.mediaBytesTotal,
		m.rangeRequestsTotal,
		m.traversalRejectedTotal,
		m.tokensMintedTotal,
		m.tokensConsumedTotal,
		m.tokensRejectedTotal,
		m.tokensInvalidatedTotal,
		m.tokensSweptTotal,
		m.gateVerifyTotal,
		m.syncPollsTotal,
		m.syncSwapsTotal,
		m.syncErrorsTotal,
		m.syncDuration,
		m.syncLastSuccessTs,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// Media and gate accessors tolerate a nil receiver so handler packages
// can be tested without a registry.

func (m *ServerMetrics) AddMediaBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.mediaBytesTotal.Add(float64(n))
}

func (m *ServerMetrics) IncRangeRequest(outcome string) {
	if m == nil {
		return
	}
	m.rangeRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) IncTraversalRejected() {
	if m == nil {
		return
	}
	m.traversalRejectedTotal.Inc()
}

func (m *ServerMetrics) IncTokenMinted() {
	if m == nil {
		return
	}
	m.tokensMintedTotal.Inc()
}

func (m *ServerMetrics) IncTokenConsumed() {
	if m == nil {
		return
	}
	m.tokensConsumedTotal.Inc()
}

func (m *ServerMetrics) IncTokenRejected(reason string) {
	if m == nil {
		return
	}
	m.tokensRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncTokenInvalidated() {
	if m == nil {
		return
	}
	m.tokensInvalidatedTotal.Inc()
}

func (m *ServerMetrics) AddTokensSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensSweptTotal.Add(float64(n))
}

func (m *ServerMetrics) IncGateVerify(result string) {
	if m == nil {
		return
	}
	m.gateVerifyTotal.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) IncSyncPolls() {
	if m == nil {
		return
	}
	m.syncPollsTotal.Inc()
}

func (m *ServerMetrics) IncSyncSwaps() {
	if m == nil {
		return
	}
	m.syncSwapsTotal.Inc()
}

func (m *ServerMetrics) IncSyncError(errType string) {
	if m == nil {
		return
	}
	m.syncErrorsTotal.WithLabelValues(errType).Inc()
}

func (m *ServerMetrics) ObserveSyncDuration(seconds float64) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(seconds)
}

func (m *ServerMetrics) SetSyncLastSuccess(unixSeconds float64) {
	if m == nil {
		return
	}
	m.syncLastSuccessTs.Set(unixSeconds)
}
