package medialoader

import (
	"context"
	"math"
	"time"

	"github.com/RagingGuard/simple-video-share/internal/log"
)

const (
	// DefaultPollInterval is how often the watcher checks SSM for a new hash.
	DefaultPollInterval = 60 * time.Second

	// maxBackoff caps exponential backoff on consecutive errors.
	maxBackoff = 10 * time.Minute
)

// Syncer is the interface the Watcher needs from a Loader. Extracted to
// decouple the Watcher from the concrete *Loader type for tests.
type Syncer interface {
	Sync(ctx context.Context) (hash string, installed bool, err error)
}

// WatcherMetrics is implemented by the metrics package to observe
// sync behavior.
type WatcherMetrics interface {
	IncSyncPolls()
	IncSyncSwaps()
	IncSyncError(errType string)
	ObserveSyncDuration(seconds float64)
	SetSyncLastSuccess(unixSeconds float64)
}

// WatcherOptions configures the bundle watcher.
type WatcherOptions struct {
	Logger       log.Logger
	Loader       Syncer
	PollInterval time.Duration

	// OnInstall is called after a bundle installs, with the new hash.
	// Called synchronously on the poll goroutine.
	OnInstall func(hash string)

	Metrics WatcherMetrics
}

// Watcher polls for published bundle changes and installs them.
type Watcher struct {
	loader    Syncer
	logger    log.Logger
	interval  time.Duration
	onInstall func(hash string)
	metrics   WatcherMetrics

	consecutiveErrs int
	pollCount       int64
	installCount    int64
}

// NewWatcher creates a bundle watcher. Call Run to start the poll loop.
func NewWatcher(opts *WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Watcher{
		loader:    opts.Loader,
		logger:    opts.Logger,
		interval:  interval,
		onInstall: opts.OnInstall,
		metrics:   opts.Metrics,
	}
}

// Run starts the poll loop. Blocks until ctx is cancelled.
// Intended to be launched as: go watcher.Run(ctx)
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info(ctx, "media bundle watcher starting",
		"poll_interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "media bundle watcher stopping",
				"reason", ctx.Err(),
				"polls", w.pollCount,
				"installs", w.installCount,
			)
			return ctx.Err()
		case <-ticker.C:
			if w.checkOnce(ctx) {
				if w.consecutiveErrs > 0 {
					w.logger.Info(ctx, "media bundle watcher recovered, resuming normal interval",
						"had_consecutive_errors", w.consecutiveErrs,
					)
					w.consecutiveErrs = 0
					ticker.Reset(w.interval)
				}
			} else {
				w.consecutiveErrs++
				backoff := w.backoffDuration()
				w.logger.Warn(ctx, "media bundle watcher backing off",
					"consecutive_errors", w.consecutiveErrs,
					"next_poll_in", backoff.String(),
				)
				ticker.Reset(backoff)
			}
		}
	}
}

// checkOnce runs a single sync cycle and reports whether it succeeded.
func (w *Watcher) checkOnce(ctx context.Context) bool {
	w.pollCount++
	if w.metrics != nil {
		w.metrics.IncSyncPolls()
	}

	start := time.Now()
	hash, installed, err := w.loader.Sync(ctx)
	if err != nil {
		w.logger.Error(ctx, err, "media bundle sync failed")
		if w.metrics != nil {
			w.metrics.IncSyncError("sync")
		}
		return false
	}

	if w.metrics != nil {
		w.metrics.SetSyncLastSuccess(float64(time.Now().Unix()))
	}

	if !installed {
		return true
	}

	w.installCount++
	if w.metrics != nil {
		w.metrics.IncSyncSwaps()
		w.metrics.ObserveSyncDuration(time.Since(start).Seconds())
	}
	w.logger.Info(ctx, "media bundle installed",
		"hash", truncHash(hash),
		"total_installs", w.installCount,
	)

	if w.onInstall != nil {
		w.onInstall(hash)
	}
	return true
}

// backoffDuration computes exponential backoff capped at maxBackoff.
// consecutiveErrs=1 → 2x interval, =2 → 4x, =3 → 8x, etc.
func (w *Watcher) backoffDuration() time.Duration {
	mult := math.Pow(2, float64(w.consecutiveErrs))
	d := time.Duration(float64(w.interval) * mult)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// truncHash returns the first 12 characters of a hash for logging.
func truncHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
