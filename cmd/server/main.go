package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/go-chi/chi/v5"

	"github.com/RagingGuard/simple-video-share/internal/cfg"
	"github.com/RagingGuard/simple-video-share/internal/cryptoutil"
	"github.com/RagingGuard/simple-video-share/internal/health"
	"github.com/RagingGuard/simple-video-share/internal/httpserver"
	"github.com/RagingGuard/simple-video-share/internal/library"
	"github.com/RagingGuard/simple-video-share/internal/log"
	"github.com/RagingGuard/simple-video-share/internal/mediahttp"
	"github.com/RagingGuard/simple-video-share/internal/medialoader"
	"github.com/RagingGuard/simple-video-share/internal/metrics"
	"github.com/RagingGuard/simple-video-share/internal/opshttp"
	"github.com/RagingGuard/simple-video-share/internal/otelx"
	"github.com/RagingGuard/simple-video-share/internal/prof"
	"github.com/RagingGuard/simple-video-share/internal/ratelimit"
	"github.com/RagingGuard/simple-video-share/internal/tokengate"
	v "github.com/RagingGuard/simple-video-share/internal/version"
	"github.com/RagingGuard/simple-video-share/internal/webassets"
)

const appName = "videoshare"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			appName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from unprefixed environment variables and validate
	cfg.FillFromEnv(flag.CommandLine, "", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	// validate config
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               appName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"bind_address", conf.BindAddress,
		"bind_port", conf.BindPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"public_root", conf.PublicRoot,
		"restricted_root", conf.RestrictedRoot,
		"token_ttl_seconds", conf.TokenTTLSeconds,
		"enable_library_sync", conf.EnableLibrarySync,
		"library_ssm_param", conf.LibrarySSMParam,
		"library_s3_bucket", conf.LibraryS3Bucket,
		"library_s3_prefix", conf.LibraryS3Prefix,
		"library_signing_key_arn", conf.LibrarySigningKeyARN,
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       appName,
		AuthToken:     "",
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       appName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"build_id":  vi.BuildId,
			"source":    "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   appName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// Setup metrics
	m := metrics.New()
	m.SetBuildInfoFromVersion(appName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	// Content roots. The restricted root (and with it the gate secret)
	// only takes effect when actually configured, so a stray GATE_SECRET
	// can never expose the working directory.
	publicRoot := library.NewRoot(conf.PublicRoot)
	restrictedRoot := publicRoot
	gateSecret := ""
	if conf.RestrictedRoot != "" {
		restrictedRoot = library.NewRoot(conf.RestrictedRoot)
		gateSecret = conf.GateSecret
	}

	// Single-use access tokens for the restricted library
	gate := tokengate.New(time.Duration(conf.TokenTTLSeconds) * time.Second)

	// Sweep expired unredeemed tokens periodically so abandoned links
	// don't accumulate
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := gate.SweepExpired(); n > 0 {
					m.AddTokensSwept(n)
					L.Debug(ctx, "swept expired tokens", "count", n)
				}
			}
		}
	}()

	// Optional library sync: poll SSM for the published bundle hash and
	// install new bundles from S3 into the public root
	var loader *medialoader.Loader
	if conf.EnableLibrarySync {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}

		var verifier medialoader.Verifier
		if conf.LibrarySigningKeyARN != "" {
			verifier = cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), conf.LibrarySigningKeyARN)
		}

		loader, err = medialoader.NewLoader(ctx, medialoader.Options{
			Logger:    L,
			SSMParam:  conf.LibrarySSMParam,
			S3Bucket:  conf.LibraryS3Bucket,
			S3Prefix:  conf.LibraryS3Prefix,
			DestDir:   conf.PublicRoot,
			Verifier:  verifier,
			AWSConfig: &awsCfg,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create library loader")
			os.Exit(1)
		}

		// Best-effort initial sync; the watcher retries on failure
		if hash, installed, err := loader.Sync(ctx); err != nil {
			L.Warn(ctx, "initial library sync failed, serving existing content", "error", err)
		} else if installed {
			L.Info(ctx, "installed media bundle at startup", "hash", hash)
		}

		watcher := medialoader.NewWatcher(&medialoader.WatcherOptions{
			Logger:       L,
			Loader:       loader,
			PollInterval: time.Duration(conf.LibraryPollSeconds) * time.Second,
			OnInstall: func(hash string) {
				L.Info(ctx, "media bundle installed", "hash", hash)
			},
			Metrics: m,
		})
		go watcher.Run(ctx)
	}

	// Media API over the embedded player page
	api, err := mediahttp.NewAPI(mediahttp.Options{
		Public:     publicRoot,
		Restricted: restrictedRoot,
		Gate:       gate,
		GateSecret: gateSecret,
		PlayerFS:   webassets.PlayerFS(),
		Logger:     L,
		Metrics:    m,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create media API")
		os.Exit(1)
	}

	// setup toggle for server shutdown
	var drainGate health.ShutdownGate

	// readiness: shutdown gate plus a public root that actually exists
	readiness := health.All(
		drainGate.Probe(),
		health.CheckFunc(func(ctx context.Context) error {
			if !publicRoot.Exists() {
				return fmt.Errorf("public root %s missing", publicRoot.Dir())
			}
			return nil
		}),
	)

	// Rate limit the password check only; it is the one brute-forceable
	// endpoint. Playback and catalog stay unthrottled.
	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(1, 5),
		// increment prometheus counter on each denied request
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the bucket
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "gate verify rate limit triggered", "ip", ip)
		}),
	)

	// start public http server
	opts := httpserver.Options{
		Logger:       L,
		BindAddress:  conf.BindAddress,
		Port:         conf.BindPort,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		APIRoutes: func(r chi.Router) {
			api.RegisterRoutes(r, limiter.Middleware)
		},
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
	}
	if loader != nil {
		opts.LibraryInfo = loader
	}
	mediaHTTPStop, err := httpserver.Start(ctx, opts)
	if err != nil {
		L.Error(ctx, err, "failed to start media http listener")
		os.Exit(1)
	}

	// start admin/ops listener to serve metrics, health checks, pprof and any future admin APIs
	// sg restricts inbound to internal monitoring infrastructure
	// we reject connections from public ips in middleware to prevent
	// accidental exposure if sg is misconfigured
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// block until ctrl+c / sigterm
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail health checks to drain connections
	drainGate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	// allow in-flight playback and load balancer health checks to drain
	L.Info(context.Background(), "sleeping 30s for in-flight requests and health checks to drain")
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(30 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := mediaHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "media http server shutdown")
	}

	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	L.Info(context.Background(), "shutdown complete")
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
