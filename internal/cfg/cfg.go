package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/RagingGuard/simple-video-share/internal/log"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	BindAddress       string
	BindPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	TraceSample       float64
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	// content roots and gate
	PublicRoot      string
	RestrictedRoot  string
	GateSecret      string
	TokenTTLSeconds int

	// optional media bundle sync
	EnableLibrarySync    bool
	LibrarySSMParam      string
	LibraryS3Bucket      string
	LibraryS3Prefix      string
	LibrarySigningKeyARN string
	LibraryPollSeconds   int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.BindAddress, "bind-address", "0.0.0.0", "listen address")
	fs.IntVar(&c.BindPort, "bind-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")

	fs.StringVar(&c.PublicRoot, "public-root", "videos", "directory holding the public video library")
	fs.StringVar(&c.RestrictedRoot, "restricted-root", "", "directory holding the restricted video library (empty disables the secret space)")
	fs.StringVar(&c.GateSecret, "gate-secret", "", "credential checked by /gate/verify (empty disables the gate)")
	fs.IntVar(&c.TokenTTLSeconds, "token-ttl-seconds", 300, "lifetime of an unredeemed access token")

	fs.BoolVar(&c.EnableLibrarySync, "enable-library-sync", false, "Enable syncing the public library from a published S3 bundle")
	fs.StringVar(&c.LibrarySSMParam, "library-ssm-param", "", "ssm parameter name holding the current bundle hash")
	fs.StringVar(&c.LibraryS3Bucket, "library-s3-bucket", "", "s3 bucket holding media bundles")
	fs.StringVar(&c.LibraryS3Prefix, "library-s3-prefix", "bundles", "s3 key prefix for media bundles")
	fs.StringVar(&c.LibrarySigningKeyARN, "library-signing-key-arn", "", "KMS key ARN for bundle signature verification (empty skips signature checks)")
	fs.IntVar(&c.LibraryPollSeconds, "library-poll-seconds", 60, "seconds between bundle hash polls")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.BindPort < 1 || c.BindPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid BIND_PORT %d (must be 1..65535)", c.BindPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.BindPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and BIND_PORT must differ (both %d)", c.BindPort))
	}
	if c.BindAddress != "" && net.ParseIP(c.BindAddress) == nil {
		errs = append(errs, fmt.Errorf("invalid BIND_ADDRESS %q (must be an IP address)", c.BindAddress))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Error link limits
	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	// Content roots and gate
	if c.PublicRoot == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_ROOT is required"))
	}
	if c.RestrictedRoot != "" && c.GateSecret == "" {
		errs = append(errs, fmt.Errorf("GATE_SECRET is required when RESTRICTED_ROOT is set"))
	}
	if c.RestrictedRoot != "" && c.RestrictedRoot == c.PublicRoot {
		errs = append(errs, fmt.Errorf("RESTRICTED_ROOT and PUBLIC_ROOT must be disjoint (both %q)", c.PublicRoot))
	}
	if c.TokenTTLSeconds < 1 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL_SECONDS must be positive (got %d)", c.TokenTTLSeconds))
	}

	// Library sync
	if c.EnableLibrarySync {
		if c.LibrarySSMParam == "" {
			errs = append(errs, fmt.Errorf("LIBRARY_SSM_PARAM is required when ENABLE_LIBRARY_SYNC=true"))
		}
		if c.LibraryS3Bucket == "" {
			errs = append(errs, fmt.Errorf("LIBRARY_S3_BUCKET is required when ENABLE_LIBRARY_SYNC=true"))
		}
		if c.LibraryPollSeconds < 1 {
			errs = append(errs, fmt.Errorf("LIBRARY_POLL_SECONDS must be positive (got %d)", c.LibraryPollSeconds))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
