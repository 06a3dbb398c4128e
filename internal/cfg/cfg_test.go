package cfg

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"
)

func wantErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got <nil>", sub)
	}
	if !strings.Contains(err.Error(), sub) {
		t.Fatalf("error %q does not contain %q", err.Error(), sub)
	}
}

// newTestConfig registers flags on a fresh FlagSet, parses the given args,
// and returns the resulting App. This isolates each test from flag.CommandLine.
func newTestConfig(t *testing.T, args []string) App {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	return c
}

func TestRegister_Defaults(t *testing.T) {
	c := newTestConfig(t, nil)

	if !c.LogJSON {
		t.Error("LogJSON: want true")
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel: want %q, got %q", "info", c.LogLevel)
	}
	if c.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress: want 0.0.0.0, got %q", c.BindAddress)
	}
	if c.BindPort != 8080 {
		t.Errorf("BindPort: want 8080, got %d", c.BindPort)
	}
	if c.AdminPort != 9000 {
		t.Errorf("AdminPort: want 9000, got %d", c.AdminPort)
	}
	if !c.EnablePprof {
		t.Error("EnablePprof: want true")
	}
	if c.EnablePyroscope {
		t.Error("EnablePyroscope: want false")
	}
	if c.EnableTracing {
		t.Error("EnableTracing: want false")
	}
	if c.EnableLibrarySync {
		t.Error("EnableLibrarySync: want false")
	}
	if !c.IncludeErrorLinks {
		t.Error("IncludeErrorLinks: want true")
	}
	if c.StacktraceLevel != "error" {
		t.Errorf("StacktraceLevel: want %q, got %q", "error", c.StacktraceLevel)
	}
	if c.PublicRoot != "videos" {
		t.Errorf("PublicRoot: want %q, got %q", "videos", c.PublicRoot)
	}
	if c.TokenTTLSeconds != 300 {
		t.Errorf("TokenTTLSeconds: want 300, got %d", c.TokenTTLSeconds)
	}
	if c.LibraryPollSeconds != 60 {
		t.Errorf("LibraryPollSeconds: want 60, got %d", c.LibraryPollSeconds)
	}
}

func TestRegister_CLIOverrides(t *testing.T) {
	c := newTestConfig(t, []string{
		"-log-json=false",
		"-log-level=debug",
		"-bind-address=127.0.0.1",
		"-bind-port=9090",
		"-admin-port=9100",
		"-enable-pprof=false",
		"-enable-pyroscope=true",
		"-enable-tracing=true",
		"-trace-sample=0.5",
		"-stacktrace-level=warn",
		"-include-error-links=false",
		"-max-error-links=16",
		"-pyro-server=https://pyro:4040",
		"-pyro-tenant=test-tenant",
		"-otlp-endpoint=otel:4317",
		"-public-root=/srv/videos",
		"-restricted-root=/srv/secret",
		"-gate-secret=hunter2",
		"-token-ttl-seconds=120",
		"-enable-library-sync=true",
		"-library-ssm-param=/custom/param",
		"-library-s3-bucket=my-bucket",
		"-library-s3-prefix=my/prefix",
	})

	if c.LogJSON != false {
		t.Error("LogJSON: want false")
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: want %q, got %q", "debug", c.LogLevel)
	}
	if c.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: want 127.0.0.1, got %q", c.BindAddress)
	}
	if c.BindPort != 9090 {
		t.Errorf("BindPort: want 9090, got %d", c.BindPort)
	}
	if c.AdminPort != 9100 {
		t.Errorf("AdminPort: want 9100, got %d", c.AdminPort)
	}
	if c.TraceSample != 0.5 {
		t.Errorf("TraceSample: want 0.5, got %f", c.TraceSample)
	}
	if c.StacktraceLevel != "warn" {
		t.Errorf("StacktraceLevel: want %q, got %q", "warn", c.StacktraceLevel)
	}
	if c.MaxErrorLinks != 16 {
		t.Errorf("MaxErrorLinks: want 16, got %d", c.MaxErrorLinks)
	}
	if c.PublicRoot != "/srv/videos" {
		t.Errorf("PublicRoot: want %q, got %q", "/srv/videos", c.PublicRoot)
	}
	if c.RestrictedRoot != "/srv/secret" {
		t.Errorf("RestrictedRoot: want %q, got %q", "/srv/secret", c.RestrictedRoot)
	}
	if c.GateSecret != "hunter2" {
		t.Errorf("GateSecret: want %q, got %q", "hunter2", c.GateSecret)
	}
	if c.TokenTTLSeconds != 120 {
		t.Errorf("TokenTTLSeconds: want 120, got %d", c.TokenTTLSeconds)
	}
	if c.LibrarySSMParam != "/custom/param" {
		t.Errorf("LibrarySSMParam: want %q, got %q", "/custom/param", c.LibrarySSMParam)
	}
	if c.LibraryS3Bucket != "my-bucket" {
		t.Errorf("LibraryS3Bucket: want %q, got %q", "my-bucket", c.LibraryS3Bucket)
	}
	if c.LibraryS3Prefix != "my/prefix" {
		t.Errorf("LibraryS3Prefix: want %q, got %q", "my/prefix", c.LibraryS3Prefix)
	}
}

// The deployment contract uses unprefixed environment variables:
// PUBLIC_ROOT, RESTRICTED_ROOT, GATE_SECRET, TOKEN_TTL_SECONDS,
// BIND_ADDRESS, BIND_PORT.
func TestFillFromEnv_UnprefixedContract(t *testing.T) {
	t.Setenv("PUBLIC_ROOT", "/data/public")
	t.Setenv("RESTRICTED_ROOT", "/data/secret")
	t.Setenv("GATE_SECRET", "swordfish")
	t.Setenv("TOKEN_TTL_SECONDS", "600")
	t.Setenv("BIND_ADDRESS", "127.0.0.1")
	t.Setenv("BIND_PORT", "8088")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	FillFromEnv(fs, "", nil)

	if c.PublicRoot != "/data/public" {
		t.Errorf("PublicRoot: want /data/public, got %q", c.PublicRoot)
	}
	if c.RestrictedRoot != "/data/secret" {
		t.Errorf("RestrictedRoot: want /data/secret, got %q", c.RestrictedRoot)
	}
	if c.GateSecret != "swordfish" {
		t.Errorf("GateSecret: want swordfish, got %q", c.GateSecret)
	}
	if c.TokenTTLSeconds != 600 {
		t.Errorf("TokenTTLSeconds: want 600, got %d", c.TokenTTLSeconds)
	}
	if c.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: want 127.0.0.1, got %q", c.BindAddress)
	}
	if c.BindPort != 8088 {
		t.Errorf("BindPort: want 8088, got %d", c.BindPort)
	}
}

func TestFillFromEnv_CLITakesPrecedence(t *testing.T) {
	pfx := "TESTCFG2_"
	t.Setenv(pfx+"BIND_PORT", "7777")
	t.Setenv(pfx+"LOG_LEVEL", "warn")
	t.Setenv(pfx+"ENABLE_PPROF", "false")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse([]string{"-bind-port=9090", "-log-level=debug", "-enable-pprof=true"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	var overrideMessages []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		overrideMessages = append(overrideMessages, fmt.Sprintf(format, args...))
	})

	// CLI wins
	if c.BindPort != 9090 {
		t.Errorf("BindPort: want 9090 (cli), got %d", c.BindPort)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: want %q (cli), got %q", "debug", c.LogLevel)
	}
	if c.EnablePprof != true {
		t.Error("EnablePprof: want true (cli)")
	}

	// Should have logged override messages for all three
	if len(overrideMessages) != 3 {
		t.Errorf("expected 3 override messages, got %d: %v", len(overrideMessages), overrideMessages)
	}
	for _, msg := range overrideMessages {
		if !strings.Contains(msg, "overrides env") {
			t.Errorf("unexpected override message format: %s", msg)
		}
	}
}

func TestFillFromEnv_InvalidEnvIgnored(t *testing.T) {
	pfx := "TESTCFG3_"
	t.Setenv(pfx+"BIND_PORT", "not-a-number")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	var logMessages []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		logMessages = append(logMessages, fmt.Sprintf(format, args...))
	})

	// Should keep default, not crash
	if c.BindPort != 8080 {
		t.Errorf("BindPort: want 8080 (default), got %d", c.BindPort)
	}
	// Should have logged the error
	if len(logMessages) != 1 {
		t.Fatalf("expected 1 log message, got %d: %v", len(logMessages), logMessages)
	}
	if !strings.Contains(logMessages[0], "ignoring invalid env") {
		t.Errorf("unexpected log message: %s", logMessages[0])
	}
}

func TestValidate_OK(t *testing.T) {
	c := newTestConfig(t, []string{
		"-enable-pyroscope=true",
		"-pyro-server=https://pyro:4040",
		"-pyro-tenant=test-tenant",
		"-enable-tracing=true",
		"-otlp-endpoint=otel:4317",
		"-trace-sample=0.2",
		"-restricted-root=/srv/secret",
		"-gate-secret=hunter2",
	})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_InvalidCombined(t *testing.T) {
	c := newTestConfig(t, []string{
		"-bind-port=0",
		"-admin-port=70000",
		"-bind-address=not-an-ip",
		"-log-level=nope",
		"-stacktrace-level=alsonope",
		"-trace-sample=2.0",
		"-enable-pyroscope=true",
		"-pyro-server=not-a-url",
		"-enable-tracing=true",
		"-otlp-endpoint=otel",
		"-include-error-links=true",
		"-max-error-links=0",
		"-token-ttl-seconds=0",
	})

	err := Validate(c)
	if err == nil {
		t.Fatal("Validate() expected errors, got <nil>")
	}

	wantErrContains(t, err, "invalid BIND_PORT")
	wantErrContains(t, err, "invalid ADMIN_PORT")
	wantErrContains(t, err, "invalid BIND_ADDRESS")
	wantErrContains(t, err, "invalid LOG_LEVEL")
	wantErrContains(t, err, "invalid STACKTRACE_LEVEL")
	wantErrContains(t, err, "invalid TRACE_SAMPLE")
	wantErrContains(t, err, "PYRO_SERVER must be a URL")
	wantErrContains(t, err, "OTLP_ENDPOINT must be host:port")
	wantErrContains(t, err, "MAX_ERROR_LINKS")
	wantErrContains(t, err, "TOKEN_TTL_SECONDS")
}

func TestValidate_GateRequirements(t *testing.T) {
	c := newTestConfig(t, []string{"-restricted-root=/srv/secret"})
	wantErrContains(t, Validate(c), "GATE_SECRET is required")

	c = newTestConfig(t, []string{
		"-public-root=/srv/videos",
		"-restricted-root=/srv/videos",
		"-gate-secret=x",
	})
	wantErrContains(t, Validate(c), "must be disjoint")

	c = newTestConfig(t, []string{"-public-root="})
	wantErrContains(t, Validate(c), "PUBLIC_ROOT is required")
}

func TestValidate_LibrarySync(t *testing.T) {
	c := newTestConfig(t, []string{"-enable-library-sync=true"})
	err := Validate(c)
	wantErrContains(t, err, "LIBRARY_SSM_PARAM is required")
	wantErrContains(t, err, "LIBRARY_S3_BUCKET is required")

	c = newTestConfig(t, []string{
		"-enable-library-sync=true",
		"-library-ssm-param=/videoshare/hash",
		"-library-s3-bucket=bundles",
		"-library-poll-seconds=0",
	})
	wantErrContains(t, Validate(c), "LIBRARY_POLL_SECONDS")
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
