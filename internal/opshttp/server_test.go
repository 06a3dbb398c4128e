package opshttp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RagingGuard/simple-video-share/internal/health"
	"github.com/RagingGuard/simple-video-share/internal/log"
)

func getFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", ":0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// startOps boots the admin listener on a free port and wires cleanup.
func startOps(t *testing.T, opts *Options) (port int, stopFunc func(context.Context) error) {
	t.Helper()
	if opts.Port == 0 {
		opts.Port = getFreePort(t)
	}
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { stop(ctx) })
	return opts.Port, stop
}

func opsGet(t *testing.T, port int, path string) *http.Response {
	t.Helper()
	addr := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	resp, err := http.Get(addr)
	if err != nil {
		t.Fatalf("GET %s: %v", addr, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestStart_ReturnsStopFunc(t *testing.T) {
	port, stop := startOps(t, &Options{})
	_ = port
	if stop == nil {
		t.Fatal("stop func is nil")
	}
}

func TestStart_CustomPort(t *testing.T) {
	port, _ := startOps(t, &Options{
		Health:    health.Fixed(true, ""),
		Readiness: health.Fixed(true, ""),
	})

	resp := opsGet(t, port, "/healthz")
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStart_GracefulShutdown(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()

	stop, err := Start(ctx, log.Nop(), &Options{
		Port:      port,
		Health:    health.Fixed(true, ""),
		Readiness: health.Fixed(true, ""),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// answering before the stop
	resp := opsGet(t, port, "/healthz")
	resp.Body.Close()


	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := stop(shutdownCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	// the listener is gone once stop returns
	addr := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	_, err = http.Get(addr)
	if err == nil {
		t.Fatal("server still accepting connections after shutdown")
	}
}

func TestStart_StopIdempotent(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()

	stop, err := Start(ctx, log.Nop(), &Options{Port: port})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := stop(ctx); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("third stop: %v", err)
	}
}

func TestStart_PortConflict(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()

	stop1, err := Start(ctx, log.Nop(), &Options{Port: port})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer stop1(ctx)

	_, err = Start(ctx, log.Nop(), &Options{Port: port})
	if err == nil {
		t.Fatal("expected error for port conflict")
	}
}

// admin health endpoints

func TestStart_HealthzEndpoint_Healthy(t *testing.T) {
	port, _ := startOps(t, &Options{
		Health: health.Fixed(true, ""),
	})

	resp := opsGet(t, port, "/healthz")
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "ok") {
		t.Fatalf("body = %q, want 'ok'", body)
	}
}

func TestStart_HealthzEndpoint_Unhealthy(t *testing.T) {
	port, _ := startOps(t, &Options{
		Health: health.Fixed(false, "media root unavailable"),
	})

	resp := opsGet(t, port, "/healthz")
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(body, "media root unavailable") {
		t.Fatalf("body = %q, want reason", body)
	}
}

func TestStart_ReadyzEndpoint_Ready(t *testing.T) {
	port, _ := startOps(t, &Options{
		Readiness: health.Fixed(true, ""),
	})

	resp := opsGet(t, port, "/readyz")
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "ready") {
		t.Fatalf("body = %q, want 'ready'", body)
	}
}

func TestStart_ReadyzEndpoint_NotReady(t *testing.T) {
	port, _ := startOps(t, &Options{
		Readiness: health.Fixed(false, "library sync has not completed"),
	})

	resp := opsGet(t, port, "/readyz")
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(body, "library sync has not completed") {
		t.Fatalf("body = %q, want reason", body)
	}
}

func TestStart_HealthzEndpoint_DynamicProbe(t *testing.T) {
	var gate health.ShutdownGate

	port, _ := startOps(t, &Options{
		Health: gate.Probe(),
	})

	// healthy until the gate closes
	resp := opsGet(t, port, "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initially: status = %d, want 200", resp.StatusCode)
	}


	gate.Set("draining")
	resp = opsGet(t, port, "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("after drain: status = %d, want 503", resp.StatusCode)
	}
}

func TestStart_MetricsEndpoint(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# HELP media_requests_total\n"))
	})

	port, _ := startOps(t, &Options{
		Metrics: metricsHandler,
	})

	resp := opsGet(t, port, "/metrics")
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "media_requests_total") {
		t.Fatalf("body = %q, want metrics output", body)
	}
}

func TestStart_MetricsEndpoint_Nil(t *testing.T) {
	port, _ := startOps(t, &Options{
		Metrics: nil,
	})

	resp := opsGet(t, port, "/metrics")
	resp.Body.Close()

	// nothing mounted at /metrics without a handler
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStart_PprofEnabled(t *testing.T) {
	port, _ := startOps(t, &Options{
		EnablePprof: true,
	})

	resp := opsGet(t, port, "/debug/pprof/")
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStart_PprofDisabled(t *testing.T) {
	port, _ := startOps(t, &Options{
		EnablePprof: false,
	})

	resp := opsGet(t, port, "/debug/pprof/")
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (pprof disabled)", resp.StatusCode)
	}
}

// requireNonPublicNetwork guards every admin route, so the peer rules get
// exhaustive coverage here rather than per-endpoint.

func TestRequireNonPublicNetwork_AllowedPeers(t *testing.T) {
	allowed := []string{
		"127.0.0.1:12345",         // loopback
		"[::1]:12345",             // IPv6 loopback
		"10.0.0.1:8080",           // RFC 1918
		"172.16.0.1:8080",         // RFC 1918
		"192.168.1.1:8080",        // RFC 1918
		"169.254.1.1:8080",        // link-local
		"[::ffff:10.0.0.1]:12345", // IPv4-mapped private
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := requireNonPublicNetwork(log.Nop(), inner)

	for _, addr := range allowed {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/healthz", http.NoBody)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("peer %s: status = %d, want 200", addr, rec.Code)
		}
	}
}

func TestRequireNonPublicNetwork_RejectedPeers(t *testing.T) {
	rejected := []string{
		"8.8.8.8:12345",
		"1.1.1.1:443",
		"203.0.113.1:80",
		"198.51.100.1:9000",
		// ::ffff:8.8.8.8 is the IPv4-mapped form of a public address and
		// net.IP.IsPrivate reports false for it
		"[::ffff:8.8.8.8]:12345",
		// unparseable peers fail closed
		"not-an-address",
		"",
		"999.999.999.999:8080",
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler reached for peer %s", r.RemoteAddr)
	})
	h := requireNonPublicNetwork(log.Nop(), inner)

	for _, addr := range rejected {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/healthz", http.NoBody)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("peer %q: status = %d, want 403", addr, rec.Code)
		}
	}
}
