package prof

import (
	"context"
	"strings"
	"testing"

	"github.com/RagingGuard/simple-video-share/internal/log"
)

func TestStart_Disabled_ReturnsStopFunc(t *testing.T) {
	stop, err := Start(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Start disabled: %v", err)
	}
	if stop == nil {
		t.Fatal("stop func is nil")
	}
}

func TestStart_Disabled_StopIsNoop(t *testing.T) {
	stop, _ := Start(context.Background(), Options{Enabled: false})

	stop()
	stop() // repeat calls stay harmless
}

func TestStart_Disabled_NoError(t *testing.T) {
	_, err := Start(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("disabled should never error, got: %v", err)
	}
}

func TestStart_Disabled_IgnoresAllOptions(t *testing.T) {
	// disabled short-circuits before any option is inspected
	stop, err := Start(context.Background(), Options{
		Enabled:              false,
		AppName:              "",
		ServerAddress:        "",
		AuthToken:            "secret",
		TenantID:             "tenant",
		Tags:                 map[string]string{"host": "edge-1"},
		ProfileMutexFraction: 999,
		BlockProfileRate:     999,
	})

	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}

func TestStart_Disabled_WithLogger(t *testing.T) {
	ctx := log.WithContext(context.Background(), log.Nop())

	stop, err := Start(ctx, Options{Enabled: false})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}

// Enabled - validation

func TestStart_Enabled_EmptyServerAddress_Errors(t *testing.T) {
	stop, err := Start(context.Background(), Options{
		Enabled:       true,
		ServerAddress: "",
		AppName:       "videoshare",
	})

	if err == nil {
		t.Fatal("expected error for empty server address")
	}
	if !strings.Contains(err.Error(), "invalid server address") {
		t.Fatalf("error = %q, want 'invalid server address'", err.Error())
	}

	// the stop func is returned even on error
	if stop == nil {
		t.Fatal("stop func should be non-nil even on error")
	}
	stop()
}

func TestStart_Enabled_EmptyServerAddress_StopIdempotent(t *testing.T) {
	stop, _ := Start(context.Background(), Options{
		Enabled:       true,
		ServerAddress: "",
	})


	stop()
	stop()
	stop()
}

func TestStart_Enabled_UnreachableServer(t *testing.T) {
	// pyroscope versions differ on whether an unreachable server errors at
	// Start, so only the stop-func contract is asserted
	stop, err := Start(context.Background(), Options{
		Enabled:       true,
		ServerAddress: "http://localhost:0/nonexistent",
		AppName:       "videoshare",
	})

	if stop == nil {
		t.Fatal("stop func should always be non-nil")
	}
	stop()

	_ = err
}

func TestStart_Enabled_EmptyAddress_WithFullOptions(t *testing.T) {
	// every option field is accepted before the address check rejects
	_, err := Start(context.Background(), Options{
		Enabled:              true,
		AppName:              "videoshare",
		ServerAddress:        "", // fails validation
		AuthToken:            "token123",
		TenantID:             "tenant456",
		Tags:                 map[string]string{"env": "staging", "version": "v1"},
		ProfileMutexFraction: 5,
		BlockProfileRate:     1000,
	})

	if err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestStart_ErrorContract(t *testing.T) {
	// an error never comes with a nil stop func
	stop, err := Start(context.Background(), Options{
		Enabled:       true,
		ServerAddress: "",
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if stop == nil {
		t.Fatal("stop must be non-nil even on error")
	}

	stop()
}

func TestStart_Enabled_EmptyAddress_WithContextLogger(t *testing.T) {
	ctx := log.WithContext(context.Background(), log.Nop())

	stop, err := Start(ctx, Options{
		Enabled:       true,
		ServerAddress: "",
	})

	if err == nil {
		t.Fatal("expected error")
	}
	stop()
}

func TestStart_Disabled_NoLogger(t *testing.T) {
	// without a logger in ctx, FromContext falls back to Nop
	stop, err := Start(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}
