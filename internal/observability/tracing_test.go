package observability

import (
	"context"
	"testing"
	"time"
)

func TestInit_LazyConnection(t *testing.T) {
	// gRPC connects lazily, so init should succeed even when nothing
	// listens on the endpoint.
	ctx := context.Background()

	shutdown, err := Init(ctx, "cirelay-test", "localhost:4317")
	if err != nil {
		t.Logf("Init returned error (may be expected in this environment): %v", err)
		return
	}

	if shutdown == nil {
		t.Error("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestInit_EmptyServiceName(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, "", "localhost:4317")
	if err != nil {
		t.Logf("Init returned error: %v", err)
		return
	}

	if shutdown == nil {
		t.Error("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}
