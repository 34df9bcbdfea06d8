package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cirelay/internal/store"
)

func rateLimitRequest(remoteci *store.Remoteci, handler http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/jobs/schedule", nil)
	req = req.WithContext(NewContextWithRemoteci(req.Context(), remoteci))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	remoteci := &store.Remoteci{ID: uuid.New(), State: store.StateActive}

	handler := RateLimit(rate.Every(time.Hour), 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		if rr := rateLimitRequest(remoteci, handler); rr.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want 200", i, rr.Code)
		}
	}

	rr := rateLimitRequest(remoteci, handler)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("got status %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_PerRemoteci(t *testing.T) {
	agentA := &store.Remoteci{ID: uuid.New(), State: store.StateActive}
	agentB := &store.Remoteci{ID: uuid.New(), State: store.StateActive}

	handler := RateLimit(rate.Every(time.Hour), 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rr := rateLimitRequest(agentA, handler); rr.Code != http.StatusOK {
		t.Fatalf("agent A first request: got %d", rr.Code)
	}
	if rr := rateLimitRequest(agentA, handler); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("agent A second request: got %d, want 429", rr.Code)
	}
	// Agent B has its own budget.
	if rr := rateLimitRequest(agentB, handler); rr.Code != http.StatusOK {
		t.Errorf("agent B first request: got %d, want 200", rr.Code)
	}
}

func TestRateLimit_ZeroDisables(t *testing.T) {
	remoteci := &store.Remoteci{ID: uuid.New(), State: store.StateActive}

	handler := RateLimit(0, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 20; i++ {
		if rr := rateLimitRequest(remoteci, handler); rr.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want 200", i, rr.Code)
		}
	}
}

func TestRateLimit_Unauthenticated(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPost, "/jobs/schedule", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rr.Code)
	}
}
