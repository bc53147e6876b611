package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fenwick-labs/agentd/internal/pairing"
)

func TestHealthz_Unauthenticated(t *testing.T) {
	guard := pairing.New(true, nil)
	gw := New(guard, nil, "/metrics")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	gw.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPair_CorrectCode(t *testing.T) {
	guard := pairing.New(true, nil)
	gw := New(guard, nil, "/metrics")

	req := httptest.NewRequest(http.MethodPost, "/pair", nil)
	req.Header.Set("X-Pairing-Code", guard.PairingCode())
	rec := httptest.NewRecorder()
	gw.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPair_WrongCode(t *testing.T) {
	guard := pairing.New(true, nil)
	gw := New(guard, nil, "/metrics")

	req := httptest.NewRequest(http.MethodPost, "/pair", nil)
	req.Header.Set("X-Pairing-Code", "000000")
	rec := httptest.NewRecorder()
	gw.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPair_Lockout(t *testing.T) {
	guard := pairing.New(true, nil)
	gw := New(guard, nil, "/metrics")
	router := gw.Router()

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pair", nil)
		req.Header.Set("X-Pairing-Code", "000000")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
	}

	req := httptest.NewRequest(http.MethodPost, "/pair", nil)
	req.Header.Set("X-Pairing-Code", "000000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header to be set")
	}
}

func TestProtectedRoute_RequiresBearerToken(t *testing.T) {
	guard := pairing.New(true, nil)
	gw := New(guard, nil, "/metrics")
	router := gw.Router()
	router.HandleFunc("/anything", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no token, got %d", rec.Code)
	}

	ok, _, token := guard.TryPair(guard.PairingCode())
	if !ok {
		t.Fatalf("expected successful pairing")
	}

	req = httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestMetrics_UnauthenticatedWhenPathConfigured(t *testing.T) {
	guard := pairing.New(true, nil)
	gw := New(guard, nil, "/metrics")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	gw.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics_DisabledWhenPathEmpty(t *testing.T) {
	guard := pairing.New(true, nil)
	gw := New(guard, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	gw.Router().ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatalf("expected metrics route to be disabled, got 200")
	}
}

func TestProtectedRoute_PairingDisabled(t *testing.T) {
	guard := pairing.New(false, nil)
	gw := New(guard, nil, "/metrics")
	router := gw.Router()
	router.HandleFunc("/anything", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when pairing disabled, got %d", rec.Code)
	}
}
