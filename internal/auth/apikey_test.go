package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDisabledModeAllowsEverything(t *testing.T) {
	guard := NewGuard("", nil)
	if guard.Enabled() {
		t.Fatal("expected guard to be disabled")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !guard.Allow(req) {
		t.Fatal("expected request to pass")
	}
}

func TestAPIKeyHeader(t *testing.T) {
	guard := NewGuard(ModeAPIKey, []string{" secret ", ""})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if guard.Allow(req) {
		t.Fatal("expected request without key to fail")
	}

	req.Header.Set("X-API-Key", "secret")
	if !guard.Allow(req) {
		t.Fatal("expected request with key to pass")
	}

	req.Header.Set("X-API-Key", "wrong")
	if guard.Allow(req) {
		t.Fatal("expected request with wrong key to fail")
	}
}

func TestBearerTokenFallback(t *testing.T) {
	guard := NewGuard(ModeAPIKey, []string{"secret"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if !guard.Allow(req) {
		t.Fatal("expected bearer token to pass")
	}

	req.Header.Set("Authorization", "Basic secret")
	if guard.Allow(req) {
		t.Fatal("expected non-bearer auth to fail")
	}
}

func TestMiddleware(t *testing.T) {
	guard := NewGuard(ModeAPIKey, []string{"secret"})
	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "secret")
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}
