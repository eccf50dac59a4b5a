package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"extgov/config"
	"extgov/core/utils"
)

func bareServer(tls bool) *Server {
	return &Server{cfg: &config.AppConfig{TLSEnabled: tls}, logger: utils.NewDiscardLogger()}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	s := bareServer(true)
	h := s.securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/extensions", nil))
	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rr.Header().Get(k); got != want {
			t.Fatalf("%s = %q, want %q", k, got, want)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("expected HSTS header when TLS is enabled")
	}

	rr = httptest.NewRecorder()
	bareServer(false).securityHeadersMiddleware(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected HSTS header without TLS")
	}
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	s := bareServer(false)
	h := s.recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestStatusRecorderTracksStatusAndSize(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	rec.WriteHeader(http.StatusConflict)
	if _, err := rec.Write([]byte("blocked")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.status != http.StatusConflict || rec.size != len("blocked") {
		t.Fatalf("unexpected recorder state: status=%d size=%d", rec.status, rec.size)
	}
}
