package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"extgov/config"
	"extgov/core/appmeta"
	"extgov/core/governance"
	"extgov/core/store"
	"extgov/core/utils"
)

func newTestServer(t *testing.T, mutate func(cfg *config.AppConfig)) *Server {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "api.db"),
		AppEnv:   "dev",
	}
	cfg.Governance.SimulationSeed = 42
	if mutate != nil {
		mutate(cfg)
	}
	config.Normalize(cfg)
	logger := utils.NewDiscardLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	svc, err := governance.Build(cfg, db, logger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return NewServer(cfg, logger, ServerDeps{DB: db, Service: svc})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-Extgov-Actor", "tester")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func register(t *testing.T, s *Server, body string) string {
	t.Helper()
	rr := do(t, s, http.MethodPost, "/api/extensions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Extension store.Extension `json:"extension"`
	}
	decode(t, rr, &out)
	return out.Extension.ID
}

// activate assesses id and then admits it through the guard.
func activate(t *testing.T, s *Server, id string) {
	t.Helper()
	if rr := do(t, s, http.MethodPost, "/api/extensions/"+id+"/risk", ""); rr.Code != http.StatusOK {
		t.Fatalf("risk: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, s, http.MethodPost, "/api/extensions/"+id+"/activate", ""); rr.Code != http.StatusOK {
		t.Fatalf("activate: %d %s", rr.Code, rr.Body.String())
	}
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, nil)
	rr := do(t, s, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	var health map[string]any
	decode(t, rr, &health)
	if health["version"] != appmeta.AppVersion {
		t.Fatalf("healthz version: %v", health["version"])
	}
	if rr := do(t, s, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rr.Code)
	}
}

func TestMetricsEndpointDisabledByDefault(t *testing.T) {
	s := newTestServer(t, nil)
	if rr := do(t, s, http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMetricsEndpointRequiresToken(t *testing.T) {
	s := newTestServer(t, func(cfg *config.AppConfig) {
		cfg.Observability.MetricsEnabled = true
		cfg.Observability.MetricsToken = "secret"
	})
	if rr := do(t, s, http.MethodGet, "/metrics", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	activate(t, s, register(t, s, `{"name":"blog","version":"1.0.0","kind":"module","routes":["/blog"]}`))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`extgov_extensions_count{status="active"} 1`, "extgov_guard_risk_threshold 70", "extgov_metrics_query_error 0", "extgov_build_info{"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestMetricsAllowUnauthInDev(t *testing.T) {
	s := newTestServer(t, func(cfg *config.AppConfig) {
		cfg.Observability.MetricsEnabled = true
		cfg.Observability.MetricsAllowUnauthInDev = true
	})
	if rr := do(t, s, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestExtensionEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	id := register(t, s, `{"name":"blog","version":"1.0.0","kind":"module","status":"active","routes":["/blog"]}`)

	rr := do(t, s, http.MethodGet, "/api/extensions/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	var got struct {
		Extension store.Extension `json:"extension"`
	}
	decode(t, rr, &got)
	if got.Extension.Status != store.StatusPendingReview {
		t.Fatalf("register must not activate, got %s", got.Extension.Status)
	}

	rr = do(t, s, http.MethodPost, "/api/extensions/"+id+"/activate", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before any assessment, got %d", rr.Code)
	}
	var gateBody map[string]string
	decode(t, rr, &gateBody)
	if gateBody["error"] != governance.CodeAssessmentRequired {
		t.Fatalf("unexpected error body: %v", gateBody)
	}
	activate(t, s, id)
	rr = do(t, s, http.MethodGet, "/api/extensions/does-not-exist", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var errBody map[string]string
	decode(t, rr, &errBody)
	if errBody["error"] != governance.CodeNotFound {
		t.Fatalf("unexpected error body: %v", errBody)
	}

	rr = do(t, s, http.MethodPost, "/api/extensions", `{"version":"1.0.0","kind":"module"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for nameless extension, got %d", rr.Code)
	}
	rr = do(t, s, http.MethodPost, "/api/extensions", `{"name":"x","colour":"red"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}

	rr = do(t, s, http.MethodPost, "/api/extensions/"+id+"/disable", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("disable: %d", rr.Code)
	}
	rr = do(t, s, http.MethodGet, "/api/extensions?status=active", "")
	var list struct {
		Items []store.Extension `json:"items"`
	}
	decode(t, rr, &list)
	if len(list.Items) != 0 {
		t.Fatalf("disabled extension still listed as active: %+v", list.Items)
	}
}

func TestGovernanceEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	a := register(t, s, `{"name":"blog","version":"1.0.0","kind":"module","routes":["/blog"],"components":["Header"]}`)
	b := register(t, s, `{"name":"shop","version":"2.0.0","kind":"module","routes":["/shop"],"components":["Header"]}`)

	rr := do(t, s, http.MethodPost, "/api/extensions/"+a+"/guard/evaluate", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before any assessment, got %d", rr.Code)
	}
	activate(t, s, a)
	activate(t, s, b)

	rr = do(t, s, http.MethodPost, "/api/conflicts/check", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("conflicts: %d", rr.Code)
	}
	var conflicts struct {
		Total  int            `json:"total"`
		ByKind map[string]int `json:"by_kind"`
	}
	decode(t, rr, &conflicts)
	if conflicts.Total != 1 || conflicts.ByKind["component_override"] != 1 || conflicts.ByKind["route_collision"] != 0 {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}

	rr = do(t, s, http.MethodPost, "/api/extensions/"+a+"/stress-test?test_types=ui&devices=desktop&networks=wifi", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stress: %d %s", rr.Code, rr.Body.String())
	}
	var stress struct {
		Total     int   `json:"total"`
		Scenarios []any `json:"scenarios"`
	}
	decode(t, rr, &stress)
	if stress.Total != 1 || len(stress.Scenarios) != 1 {
		t.Fatalf("unexpected stress report: %+v", stress)
	}
	rr = do(t, s, http.MethodPost, "/api/extensions/"+a+"/stress-test", `{"devices":["watch"]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown device, got %d", rr.Code)
	}

	rr = do(t, s, http.MethodPost, "/api/extensions/"+a+"/risk", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("risk: %d %s", rr.Code, rr.Body.String())
	}
	var riskRes struct {
		Score   int    `json:"score"`
		Level   string `json:"level"`
		Blocked bool   `json:"blocked"`
	}
	decode(t, rr, &riskRes)
	if riskRes.Level == "" || riskRes.Blocked != (riskRes.Score >= 70) {
		t.Fatalf("unexpected risk result: %+v", riskRes)
	}

	rr = do(t, s, http.MethodGet, "/api/extensions/"+a+"/guard", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("guard: %d", rr.Code)
	}

	rr = do(t, s, http.MethodGet, "/api/audit?limit=5", "")
	var audit struct {
		Items []store.AuditRecord `json:"items"`
	}
	decode(t, rr, &audit)
	if len(audit.Items) != 5 || audit.Items[0].Username != "tester" {
		t.Fatalf("unexpected audit: %+v", audit.Items)
	}
}

func TestActivationBlockedByGuard(t *testing.T) {
	s := newTestServer(t, func(cfg *config.AppConfig) {
		zero := 0
		cfg.Governance.RiskThreshold = &zero
	})
	id := register(t, s, `{"name":"blog","version":"1.0.0","kind":"module","routes":["/blog"]}`)
	if rr := do(t, s, http.MethodPost, "/api/extensions/"+id+"/risk", ""); rr.Code != http.StatusOK {
		t.Fatalf("risk: %d %s", rr.Code, rr.Body.String())
	}
	rr := do(t, s, http.MethodPost, "/api/extensions/"+id+"/activate", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for blocked activation, got %d", rr.Code)
	}
	var errBody map[string]string
	decode(t, rr, &errBody)
	if errBody["error"] != governance.CodeBlocked {
		t.Fatalf("unexpected error body: %v", errBody)
	}
	rr = do(t, s, http.MethodGet, "/api/extensions?status=active", "")
	var list struct {
		Items []store.Extension `json:"items"`
	}
	decode(t, rr, &list)
	if len(list.Items) != 0 {
		t.Fatalf("blocked extension became active: %+v", list.Items)
	}
}

func TestSimulationEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rr := do(t, s, http.MethodPost, "/api/simulations", `{"device":"desktop","path":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty path, got %d", rr.Code)
	}
	rr = do(t, s, http.MethodPost, "/api/simulations", `{"device":"tablet","network":"4g","path":[{"action":"navigate","target":"/"},{"action":"scroll"},{"action":"type","target":"#q","text":"hi"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("simulation: %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		RunID      int64  `json:"run_id"`
		UXScore    int    `json:"ux_score"`
		StepCount  int    `json:"step_count"`
		Resolution string `json:"resolution"`
	}
	decode(t, rr, &res)
	if res.RunID == 0 || res.StepCount != 3 || res.UXScore != 100 || res.Resolution != "768x1024" {
		t.Fatalf("unexpected simulation: %+v", res)
	}
}

func TestSimulationEndpointAcceptsConfig(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"device":"mobile","network":"wifi","path":[{"action":"navigate","target":"/"},{"action":"wait"}],` +
		`"config":{"seed":5,"navigate":{"min_ms":10,"max_ms":10},"wait":{"min_ms":20,"max_ms":30}}}`
	var durations [][]int64
	for i := 0; i < 2; i++ {
		rr := do(t, s, http.MethodPost, "/api/simulations", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("simulation: %d %s", rr.Code, rr.Body.String())
		}
		var res struct {
			Steps []store.SimulationStep `json:"steps"`
		}
		decode(t, rr, &res)
		if len(res.Steps) != 2 || res.Steps[0].DurationMS != 10 {
			t.Fatalf("unexpected steps: %+v", res.Steps)
		}
		durations = append(durations, []int64{res.Steps[0].DurationMS, res.Steps[1].DurationMS})
	}
	if durations[0][1] != durations[1][1] {
		t.Fatalf("seeded runs differ: %v", durations)
	}

	rr := do(t, s, http.MethodPost, "/api/simulations", `{"device":"mobile","path":[{"action":"wait"}],"config":{"wait":{"min_ms":50,"max_ms":10}}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted bounds, got %d", rr.Code)
	}
}
