package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"extgov/core/governance"
	"extgov/core/store"
)

func setupEnv(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "clock")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	manifest := "name: clock\nauthor: carol\nversion: 2.1.0\nkind: component\nstatus: active\nfiles: [\"*.js\"]\nroutes: [\"/clock\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "extension.yaml"), []byte(manifest), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "clock.js"), []byte("export const now = () => Date.now()\n"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	t.Setenv("APP_CONFIG", filepath.Join(root, "missing.yaml"))
	t.Setenv("EXTGOV_DB_DRIVER", "sqlite")
	t.Setenv("EXTGOV_DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("EXTGOV_SCANNER_ROOT", root)
	t.Setenv("EXTGOV_SIMULATION_SEED", "11")
	t.Setenv("EXTGOV_LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestScanListAndRisk(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "scan", "--actor", "ops")
	if !strings.Contains(out, `"registered": 1`) {
		t.Fatalf("unexpected scan output: %s", out)
	}

	var items []store.Extension
	if err := json.Unmarshal([]byte(mustRun(t, "list")), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 1 || items[0].Name != "clock" {
		t.Fatalf("unexpected list: %+v", items)
	}
	if items[0].Status != store.StatusPendingReview {
		t.Fatalf("manifest status must not activate, got %s", items[0].Status)
	}
	id := items[0].ID

	var risk governance.RiskResult
	if err := json.Unmarshal([]byte(mustRun(t, "risk", id)), &risk); err != nil {
		t.Fatalf("decode risk: %v", err)
	}
	if risk.Level != store.RiskLow || risk.Blocked {
		t.Fatalf("unexpected risk result: %+v", risk)
	}

	var rec store.GuardRecord
	if err := json.Unmarshal([]byte(mustRun(t, "guard", id)), &rec); err != nil {
		t.Fatalf("decode guard: %v", err)
	}
	if rec.ExtensionID != id || rec.Version != 1 {
		t.Fatalf("unexpected guard record: %+v", rec)
	}

	var ext store.Extension
	if err := json.Unmarshal([]byte(mustRun(t, "activate", id)), &ext); err != nil {
		t.Fatalf("decode activate: %v", err)
	}
	if ext.Status != store.StatusActive {
		t.Fatalf("unexpected status after activate: %s", ext.Status)
	}

	var audit []store.AuditRecord
	if err := json.Unmarshal([]byte(mustRun(t, "audit", "--limit", "10")), &audit); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(audit) == 0 {
		t.Fatalf("expected audit records")
	}
}

func TestAnalyzeUnknownExtension(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "analyze", "nope")
	de, ok := governance.AsDomainError(err)
	if !ok || de.Code != governance.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestActivateWithoutAssessment(t *testing.T) {
	setupEnv(t)
	mustRun(t, "scan")
	var items []store.Extension
	if err := json.Unmarshal([]byte(mustRun(t, "list")), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	_, err := run(t, "activate", items[0].ID)
	de, ok := governance.AsDomainError(err)
	if !ok || de.Code != governance.CodeAssessmentRequired {
		t.Fatalf("expected AssessmentRequired, got %v", err)
	}
}

func TestStressRejectsUnknownDevice(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "stress", "any", "--devices", "watch"); err == nil {
		t.Fatalf("expected error for unknown device")
	}
}

func TestSimulateFromFile(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "path.json")
	body := `[{"action":"navigate","target":"/clock"},{"action":"click","target":"#start"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write path: %v", err)
	}
	var res governance.SimulationResult
	if err := json.Unmarshal([]byte(mustRun(t, "simulate", "--path", path, "--device", "tablet")), &res); err != nil {
		t.Fatalf("decode simulation: %v", err)
	}
	if res.RunID == 0 || res.StepCount != 2 || res.Resolution != "768x1024" {
		t.Fatalf("unexpected simulation: %+v", res)
	}
}

func TestMigrateStatusAfterRun(t *testing.T) {
	setupEnv(t)
	mustRun(t, "list")
	var st store.MigrationStatus
	if err := json.Unmarshal([]byte(mustRun(t, "migrate-status")), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.HasGooseTable || st.HasPending {
		t.Fatalf("unexpected migration status: %+v", st)
	}
}

func TestSimulateWithSeedIsReproducible(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "path.json")
	body := `[{"action":"navigate","target":"/clock"},{"action":"scroll"},{"action":"wait"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write path: %v", err)
	}
	var runs [2]governance.SimulationResult
	for i := range runs {
		if err := json.Unmarshal([]byte(mustRun(t, "simulate", "--path", path, "--seed", "1234")), &runs[i]); err != nil {
			t.Fatalf("decode simulation: %v", err)
		}
	}
	if runs[0].Summary != runs[1].Summary {
		t.Fatalf("seeded runs differ: %+v vs %+v", runs[0].Summary, runs[1].Summary)
	}
}
