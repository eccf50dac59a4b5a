package config

import (
	"flag"
	"fmt"
	"strings"
)

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "" {
		driver = "postgres"
		if strings.TrimSpace(cfg.DBURL) == "" && strings.TrimSpace(cfg.DBPath) != "" {
			driver = "sqlite"
		}
	}
	switch driver {
	case "postgres", "pg":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return fmt.Errorf("db_url must be set for postgres driver")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return fmt.Errorf("db_path must be set for sqlite driver")
		}
		if !cfg.IsDev() && !isTestRuntime() {
			return fmt.Errorf("sqlite driver is only allowed in APP_ENV=dev")
		}
	default:
		return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
	}
	if cfg.TLSEnabled && (strings.TrimSpace(cfg.TLSCert) == "" || strings.TrimSpace(cfg.TLSKey) == "") {
		return fmt.Errorf("tls_cert and tls_key must be set when tls_enabled=true")
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level: %s", cfg.LogLevel)
	}
	return ValidateGovernance(cfg.Governance)
}

func ValidateGovernance(g GovernanceConfig) error {
	if t := g.Threshold(); t < 0 || t > 100 {
		return fmt.Errorf("governance.risk_threshold must be within 0..100, got %d", t)
	}
	if g.Parallelism < 0 {
		return fmt.Errorf("governance.parallelism must not be negative")
	}
	if g.ScenarioTimeoutSec < 0 {
		return fmt.Errorf("governance.scenario_timeout_sec must not be negative")
	}
	if err := ValidateDelays(g.Delays); err != nil {
		return fmt.Errorf("governance.%w", err)
	}
	return nil
}

// ValidateDelays rejects negative bounds and ranges whose max is below min.
func ValidateDelays(d DelayConfig) error {
	bounds := []struct {
		name     string
		min, max int
	}{
		{"navigate", d.NavigateMinMS, d.NavigateMaxMS},
		{"click", d.ClickMinMS, d.ClickMaxMS},
		{"scroll", d.ScrollMinMS, d.ScrollMaxMS},
		{"wait", d.WaitMinMS, d.WaitMaxMS},
		{"type_char", d.TypeCharMinMS, d.TypeCharMaxMS},
	}
	for _, b := range bounds {
		if b.min < 0 || b.max < b.min {
			return fmt.Errorf("delays.%s: invalid bounds [%d,%d]", b.name, b.min, b.max)
		}
	}
	return nil
}

func isTestRuntime() bool {
	return flag.Lookup("test.v") != nil
}
