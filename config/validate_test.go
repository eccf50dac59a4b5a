package config

import "testing"

func validBase() *AppConfig {
	cfg := &AppConfig{DBDriver: "postgres", DBURL: "postgres://localhost/db"}
	Normalize(cfg)
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validBase()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	for _, v := range []int{-1, 101} {
		cfg := validBase()
		threshold := v
		cfg.Governance.RiskThreshold = &threshold
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for threshold %d", v)
		}
	}
}

func TestValidateAcceptsZeroThreshold(t *testing.T) {
	cfg := validBase()
	zero := 0
	cfg.Governance.RiskThreshold = &zero
	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Governance.Threshold() != 0 {
		t.Fatalf("zero threshold replaced by %d", cfg.Governance.Threshold())
	}
}

func TestValidateRejectsInvertedDelayBounds(t *testing.T) {
	cfg := validBase()
	cfg.Governance.Delays.ScrollMinMS = 400
	cfg.Governance.Delays.ScrollMaxMS = 100
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for inverted scroll bounds")
	}
}

func TestValidateRequiresDBURLForPostgres(t *testing.T) {
	cfg := validBase()
	cfg.DBURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing db_url")
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &AppConfig{}
	Normalize(cfg)
	g := cfg.Governance
	if g.RiskThreshold == nil || *g.RiskThreshold != DefaultRiskThreshold {
		t.Fatalf("threshold default: %v", g.RiskThreshold)
	}
	if len(g.Matrix.TestTypes)*len(g.Matrix.Devices)*len(g.Matrix.Networks) != 48 {
		t.Fatalf("default matrix should have 48 cells: %+v", g.Matrix)
	}
	if g.Delays.TypeCharMinMS != 50 || g.Delays.TypeCharMaxMS != 150 {
		t.Fatalf("type delay defaults: %+v", g.Delays)
	}
}

func TestValidateDelays(t *testing.T) {
	if err := ValidateDelays(DelayConfig{ClickMinMS: 5, ClickMaxMS: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateDelays(DelayConfig{WaitMinMS: -1}); err == nil {
		t.Fatalf("expected error for negative wait bound")
	}
}
