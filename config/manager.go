package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "EXTGOV_"

	DefaultRiskThreshold      = 70
	DefaultParallelism        = 8
	DefaultScenarioTimeoutSec = 30
	DefaultSchedulerCron      = "@every 1h"
)

var (
	DefaultTestTypes = []string{"load", "ui", "mobile", "network"}
	DefaultDevices   = []string{"desktop", "mobile", "tablet"}
	DefaultNetworks  = []string{"3g", "4g", "5g", "wifi"}
	DefaultPatterns  = []string{"**/extension.yaml", "**/extension.yml"}
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfgPath := resolveConfigPath()
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	if err := readThresholdEnv(cfg); err != nil {
		return nil, err
	}
	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("DATABASE_URL"); v != "" && cfg.DBURL == "" {
		cfg.DBURL = strings.TrimSpace(v)
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.TrimSpace(v)
	}
	if v := getEnv("PORT", envPrefix+"PORT"); v != "" {
		cfg.ListenAddr = listenAddrWithPort(cfg.ListenAddr, v)
	}
	if v := getEnv("EXTENSIONS_DIR", envPrefix+"EXTENSIONS_DIR"); v != "" {
		cfg.Scanner.Root = strings.TrimSpace(v)
	}
}

func readThresholdEnv(cfg *AppConfig) error {
	v := getEnv(envPrefix+"RISK_THRESHOLD", "RISK_THRESHOLD")
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("risk threshold %q: %w", v, err)
	}
	cfg.Governance.RiskThreshold = &n
	return nil
}

// Normalize trims string fields and fills governance defaults. It is exported so
// tests and the CLI can build a config by hand and still get the same defaults.
func Normalize(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Scanner.Root = strings.TrimSpace(cfg.Scanner.Root)
	cfg.Scheduler.Cron = strings.TrimSpace(cfg.Scheduler.Cron)
	cfg.Observability.MetricsToken = strings.TrimSpace(cfg.Observability.MetricsToken)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Scheduler.Cron == "" {
		cfg.Scheduler.Cron = DefaultSchedulerCron
	}
	if len(cfg.Scanner.Patterns) == 0 {
		cfg.Scanner.Patterns = append([]string(nil), DefaultPatterns...)
	}

	g := &cfg.Governance
	if g.RiskThreshold == nil {
		threshold := DefaultRiskThreshold
		g.RiskThreshold = &threshold
	}
	if g.Parallelism <= 0 {
		g.Parallelism = DefaultParallelism
	}
	if g.ScenarioTimeoutSec <= 0 {
		g.ScenarioTimeoutSec = DefaultScenarioTimeoutSec
	}
	if g.Security.MaxFileBytes <= 0 {
		g.Security.MaxFileBytes = 2 * 1024 * 1024
	}
	g.Matrix.TestTypes = normalizeList(g.Matrix.TestTypes, DefaultTestTypes)
	g.Matrix.Devices = normalizeList(g.Matrix.Devices, DefaultDevices)
	g.Matrix.Networks = normalizeList(g.Matrix.Networks, DefaultNetworks)
	normalizeDelays(&g.Delays)
}

func normalizeDelays(d *DelayConfig) {
	fill := func(min, max *int, defMin, defMax int) {
		if *min <= 0 && *max <= 0 {
			*min, *max = defMin, defMax
			return
		}
		if *min < 0 {
			*min = 0
		}
		if *max < *min {
			*max = *min
		}
	}
	fill(&d.NavigateMinMS, &d.NavigateMaxMS, 500, 1000)
	fill(&d.ClickMinMS, &d.ClickMaxMS, 100, 300)
	fill(&d.ScrollMinMS, &d.ScrollMaxMS, 200, 500)
	fill(&d.WaitMinMS, &d.WaitMaxMS, 500, 1000)
	fill(&d.TypeCharMinMS, &d.TypeCharMaxMS, 50, 150)
}

func normalizeList(in []string, def []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		v := strings.ToLower(strings.TrimSpace(raw))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}

func getEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func resolveConfigPath() string {
	if v := getEnv("APP_CONFIG", envPrefix+"APP_CONFIG"); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultConfigPath
}

func listenAddrWithPort(currentAddr, portRaw string) string {
	port := strings.TrimSpace(portRaw)
	if port == "" {
		return currentAddr
	}
	if _, err := strconv.Atoi(port); err != nil {
		return currentAddr
	}
	host := "0.0.0.0"
	parts := strings.Split(strings.TrimSpace(currentAddr), ":")
	if len(parts) > 1 {
		host = strings.Join(parts[:len(parts)-1], ":")
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + port
}
