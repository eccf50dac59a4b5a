package config

import "time"

type AppConfig struct {
	DBDriver      string              `yaml:"db_driver" env:"EXTGOV_DB_DRIVER"`
	DBURL         string              `yaml:"db_url" env:"EXTGOV_DB_URL"`
	DBPath        string              `yaml:"db_path" env:"EXTGOV_DB_PATH"`
	ListenAddr    string              `yaml:"listen_addr" env:"EXTGOV_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv        string              `yaml:"app_env" env:"EXTGOV_APP_ENV" env-default:"prod"`
	LogLevel      string              `yaml:"log_level" env:"EXTGOV_LOG_LEVEL" env-default:"info"`
	TLSEnabled    bool                `yaml:"tls_enabled" env:"EXTGOV_TLS_ENABLED"`
	TLSCert       string              `yaml:"tls_cert" env:"EXTGOV_TLS_CERT"`
	TLSKey        string              `yaml:"tls_key" env:"EXTGOV_TLS_KEY"`
	Observability ObservabilityConfig `yaml:"observability"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Scanner       ScannerConfig       `yaml:"scanner"`
	Governance    GovernanceConfig    `yaml:"governance"`
}

func (c *AppConfig) IsDev() bool {
	if c == nil {
		return false
	}
	return c.AppEnv == "dev"
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"EXTGOV_METRICS_ENABLED"`
	MetricsToken   string `yaml:"metrics_token" env:"EXTGOV_METRICS_TOKEN"`
	// Dev deployments may scrape without a token.
	MetricsAllowUnauthInDev bool `yaml:"metrics_allow_unauth_in_dev" env:"EXTGOV_METRICS_ALLOW_UNAUTH_IN_DEV"`
}

type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled" env:"EXTGOV_SCHEDULER_ENABLED"`
	Cron    string `yaml:"cron" env:"EXTGOV_SCHEDULER_CRON"`
}

type ScannerConfig struct {
	Root     string   `yaml:"root" env:"EXTGOV_SCANNER_ROOT"`
	Patterns []string `yaml:"patterns" env:"EXTGOV_SCANNER_PATTERNS" env-separator:","`
}

type GovernanceConfig struct {
	// Nil means unset. An explicit 0 is kept and blocks every activation.
	// Read from EXTGOV_RISK_THRESHOLD or RISK_THRESHOLD in Load.
	RiskThreshold      *int           `yaml:"risk_threshold"`
	Parallelism        int            `yaml:"parallelism" env:"EXTGOV_STRESS_PARALLELISM"`
	ScenarioTimeoutSec int            `yaml:"scenario_timeout_sec" env:"EXTGOV_SCENARIO_TIMEOUT_SEC"`
	SimulationSeed     int64          `yaml:"simulation_seed" env:"EXTGOV_SIMULATION_SEED"`
	Delays             DelayConfig    `yaml:"delays"`
	Matrix             MatrixConfig   `yaml:"matrix"`
	Security           SecurityConfig `yaml:"security"`
	// Versions of shared packages the host provides, matched against extension dependency ranges.
	HostPackages map[string]string `yaml:"host_packages" env:"EXTGOV_HOST_PACKAGES"`
}

// Threshold returns the configured risk threshold or DefaultRiskThreshold.
func (g GovernanceConfig) Threshold() int {
	if g.RiskThreshold == nil {
		return DefaultRiskThreshold
	}
	return *g.RiskThreshold
}

func (g GovernanceConfig) ScenarioTimeout() time.Duration {
	return time.Duration(g.ScenarioTimeoutSec) * time.Second
}

// DelayConfig holds human-like delay bounds in milliseconds.
type DelayConfig struct {
	NavigateMinMS int `yaml:"navigate_min_ms"`
	NavigateMaxMS int `yaml:"navigate_max_ms"`
	ClickMinMS    int `yaml:"click_min_ms"`
	ClickMaxMS    int `yaml:"click_max_ms"`
	ScrollMinMS   int `yaml:"scroll_min_ms"`
	ScrollMaxMS   int `yaml:"scroll_max_ms"`
	WaitMinMS     int `yaml:"wait_min_ms"`
	WaitMaxMS     int `yaml:"wait_max_ms"`
	TypeCharMinMS int `yaml:"type_char_min_ms"`
	TypeCharMaxMS int `yaml:"type_char_max_ms"`
	// When false the simulator only records delays instead of sleeping them.
	RealTime bool `yaml:"real_time" env:"EXTGOV_SIMULATOR_REAL_TIME"`
}

type MatrixConfig struct {
	TestTypes []string `yaml:"test_types" env:"EXTGOV_MATRIX_TEST_TYPES" env-separator:","`
	Devices   []string `yaml:"devices" env:"EXTGOV_MATRIX_DEVICES" env-separator:","`
	Networks  []string `yaml:"networks" env:"EXTGOV_MATRIX_NETWORKS" env-separator:","`
}

type SecurityConfig struct {
	// Egress allow rules in "host/path" form; keyMatch2 wildcards are supported.
	AllowedEgress []string `yaml:"allowed_egress" env:"EXTGOV_ALLOWED_EGRESS" env-separator:","`
	MaxFileBytes  int64    `yaml:"max_file_bytes"`
}
