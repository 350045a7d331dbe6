package config

import (
	"os"
	"strconv"

	"github.com/rohanthewiz/serr"
	"gopkg.in/yaml.v3"

	"deskpilot/plan"
	"deskpilot/policy"
)

const (
	defaultAddress           = ":8400"
	defaultRateLimit         = 10
	defaultConsentTimeoutSec = 60
	defaultMaxWorkers        = 4
	defaultStepTimeoutSec    = 120
	defaultAuditBackend      = "jsonl"
	defaultAuditPath         = "deskpilot_audit.jsonl"
)

// Config is the full runtime configuration. It is loaded once in main and
// handed to each component; nothing reads it through a global.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`

	Safety struct {
		RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
		ApprovalThreshold  string   `yaml:"approval_threshold"`
		RequirePIN         bool     `yaml:"require_pin"`
		PINHash            string   `yaml:"pin_hash"`
		SensitivePrefixes  []string `yaml:"sensitive_prefixes"`
	} `yaml:"safety"`

	Consent struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"consent"`

	Scheduler struct {
		MaxWorkers         int `yaml:"max_workers"`
		StepTimeoutSeconds int `yaml:"step_timeout_seconds"`
	} `yaml:"scheduler"`

	Audit struct {
		Backend string `yaml:"backend"` // jsonl or duckdb
		Path    string `yaml:"path"`
	} `yaml:"audit"`

	Policy struct {
		Rules []policy.Rule `yaml:"rules"`
	} `yaml:"policy"`
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides, then fills defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, serr.Wrap(err, "read config file "+path)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, serr.Wrap(err, "parse config file "+path)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DESKPILOT_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("DESKPILOT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Safety.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("DESKPILOT_APPROVAL_THRESHOLD"); v != "" {
		c.Safety.ApprovalThreshold = v
	}
	if v := os.Getenv("DESKPILOT_PIN_HASH"); v != "" {
		c.Safety.PINHash = v
		c.Safety.RequirePIN = true
	}
	if v := os.Getenv("DESKPILOT_AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("DESKPILOT_AUDIT_PATH"); v != "" {
		c.Audit.Path = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Safety.RateLimitPerMinute <= 0 {
		c.Safety.RateLimitPerMinute = defaultRateLimit
	}
	if c.Safety.ApprovalThreshold == "" {
		c.Safety.ApprovalThreshold = string(plan.RiskMedium)
	}
	if c.Consent.TimeoutSeconds <= 0 {
		c.Consent.TimeoutSeconds = defaultConsentTimeoutSec
	}
	if c.Scheduler.MaxWorkers <= 0 {
		c.Scheduler.MaxWorkers = defaultMaxWorkers
	}
	if c.Scheduler.StepTimeoutSeconds <= 0 {
		c.Scheduler.StepTimeoutSeconds = defaultStepTimeoutSec
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = defaultAuditBackend
	}
	if c.Audit.Path == "" {
		c.Audit.Path = defaultAuditPath
	}
}

func (c *Config) validate() error {
	if !plan.RiskLevel(c.Safety.ApprovalThreshold).Valid() {
		return serr.New("invalid approval_threshold: " + c.Safety.ApprovalThreshold)
	}
	if c.Audit.Backend != "jsonl" && c.Audit.Backend != "duckdb" {
		return serr.New("invalid audit backend: " + c.Audit.Backend)
	}
	if c.Safety.RequirePIN && c.Safety.PINHash == "" {
		return serr.New("require_pin is set but no pin_hash is configured")
	}
	return nil
}
