package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"AdSweeper/internal/domain"
)

const (
	defaultPlatformURL  = "https://ad.oceanengine.com"
	defaultDirectoryURL = "https://open.feishu.cn/open-apis/bitable/v1"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Platform    PlatformConfig    `yaml:"platform"`
	Directory   DirectoryConfig   `yaml:"directory"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Relay       RelayConfig       `yaml:"relay"`
	Accounts    []AccountConfig   `yaml:"accounts"`
}

// LoggingConfig controls log verbosity and the optional rotated file sink.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File  string `yaml:"file"`
}

// PlatformConfig describes how to reach the ad platform.
type PlatformConfig struct {
	BaseURL           string  `yaml:"baseUrl" validate:"omitempty,url"`
	ProxyURL          string  `yaml:"proxyUrl" validate:"omitempty,url"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds" validate:"min=0"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" validate:"min=0"`
}

// ResolvedBaseURL prefers the debug relay address when one is configured.
func (p PlatformConfig) ResolvedBaseURL() string {
	if p.ProxyURL != "" {
		return p.ProxyURL
	}
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return defaultPlatformURL
}

// Timeout converts the configured seconds to a duration.
func (p PlatformConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// DirectoryConfig wires the account-directory table API.
type DirectoryConfig struct {
	AppID     string `yaml:"appId"`
	AppSecret string `yaml:"appSecret"`
	AppToken  string `yaml:"appToken"`
	TableID   string `yaml:"tableId"`
	BaseURL   string `yaml:"baseUrl" validate:"omitempty,url"`
}

// Configured reports whether all required directory fields are present.
func (d DirectoryConfig) Configured() bool {
	return d.AppID != "" && d.AppSecret != "" && d.AppToken != "" && d.TableID != ""
}

// CredentialsConfig routes accounts to platform session cookies. Subjects map
// a business-unit name to a named cookie; Default names the cookie used for
// accounts with an empty subject (no fallback when unset).
type CredentialsConfig struct {
	Cookies  map[string]string `yaml:"cookies"`
	Subjects map[string]string `yaml:"subjects"`
	Default  string            `yaml:"default"`
}

// SweepConfig tunes the remediation pipeline itself.
type SweepConfig struct {
	DryRun             bool     `yaml:"dryRun"`
	PreviewDelayMs     int      `yaml:"previewDelayMs" validate:"min=0"`
	DeleteDelayMs      int      `yaml:"deleteDelayMs" validate:"min=0"`
	FetchConcurrency   int      `yaml:"fetchConcurrency" validate:"min=1"`
	AliasWhitelist     []string `yaml:"aliasWhitelist"`
	WindowStartMinutes int      `yaml:"windowStartMinutes" validate:"min=0"`
	WindowEndMinutes   int      `yaml:"windowEndMinutes" validate:"min=0"`
}

// PreviewDelay is the pause after each preview call.
func (s SweepConfig) PreviewDelay() time.Duration {
	return time.Duration(s.PreviewDelayMs) * time.Millisecond
}

// DeleteDelay is the cooldown after each delete call.
func (s SweepConfig) DeleteDelay() time.Duration {
	return time.Duration(s.DeleteDelayMs) * time.Millisecond
}

// WindowStart is the older edge of the account creation-time window,
// expressed as an offset back from now.
func (s SweepConfig) WindowStart() time.Duration {
	return time.Duration(s.WindowStartMinutes) * time.Minute
}

// WindowEnd is the newer edge of the account creation-time window.
func (s SweepConfig) WindowEnd() time.Duration {
	return time.Duration(s.WindowEndMinutes) * time.Minute
}

// SchedulerConfig defines the recurring run interval. Zero means single-run.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes" validate:"min=0"`
}

// Interval converts the configured minutes to a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// RelayConfig hosts the debug pass-through forwarder.
type RelayConfig struct {
	Port   int    `yaml:"port" validate:"min=0,max=65535"`
	Target string `yaml:"target" validate:"omitempty,url"`
}

// AccountConfig is an inline account entry overriding the directory provider.
type AccountConfig struct {
	ID        string `yaml:"id" validate:"required"`
	DramaName string `yaml:"dramaName" validate:"required"`
	Subject   string `yaml:"subject"`
	Cookie    string `yaml:"cookie"`
}

// DomainAccounts converts the inline account list to domain records.
func (c Config) DomainAccounts() []domain.Account {
	accounts := make([]domain.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, domain.Account{
			ID:             a.ID,
			DramaName:      a.DramaName,
			Subject:        a.Subject,
			CookieOverride: a.Cookie,
		})
	}
	return accounts
}

type envOverrides struct {
	LogLevel           string `env:"ADSWEEPER_LOG_LEVEL"`
	ProxyURL           string `env:"ADSWEEPER_PROXY_URL"`
	DirectoryAppID     string `env:"DIRECTORY_APP_ID"`
	DirectoryAppSecret string `env:"DIRECTORY_APP_SECRET"`
	DirectoryAppToken  string `env:"DIRECTORY_APP_TOKEN"`
	DirectoryTableID   string `env:"DIRECTORY_TABLE_ID"`
}

// Load reads YAML configuration, applies environment overrides, and validates
// the result. A validation failure is a ConfigError and fatal to the process.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &domain.ConfigError{Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, &domain.ConfigError{Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return &domain.ConfigError{Reason: fmt.Sprintf("parse environment: %v", err)}
	}

	if overrides.LogLevel != "" {
		c.Logging.Level = overrides.LogLevel
	}
	if overrides.ProxyURL != "" {
		c.Platform.ProxyURL = overrides.ProxyURL
	}
	if overrides.DirectoryAppID != "" {
		c.Directory.AppID = overrides.DirectoryAppID
	}
	if overrides.DirectoryAppSecret != "" {
		c.Directory.AppSecret = overrides.DirectoryAppSecret
	}
	if overrides.DirectoryAppToken != "" {
		c.Directory.AppToken = overrides.DirectoryAppToken
	}
	if overrides.DirectoryTableID != "" {
		c.Directory.TableID = overrides.DirectoryTableID
	}

	return nil
}

func (c Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &domain.ConfigError{Reason: err.Error()}
	}

	if len(c.Accounts) == 0 && !c.Directory.Configured() {
		return &domain.ConfigError{Reason: "directory credentials are required when no inline accounts are configured"}
	}

	if len(c.Credentials.Cookies) == 0 {
		return &domain.ConfigError{Reason: "at least one named cookie must be configured"}
	}
	for subject, name := range c.Credentials.Subjects {
		if _, ok := c.Credentials.Cookies[name]; !ok {
			return &domain.ConfigError{Reason: fmt.Sprintf("subject %q maps to unknown cookie %q", subject, name)}
		}
	}
	if c.Credentials.Default != "" {
		if _, ok := c.Credentials.Cookies[c.Credentials.Default]; !ok {
			return &domain.ConfigError{Reason: fmt.Sprintf("default cookie %q is not configured", c.Credentials.Default)}
		}
	}

	if c.Sweep.WindowStartMinutes < c.Sweep.WindowEndMinutes {
		return &domain.ConfigError{Reason: "windowStartMinutes must not be smaller than windowEndMinutes"}
	}

	return nil
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Platform: PlatformConfig{
			BaseURL:           defaultPlatformURL,
			TimeoutSeconds:    20,
			RequestsPerSecond: 2,
		},
		Directory: DirectoryConfig{BaseURL: defaultDirectoryURL},
		Sweep: SweepConfig{
			DryRun:             true,
			PreviewDelayMs:     400,
			DeleteDelayMs:      300,
			FetchConcurrency:   3,
			WindowStartMinutes: 50,
			WindowEndMinutes:   30,
		},
		Relay: RelayConfig{Port: 3001, Target: defaultPlatformURL},
	}
}
