// Package config loads the YAML config file and applies TRAFFICWARDEN_*
// environment overrides. Configuration is read once at startup; validation
// failures are fatal.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skillcoder/trafficwarden/internal/infra/cronparser"
	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

const (
	defaultConfigPath     = "/etc/trafficwarden/config.yaml"
	defaultPollInterval   = 5 * time.Minute
	defaultPingerInterval = 15 * time.Second
	defaultTrafficLimit   = 95
)

// defaultThresholds matches the classic 10%..90% warning ladder.
var defaultThresholds = []int{10, 20, 30, 40, 50, 60, 70, 80, 90}

// Telegram is the operator chat transport configuration.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// RebuildServer is one sleep-mode create spec.
type RebuildServer struct {
	Name       string   `yaml:"name"`
	ServerType string   `yaml:"server_type"`
	Image      string   `yaml:"image"`
	Location   string   `yaml:"location"`
	SSHKeys    []string `yaml:"ssh_keys"`
}

// SleepMode is the daily destroy-then-recreate cycle configuration.
// Times are wall-clock HH:MM in Timezone.
type SleepMode struct {
	Enable         bool            `yaml:"enable"`
	ShutdownTime   string          `yaml:"shutdown_time"`
	StartupTime    string          `yaml:"startup_time"`
	Timezone       string          `yaml:"timezone"`
	RebuildServers []RebuildServer `yaml:"rebuild_servers"`
}

// Cloudflare is the DNS update configuration applied after rebuilds.
type Cloudflare struct {
	Enable    bool   `yaml:"enable"`
	APIToken  string `yaml:"api_token"`
	Domain    string `yaml:"domain"`
	Subdomain string `yaml:"subdomain"`
}

type Config struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	HTTPPort    string `yaml:"http_port"`
	MetricsPort string `yaml:"metrics_port"`

	HCloudToken string   `yaml:"hcloud_token"`
	Telegram    Telegram `yaml:"telegram"`

	NotificationThresholds []int  `yaml:"notification_thresholds"`
	TrafficLimitPercent    int    `yaml:"traffic_limit_percent"`
	PollIntervalRaw        string `yaml:"poll_interval"`

	SleepMode  SleepMode  `yaml:"sleep_mode"`
	Cloudflare Cloudflare `yaml:"cloudflare"`

	// Derived at load time, not part of the file.
	PollInterval   time.Duration `yaml:"-"`
	PingerInterval time.Duration `yaml:"-"`
	ShutdownCron   string        `yaml:"-"`
	StartupCron    string        `yaml:"-"`
}

// Load reads the config file named by TRAFFICWARDEN_CONFIG, applies env
// overrides and validates.
func Load() (*Config, error) {
	path := getEnvOrDefault(envKeyConfigPath, defaultConfigPath)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(raw)
}

// Parse decodes, applies env overrides, fills defaults and validates.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := deriveDurations(cfg); err != nil {
		return nil, err
	}

	if err := deriveSchedule(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RebuildSpecs converts the configured rebuild servers to domain specs.
func (c *Config) RebuildSpecs() []fleet.CreateSpec {
	specs := make([]fleet.CreateSpec, 0, len(c.SleepMode.RebuildServers))

	for _, s := range c.SleepMode.RebuildServers {
		specs = append(specs, fleet.CreateSpec{
			Name:     s.Name,
			Type:     s.ServerType,
			Image:    s.Image,
			Location: s.Location,
			SSHKeys:  s.SSHKeys,
		})
	}

	return specs
}

// DNSRecordName returns the FQDN the Cloudflare updater maintains.
func (c *Config) DNSRecordName() string {
	if c.Cloudflare.Subdomain == "" {
		return c.Cloudflare.Domain
	}

	return c.Cloudflare.Subdomain + "." + c.Cloudflare.Domain
}

// UnreachableThresholds lists notification thresholds at or above the
// destroy limit. Such thresholds can never fire because the server is
// destroyed first; flagged at startup, deliberately not auto-corrected.
func (c *Config) UnreachableThresholds() []int {
	var unreachable []int

	for _, t := range c.NotificationThresholds {
		if t >= c.TrafficLimitPercent {
			unreachable = append(unreachable, t)
		}
	}

	return unreachable
}

func applyEnvOverrides(cfg *Config) {
	cfg.LogLevel = getEnvOrDefault(envKeyLogLevel, cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault(envKeyLogFormat, cfg.LogFormat)
	cfg.HTTPPort = getEnvOrDefault(envKeyHTTPPort, cfg.HTTPPort)
	cfg.MetricsPort = getEnvOrDefault(envKeyMetricsPort, cfg.MetricsPort)
	cfg.HCloudToken = getEnvOrDefault(envKeyHCloudToken, cfg.HCloudToken)
	cfg.Telegram.BotToken = getEnvOrDefault(envKeyTelegramBotToken, cfg.Telegram.BotToken)
	cfg.Cloudflare.APIToken = getEnvOrDefault(envKeyCloudflareAPIToken, cfg.Cloudflare.APIToken)
	cfg.PollIntervalRaw = getEnvOrDefault(envKeyPollInterval, cfg.PollIntervalRaw)
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}

	if len(cfg.NotificationThresholds) == 0 {
		cfg.NotificationThresholds = append([]int(nil), defaultThresholds...)
	}

	if cfg.TrafficLimitPercent == 0 {
		cfg.TrafficLimitPercent = defaultTrafficLimit
	}

	if cfg.SleepMode.Timezone == "" {
		cfg.SleepMode.Timezone = "UTC"
	}
}

func deriveDurations(cfg *Config) error {
	cfg.PollInterval = defaultPollInterval

	if cfg.PollIntervalRaw != "" {
		interval, err := time.ParseDuration(cfg.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parse poll_interval: %w", err)
		}

		cfg.PollInterval = interval
	}

	if cfg.PollInterval < minPollInterval {
		return fmt.Errorf("poll_interval %s below minimum %s", cfg.PollInterval, minPollInterval)
	}

	cfg.PingerInterval = defaultPingerInterval

	if raw := os.Getenv(envKeyPingerInterval); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envKeyPingerInterval, err)
		}

		if interval < minPingerInterval {
			return fmt.Errorf("%s %s below minimum %s", envKeyPingerInterval, interval, minPingerInterval)
		}

		cfg.PingerInterval = interval
	}

	return nil
}

func deriveSchedule(cfg *Config) error {
	if !cfg.SleepMode.Enable {
		return nil
	}

	if _, err := time.LoadLocation(cfg.SleepMode.Timezone); err != nil {
		return fmt.Errorf("load sleep_mode timezone: %w", err)
	}

	shutdownHour, shutdownMinute, err := parseTimeOfDay(cfg.SleepMode.ShutdownTime)
	if err != nil {
		return fmt.Errorf("parse sleep_mode shutdown_time: %w", err)
	}

	startupHour, startupMinute, err := parseTimeOfDay(cfg.SleepMode.StartupTime)
	if err != nil {
		return fmt.Errorf("parse sleep_mode startup_time: %w", err)
	}

	cfg.ShutdownCron = cronparser.DailySpec(shutdownHour, shutdownMinute)
	cfg.StartupCron = cronparser.DailySpec(startupHour, startupMinute)

	return nil
}

func validate(cfg *Config) error {
	if cfg.HCloudToken == "" {
		return fmt.Errorf("hcloud_token is required")
	}

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}

	if cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required")
	}

	prev := 0

	for _, t := range cfg.NotificationThresholds {
		if t <= 0 || t > 100 {
			return fmt.Errorf("notification threshold %d out of range (0,100]", t)
		}

		if t <= prev {
			return fmt.Errorf("notification thresholds must be strictly ascending, got %d after %d", t, prev)
		}

		prev = t
	}

	if cfg.TrafficLimitPercent <= 0 {
		return fmt.Errorf("traffic_limit_percent must be positive")
	}

	if cfg.SleepMode.Enable {
		for i, spec := range cfg.SleepMode.RebuildServers {
			if spec.Name == "" || spec.ServerType == "" || spec.Image == "" || spec.Location == "" {
				return fmt.Errorf("sleep_mode.rebuild_servers[%d]: name, server_type, image and location are required", i)
			}
		}
	}

	if cfg.Cloudflare.Enable {
		if cfg.Cloudflare.APIToken == "" {
			return fmt.Errorf("cloudflare.api_token is required when cloudflare is enabled")
		}

		if cfg.Cloudflare.Domain == "" {
			return fmt.Errorf("cloudflare.domain is required when cloudflare is enabled")
		}
	}

	return nil
}

// parseTimeOfDay parses "HH:MM" (24h clock).
func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour, minute, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}
