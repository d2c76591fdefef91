package config

import "time"

// Env key constants. All env vars use the TRAFFICWARDEN_ prefix; duration
// values support explicit units (e.g. 5m, 40s, 2h). Secrets should come
// from the environment rather than the config file.

// Path to the YAML config file.
const envKeyConfigPath = "TRAFFICWARDEN_CONFIG"

// Log level: debug, info, warn, error.
const envKeyLogLevel = "TRAFFICWARDEN_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "TRAFFICWARDEN_LOG_FORMAT"

// Port for health/readiness HTTP server.
const envKeyHTTPPort = "TRAFFICWARDEN_HTTP_PORT"

// Port for Prometheus metrics (GET /metrics).
const envKeyMetricsPort = "TRAFFICWARDEN_METRICS_PORT"

// Hetzner Cloud API token.
const envKeyHCloudToken = "TRAFFICWARDEN_HCLOUD_TOKEN"

// Telegram bot token.
const envKeyTelegramBotToken = "TRAFFICWARDEN_TELEGRAM_BOT_TOKEN"

// Cloudflare API token, required only when cloudflare.enable is set.
const envKeyCloudflareAPIToken = "TRAFFICWARDEN_CLOUDFLARE_API_TOKEN"

// Traffic poll interval. Units: s, m, h (e.g. 300s, 5m).
const (
	envKeyPollInterval = "TRAFFICWARDEN_POLL_INTERVAL"
	minPollInterval    = 30 * time.Second
)

// Pinger check interval. Units: s, m, h (e.g. 10s, 1m).
const (
	envKeyPingerInterval = "TRAFFICWARDEN_PINGER_INTERVAL"
	minPingerInterval    = time.Second
)
