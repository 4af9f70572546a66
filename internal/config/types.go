package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("30s", "15m"). Empty means "use the default".
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Bible     BibleConfig     `json:"bible"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Health    HealthConfig    `json:"health"`
	Delivery  DeliveryConfig  `json:"delivery"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id (decimal) that receives warn+ log lines when
	// logging.telegram.enabled is set. Empty falls back to the first owner.
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// BibleConfig points at the API.Bible compatible content provider.
type BibleConfig struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	DefaultVersion string `json:"default_version"`
	Timeout        string `json:"timeout"`
	// RatePerSec caps outgoing requests; 0 uses the default.
	RatePerSec float64 `json:"rate_per_sec"`
	CatalogTTL string  `json:"catalog_ttl"`
}

// SchedulerConfig controls the delivery sweep.
//
// Defaults (when fields are omitted/zero):
//   - tick: "* * * * *" (every minute, aligned to the wall clock)
//   - catch_up: one tick
//   - workers: 4
//   - request_timeout: "20s"
//   - backoff_base: "15m"
//   - backoff_max: "24h"
type SchedulerConfig struct {
	Tick           string `json:"tick"`
	CatchUp        string `json:"catch_up"`
	Workers        int    `json:"workers"`
	RequestTimeout string `json:"request_timeout"`
	BackoffBase    string `json:"backoff_base"`
	BackoffMax     string `json:"backoff_max"`
}

// StorageConfig selects the schedule store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/schedules.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HealthConfig controls the keep-alive HTTP listener.
type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: ":8080"
}

// DeliveryConfig shapes outgoing Telegram sends.
type DeliveryConfig struct {
	RatePerSec float64 `json:"rate_per_sec"`
}
