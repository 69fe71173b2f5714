// Package config loads and watches the claimd configuration.
package config

// Config represents the core claimd configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Claim      ClaimConfig      `mapstructure:"claim"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Automation AutomationConfig `mapstructure:"automation"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the claimd control server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultServerPort is the control server port (above the privileged range).
const DefaultServerPort = 8710

// ClaimConfig configures the claim orchestration core
type ClaimConfig struct {
	// PoolCapacity bounds concurrent automation sessions (default: 6).
	// Each session is a full interactive browser, so this is the primary
	// resource knob.
	PoolCapacity int `mapstructure:"pool_capacity"`

	// JobTimeoutSeconds is the hard wall-clock limit per claim job
	// (default: 300). On expiry the job fails and its slot is released
	// even if the automation call never returns.
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds"`

	// MaxAttemptsPerMinute rate-limits claim attempts against the third
	// party property across all jobs (default: 30, 0 = unlimited).
	MaxAttemptsPerMinute int `mapstructure:"max_attempts_per_minute"`

	// ProgressRetentionSeconds is how long finished batch progress stays
	// queryable in memory before the sweeper removes it (default: 3600).
	ProgressRetentionSeconds int `mapstructure:"progress_retention_seconds"`
}

// SchedulerConfig configures the periodic batch trigger
type SchedulerConfig struct {
	// Enabled controls whether the ticker runs at all (default: true).
	Enabled bool `mapstructure:"enabled"`

	// IntervalSeconds is how often a scheduled batch is triggered
	// (default: 86400, once per day).
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// AutomationConfig configures the external automation driver
type AutomationConfig struct {
	// DriverURL is the base URL of the browser-automation driver service
	// that performs the actual page interaction.
	DriverURL string `mapstructure:"driver_url"`

	// RequestTimeoutSeconds bounds a single driver HTTP call (default: 280,
	// just under the job timeout so the driver call fails first).
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// NotifyConfig configures outbound webhook notifications
type NotifyConfig struct {
	// WebhookURL receives per-account outcomes and batch summaries.
	// Empty disables notifications.
	WebhookURL string `mapstructure:"webhook_url"`

	// TimeoutSeconds bounds a single webhook POST (default: 5).
	// Notifications are fire-and-forget; a slow sink never delays a job.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}
