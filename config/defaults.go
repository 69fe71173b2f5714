package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "claimd.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	// Claim orchestration defaults
	v.SetDefault("claim.pool_capacity", 6)
	v.SetDefault("claim.job_timeout_seconds", 300)
	v.SetDefault("claim.max_attempts_per_minute", 30) // polite pacing against the third-party property
	v.SetDefault("claim.progress_retention_seconds", 3600)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_seconds", 86400) // once per day

	// Automation driver defaults
	v.SetDefault("automation.driver_url", "http://localhost:4444")
	v.SetDefault("automation.request_timeout_seconds", 280)

	// Notification defaults
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout_seconds", 5)
}

// BindSensitiveEnvVars binds configuration values that should come from the
// environment rather than the config file.
func BindSensitiveEnvVars(v *viper.Viper) {
	// Webhook URLs can embed tokens; allow env-only configuration.
	v.BindEnv("notify.webhook_url", "CLAIMD_NOTIFY_WEBHOOK_URL")
	v.BindEnv("automation.driver_url", "CLAIMD_AUTOMATION_DRIVER_URL")
}
