package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyonlabs/claimd/config"
	"github.com/halcyonlabs/claimd/errors"
)

// ConfigCmd shows the effective configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Display the effective claimd configuration after merging defaults,
the config file, and CLAIMD_* environment variables.`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	source := config.ConfigFilePath()
	if source == "" {
		source = "(defaults + environment)"
	}
	fmt.Printf("Config source: %s\n\n", source)

	fmt.Println("[database]")
	fmt.Printf("path = %q\n\n", cfg.Database.Path)

	fmt.Println("[server]")
	fmt.Printf("port = %d\n", cfg.Server.Port)
	fmt.Printf("allowed_origins = %v\n\n", cfg.Server.AllowedOrigins)

	fmt.Println("[claim]")
	fmt.Printf("pool_capacity = %d\n", cfg.Claim.PoolCapacity)
	fmt.Printf("job_timeout_seconds = %d\n", cfg.Claim.JobTimeoutSeconds)
	fmt.Printf("max_attempts_per_minute = %d\n", cfg.Claim.MaxAttemptsPerMinute)
	fmt.Printf("progress_retention_seconds = %d\n\n", cfg.Claim.ProgressRetentionSeconds)

	fmt.Println("[scheduler]")
	fmt.Printf("enabled = %t\n", cfg.Scheduler.Enabled)
	fmt.Printf("interval_seconds = %d\n\n", cfg.Scheduler.IntervalSeconds)

	fmt.Println("[automation]")
	fmt.Printf("driver_url = %q\n", cfg.Automation.DriverURL)
	fmt.Printf("request_timeout_seconds = %d\n\n", cfg.Automation.RequestTimeoutSeconds)

	fmt.Println("[notify]")
	if cfg.Notify.WebhookURL != "" {
		// Webhook URLs can embed tokens
		fmt.Printf("webhook_url = (configured)\n")
	} else {
		fmt.Printf("webhook_url = \"\"\n")
	}
	fmt.Printf("timeout_seconds = %d\n", cfg.Notify.TimeoutSeconds)

	return nil
}
