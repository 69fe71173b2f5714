package commands

import (
	"fmt"

	"github.com/halcyonlabs/claimd/config"
	"github.com/halcyonlabs/claimd/internal/version"
	"github.com/halcyonlabs/claimd/sym"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(cfg *config.Config) {
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═══════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                           ║\n")
	fmt.Printf("   ║      %s claimd — claim orchestration       ║\n", sym.Claim)
	fmt.Printf("   ║                                           ║\n")
	fmt.Printf("   ║   %s Pool  %s Schedule  %s Store  %s Notify   ║\n", sym.Pool, sym.Sched, sym.DB, sym.Notify)
	fmt.Printf("   ║                                           ║\n")
	fmt.Printf("   ╚═══════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ claimd Info ───────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:    %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.CommitHash)
	fmt.Printf("%s│%s Database:   %s\n", green, reset, cfg.Database.Path)
	fmt.Printf("%s│%s Pool:       %d sessions\n", green, reset, cfg.Claim.PoolCapacity)
	if cfg.Scheduler.Enabled {
		fmt.Printf("%s│%s Scheduler:  every %ds\n", green, reset, cfg.Scheduler.IntervalSeconds)
	} else {
		fmt.Printf("%s│%s Scheduler:  disabled\n", green, reset)
	}
	if cfg.Notify.WebhookURL != "" {
		fmt.Printf("%s│%s Webhook:    configured\n", green, reset)
	}
	fmt.Printf("%s└─────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%sBatches stream live at /ws?batch=<id>%s\n", yellow, bold, reset)
	fmt.Printf("%sPress Ctrl+C to stop%s\n\n", blue, reset)
}
