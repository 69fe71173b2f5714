package commands

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/config"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/logger"
	"github.com/halcyonlabs/claimd/notify"
	"github.com/halcyonlabs/claimd/pool"
	"github.com/halcyonlabs/claimd/progress"
	"github.com/halcyonlabs/claimd/registry"
	sessionpkg "github.com/halcyonlabs/claimd/session"
	"github.com/halcyonlabs/claimd/sym"
)

// BatchCmd groups batch operations
var BatchCmd = &cobra.Command{
	Use:   "batch",
	Short: sym.Claim + " Trigger and inspect claim batches",
	Long: sym.Claim + ` batch — Trigger and inspect claim batches

Examples:
  claimd batch run                 # Claim for every registered account
  claimd batch run acct-1 acct-2   # Claim for an explicit subset, blocked or not
  claimd batch ls                  # Recent batch runs
  claimd batch show <batch-id>     # One batch with its records`,
}

var batchRunCmd = &cobra.Command{
	Use:   "run [account-id...]",
	Short: "Run a claim batch and wait for it to finish",
	Long: `Trigger a manual claim batch and block until every job reaches a
terminal state. With no arguments the whole registry is claimed, excluding
blocked accounts; explicit account IDs are used exactly as given.`,
	RunE: runBatchRun,
}

var batchLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent batch runs",
	RunE:  runBatchLs,
}

var batchShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one batch run with its claim records",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchShow,
}

var batchLsLimit int

func init() {
	BatchCmd.AddCommand(batchRunCmd)
	BatchCmd.AddCommand(batchLsCmd)
	BatchCmd.AddCommand(batchShowCmd)
	batchLsCmd.Flags().IntVar(&batchLsLimit, "limit", 20, "Number of batch runs to show")
}

func runBatchRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	scheduler := buildScheduler(cfg, database)

	if len(args) > 0 {
		pterm.Info.Printf("Claiming for %d explicit accounts\n", len(args))
	} else {
		pterm.Info.Println("Claiming for all registered accounts")
	}

	started := time.Now()
	batch, err := scheduler.TriggerBatch(cmd.Context(), args)
	if err != nil {
		if errors.Is(err, errors.ErrRegistryUnavailable) {
			return errors.Wrap(err, "target registry unavailable, no jobs were started")
		}
		return errors.Wrap(err, "batch failed")
	}

	pterm.Success.Printf("Batch %s finished in %s\n", batch.ID, time.Since(started).Round(time.Millisecond))
	fmt.Printf("  Targets:         %d\n", batch.TotalTargets)
	fmt.Printf("  Succeeded:       %d\n", batch.Succeeded)
	fmt.Printf("  Already claimed: %d\n", batch.AlreadyClaimed)
	fmt.Printf("  Failed:          %d\n", batch.Failed)

	if batch.Failed > 0 {
		pterm.Warning.Printf("Run 'claimd batch show %s' for per-account errors\n", batch.ID)
	}
	return nil
}

// buildScheduler wires the claim engine for a one-shot CLI batch: the same
// pool, guard, runner, and reporter serve uses, minus the server surface.
func buildScheduler(cfg *config.Config, database *sql.DB) *claim.Scheduler {
	log := logger.Logger

	capacity := cfg.Claim.PoolCapacity
	if capacity <= 0 {
		capacity = pool.DefaultCapacity
	}
	sessionPool := pool.New(capacity, logger.AddPoolSymbol(log))

	tracker := progress.NewTracker(log)
	recordStore := claim.NewRecordStore(database)
	batchStore := claim.NewBatchStore(database)
	targetRegistry := registry.NewSQLiteRegistry(database)
	guard := claim.NewGuard(recordStore, log)

	var outcomeNotifier claim.Notifier
	var batchNotifier claim.BatchNotifier
	if cfg.Notify.WebhookURL != "" {
		webhookTimeout := notify.DefaultTimeout
		if cfg.Notify.TimeoutSeconds > 0 {
			webhookTimeout = time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
		}
		webhook := notify.NewWebhook(cfg.Notify.WebhookURL, webhookTimeout, logger.AddNotifySymbol(log))
		outcomeNotifier = webhook
		batchNotifier = webhook
	} else {
		noop := notify.NewNoop()
		outcomeNotifier = noop
		batchNotifier = noop
	}

	var limiter *rate.Limiter
	if cfg.Claim.MaxAttemptsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.Claim.MaxAttemptsPerMinute)/60.0), 1)
	}

	jobTimeout := claim.DefaultJobTimeout
	if cfg.Claim.JobTimeoutSeconds > 0 {
		jobTimeout = time.Duration(cfg.Claim.JobTimeoutSeconds) * time.Second
	}

	driverTimeout := sessionpkg.DefaultRequestTimeout
	if cfg.Automation.RequestTimeoutSeconds > 0 {
		driverTimeout = time.Duration(cfg.Automation.RequestTimeoutSeconds) * time.Second
	}
	sess := sessionpkg.NewRemote(cfg.Automation.DriverURL, driverTimeout, log)

	runner := claim.NewRunner(sessionPool, guard, sess, tracker, outcomeNotifier, limiter, jobTimeout, logger.AddClaimSymbol(log))
	reporter := claim.NewReporter(batchNotifier, logger.AddClaimCloseSymbol(log))
	return claim.NewScheduler(targetRegistry, runner, tracker, batchStore, reporter, logger.AddClaimSymbol(log))
}

func runBatchLs(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	store := claim.NewBatchStore(database)
	batches, err := store.ListBatchRuns(batchLsLimit)
	if err != nil {
		return errors.Wrap(err, "failed to list batch runs")
	}

	if len(batches) == 0 {
		pterm.Info.Println("No batch runs recorded")
		return nil
	}

	rows := pterm.TableData{{"ID", "Trigger", "Started", "Targets", "OK", "Dup", "Fail"}}
	for _, b := range batches {
		rows = append(rows, []string{
			b.ID[:8],
			string(b.TriggeredBy),
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", b.TotalTargets),
			fmt.Sprintf("%d", b.Succeeded),
			fmt.Sprintf("%d", b.AlreadyClaimed),
			fmt.Sprintf("%d", b.Failed),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runBatchShow(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	batchID := args[0]
	batchStore := claim.NewBatchStore(database)
	recordStore := claim.NewRecordStore(database)

	batch, err := batchStore.GetBatchRun(batchID)
	if err != nil {
		return errors.Wrapf(err, "failed to load batch %s", batchID)
	}

	fmt.Printf("%s Batch %s\n", sym.Claim, batch.ID)
	fmt.Printf("  Trigger:         %s\n", batch.TriggeredBy)
	fmt.Printf("  Started:         %s\n", batch.StartedAt.Local().Format(time.RFC3339))
	if batch.EndedAt != nil {
		fmt.Printf("  Ended:           %s\n", batch.EndedAt.Local().Format(time.RFC3339))
	} else {
		fmt.Printf("  Ended:           (in flight)\n")
	}
	fmt.Printf("  Targets:         %d\n", batch.TotalTargets)
	fmt.Printf("  Succeeded:       %d\n", batch.Succeeded)
	fmt.Printf("  Already claimed: %d\n", batch.AlreadyClaimed)
	fmt.Printf("  Failed:          %d\n", batch.Failed)
	fmt.Println()

	records, err := recordStore.ListRecordsByBatch(batchID)
	if err != nil {
		return errors.Wrap(err, "failed to load batch records")
	}
	if len(records) == 0 {
		pterm.Info.Println("No records for this batch")
		return nil
	}

	rows := pterm.TableData{{"Account", "Status", "Items", "Error"}}
	for _, rec := range records {
		errMsg := rec.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:60] + "…"
		}
		rows = append(rows, []string{
			rec.AccountID,
			string(rec.Status),
			fmt.Sprintf("%d", len(rec.ItemsClaimed)),
			errMsg,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
