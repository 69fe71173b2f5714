package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/sym"
)

// RecordsCmd inspects stored claim records
var RecordsCmd = &cobra.Command{
	Use:   "records",
	Short: sym.DB + " Inspect stored claim records",
	Long: sym.DB + ` records — Inspect stored claim records

Examples:
  claimd records                        # Most recent records across accounts
  claimd records --account acct-1       # One account's claim history
  claimd records --account acct-1 --days 7`,
	RunE: runRecords,
}

var (
	recordsAccount string
	recordsLimit   int
	recordsDays    int
)

func init() {
	RecordsCmd.Flags().StringVar(&recordsAccount, "account", "", "Filter to one account")
	RecordsCmd.Flags().IntVar(&recordsLimit, "limit", 50, "Maximum records to show")
	RecordsCmd.Flags().IntVar(&recordsDays, "days", 30, "How many days back to search (with --account)")
}

func runRecords(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	store := claim.NewRecordStore(database)

	var records []*claim.Record
	if recordsAccount != "" {
		to := time.Now().Add(time.Hour)
		from := to.AddDate(0, 0, -recordsDays)
		records, err = store.ListRecordsByAccount(recordsAccount, from, to, recordsLimit)
	} else {
		records, err = store.ListRecentRecords(recordsLimit)
	}
	if err != nil {
		return errors.Wrap(err, "failed to list records")
	}

	if len(records) == 0 {
		pterm.Info.Println("No claim records found")
		return nil
	}

	rows := pterm.TableData{{"Claimed At", "Account", "Status", "Items", "Batch", "Error"}}
	for _, rec := range records {
		errMsg := rec.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:40] + "…"
		}
		rows = append(rows, []string{
			rec.ClaimedAt.Local().Format("2006-01-02 15:04:05"),
			rec.AccountID,
			string(rec.Status),
			fmt.Sprintf("%d", len(rec.ItemsClaimed)),
			rec.BatchID[:8],
			errMsg,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
