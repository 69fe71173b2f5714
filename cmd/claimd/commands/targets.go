package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/registry"
	"github.com/halcyonlabs/claimd/sym"
)

// TargetsCmd manages the account registry
var TargetsCmd = &cobra.Command{
	Use:   "targets",
	Short: sym.Claim + " Manage the account registry",
	Long: sym.Claim + ` targets — Manage the accounts claimd claims for

Blocked accounts stay registered but are excluded from scheduled and
whole-registry batches; explicit 'batch run <id>' still includes them.

Examples:
  claimd targets ls
  claimd targets add acct-1 "Main account"
  claimd targets block acct-1
  claimd targets unblock acct-1
  claimd targets rm acct-1`,
}

var targetsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered accounts",
	RunE:  runTargetsLs,
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <account-id> [display-name]",
	Short: "Register an account (or update its display name)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTargetsAdd,
}

var targetsRmCmd = &cobra.Command{
	Use:   "rm <account-id>",
	Short: "Remove an account from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsRm,
}

var targetsBlockCmd = &cobra.Command{
	Use:   "block <account-id>",
	Short: "Exclude an account from scheduled batches",
	Args:  cobra.ExactArgs(1),
	RunE:  makeSetBlocked(true),
}

var targetsUnblockCmd = &cobra.Command{
	Use:   "unblock <account-id>",
	Short: "Re-include an account in scheduled batches",
	Args:  cobra.ExactArgs(1),
	RunE:  makeSetBlocked(false),
}

func init() {
	TargetsCmd.AddCommand(targetsLsCmd)
	TargetsCmd.AddCommand(targetsAddCmd)
	TargetsCmd.AddCommand(targetsRmCmd)
	TargetsCmd.AddCommand(targetsBlockCmd)
	TargetsCmd.AddCommand(targetsUnblockCmd)
}

func runTargetsLs(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	reg := registry.NewSQLiteRegistry(database)
	targets, err := reg.ListTargets(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "failed to list targets")
	}

	if len(targets) == 0 {
		pterm.Info.Println("No accounts registered")
		return nil
	}

	rows := pterm.TableData{{"Account", "Display Name", "Blocked"}}
	for _, t := range targets {
		blocked := ""
		if t.Blocked {
			blocked = "yes"
		}
		rows = append(rows, []string{t.AccountID, t.DisplayName, blocked})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runTargetsAdd(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	displayName := ""
	if len(args) > 1 {
		displayName = args[1]
	}

	reg := registry.NewSQLiteRegistry(database)
	if err := reg.AddTarget(cmd.Context(), args[0], displayName); err != nil {
		return errors.Wrapf(err, "failed to register %s", args[0])
	}

	pterm.Success.Printf("Registered %s\n", args[0])
	return nil
}

func runTargetsRm(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	reg := registry.NewSQLiteRegistry(database)
	if err := reg.RemoveTarget(cmd.Context(), args[0]); err != nil {
		return errors.Wrapf(err, "failed to remove %s", args[0])
	}

	pterm.Success.Printf("Removed %s\n", args[0])
	return nil
}

func makeSetBlocked(blocked bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase("")
		if err != nil {
			return errors.Wrap(err, "failed to open database")
		}
		defer database.Close()

		reg := registry.NewSQLiteRegistry(database)
		if err := reg.SetBlocked(cmd.Context(), args[0], blocked); err != nil {
			return errors.Wrapf(err, "failed to update %s", args[0])
		}

		if blocked {
			pterm.Success.Printf("Blocked %s (excluded from scheduled batches)\n", args[0])
		} else {
			pterm.Success.Printf("Unblocked %s\n", args[0])
		}
		return nil
	}
}
