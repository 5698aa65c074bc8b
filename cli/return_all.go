package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinaaaquil/library/handlers"
	"github.com/kevinaaaquil/library/lending"
)

// NewReturnAllCommand creates the return-all command.
func NewReturnAllCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "return-all",
		Short: "Close every open loan",
		Long: `Returns every open loan of every account with the current time as the return date,
charges the fines and resets the catalog counters.

Accounts that cannot be written are reported and keep their loans; the command then
exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			cfg, db, err := connect(ctx)
			if err != nil {
				return err
			}
			defer disconnect(db)

			res, err := newEngine(cfg, db).ReturnAll(ctx)
			if res == nil {
				return err
			}
			if perr := printReturnAll(newOutput(rootOpts, cmd), res, err == nil); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this long")
	return cmd
}

func printReturnAll(out *output, res *lending.ReturnAllResult, complete bool) error {
	summary := handlers.ReturnAllResponse{
		ReturnDate: res.ReturnDate,
		Accounts:   res.Accounts,
		Loans:      res.Loans,
		Fines:      res.Fines,
		Complete:   complete,
		Failures:   make([]handlers.ReturnAllFailure, 0, len(res.Failures)),
	}
	for _, f := range res.Failures {
		summary.Failures = append(summary.Failures, handlers.ReturnAllFailure{
			AccountID: f.AccountID.Hex(),
			Username:  f.Username,
			OpenLoans: f.OpenLoans,
			Error:     f.Err.Error(),
		})
	}
	if out.isJSON() {
		return out.print(summary, "")
	}
	out.printf("returned %d loans from %d accounts at %s, fines %d\n",
		res.Loans, res.Accounts, res.ReturnDate.UTC().Format(time.RFC3339), res.Fines)
	for _, f := range summary.Failures {
		out.errorf("failed %s (%d loans still open): %s\n", f.Username, f.OpenLoans, f.Error)
	}
	return nil
}
