package cli

import (
	"github.com/spf13/cobra"
)

type SeedResult struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add the seed catalog titles that are missing",
		Long: `Inserts every title of the embedded seed catalog that is not in the database yet.

Existing titles are left untouched, so the command is safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer disconnect(db)
			added, total, err := seedCatalog(cmd.Context(), db)
			if err != nil {
				return err
			}
			out := newOutput(rootOpts, cmd)
			return out.print(SeedResult{Added: added, Total: total},
				"added %d of %d seed titles\n", added, total)
		},
	}
}
