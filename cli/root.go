// Package cli holds the library command line: the API server and the operator commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kevinaaaquil/library/config"
	"github.com/kevinaaaquil/library/store"
)

// RootOptions holds the global flags.
type RootOptions struct {
	EnvFile string
	Format  string // "text" | "json"
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the library command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Library circulation service",
		Long:  "Runs the library lending API and the operator commands that maintain its catalog and loans.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return loadEnvFile(opts.EnvFile, cmd.Flags().Changed("env-file"))
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "file with environment variables")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewReturnAllCommand(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvFile loads path into the environment. A missing default file is not an error;
// variables already set win.
func loadEnvFile(path string, explicit bool) error {
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// connect loads the configuration and opens the database with its indexes in place.
func connect(ctx context.Context) (*config.Config, *store.DB, error) {
	if err := config.ValidateEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("mongodb: %w", err)
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		disconnect(db)
		return nil, nil, fmt.Errorf("mongodb indexes: %w", err)
	}
	return cfg, db, nil
}

func disconnect(db *store.DB) {
	if err := db.Disconnect(context.Background()); err != nil {
		log.Println("mongodb disconnect:", err)
	}
}
