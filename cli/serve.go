package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinaaaquil/library/config"
	"github.com/kevinaaaquil/library/handlers"
	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/seeds"
	"github.com/kevinaaaquil/library/service"
	"github.com/kevinaaaquil/library/store"
	"github.com/kevinaaaquil/library/utils"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	Seed bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "load the seed catalog before serving")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(db)

	if opts.Seed {
		added, total, err := seedCatalog(ctx, db)
		if err != nil {
			return err
		}
		log.Printf("seed: %d of %d titles added", added, total)
	}

	var covers *service.CoverStore
	if cfg.S3Bucket != "" {
		covers, err = service.NewCoverStore(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
	} else {
		log.Println("warning: AWS_S3_BUCKET not set; cover uploads are disabled")
	}

	srv, err := newServer(cfg, db, covers)
	if err != nil {
		return err
	}
	server := &http.Server{Addr: ":" + cfg.Port, Handler: srv.Routes()}
	errc := make(chan error, 1)
	go func() {
		log.Println("server listening on :" + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("shutdown:", err)
	}
	return nil
}

// newEngine builds the lending engine with the configured policy and retries.
func newEngine(cfg *config.Config, db *store.DB) *lending.Engine {
	return lending.NewEngine(db, db,
		lending.WithPolicy(cfg.Policy),
		lending.WithRetry(cfg.RetryAttempts, cfg.RetryBaseDelay),
		lending.WithLogger(log.Default()),
	)
}

// fallbackMail returns the SMTP settings from the environment, used until some are saved.
func fallbackMail(cfg *config.Config) models.MailSettings {
	return models.MailSettings{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		AppPassword: cfg.SMTPPassword,
		SenderMail:  cfg.SMTPSender,
	}
}

// newServer wires the handlers. covers may be nil.
func newServer(cfg *config.Config, db *store.DB, covers *service.CoverStore) (*handlers.Server, error) {
	var secrets *utils.SecretBox
	if len(cfg.MailEncryptionKey) > 0 {
		var err error
		if secrets, err = utils.NewSecretBox(cfg.MailEncryptionKey); err != nil {
			return nil, fmt.Errorf("mail encryption key: %w", err)
		}
	} else {
		log.Println("warning: MAIL_ENCRYPTION_KEY not set; SMTP app passwords are stored as given")
	}

	maintenance := &service.Maintenance{}
	books := &handlers.BooksHandler{Books: db, Metadata: service.NewMetadataClient()}
	if covers != nil {
		books.Covers = covers
	}

	return &handlers.Server{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		MaxUploadMB: cfg.MaxUploadMB,
		Auth: &handlers.AuthHandler{
			Accounts:          db,
			JWTSecret:         cfg.JWTSecret,
			Maintenance:       maintenance,
			LibrarianUsername: cfg.LibrarianUsername,
			LibrarianPassword: cfg.LibrarianPassword,
		},
		Accounts: &handlers.AccountsHandler{
			Accounts:          db,
			LibrarianUsername: cfg.LibrarianUsername,
			MaxAssistants:     cfg.MaxAssistants,
		},
		Books:   books,
		Lending: &handlers.LendingHandler{Engine: newEngine(cfg, db)},
		History: &handlers.HistoryHandler{Accounts: db},
		Receipts: &handlers.ReceiptsHandler{
			Accounts: db,
			Mail:     db,
			Mailer:   service.NewMailer(),
			Secrets:  secrets,
			Fallback: fallbackMail(cfg),
		},
		Admin:        &handlers.AdminHandler{Accounts: db, Books: db, Maintenance: maintenance},
		MailSettings: &handlers.MailSettingsHandler{Mail: db, Secrets: secrets},
	}, nil
}

func seedCatalog(ctx context.Context, db *store.DB) (added, total int, err error) {
	entries, err := seeds.Catalog()
	if err != nil {
		return 0, 0, err
	}
	added, err = seeds.Load(ctx, db, entries)
	if err != nil {
		return added, len(entries), fmt.Errorf("seed: %w", err)
	}
	return added, len(entries), nil
}
