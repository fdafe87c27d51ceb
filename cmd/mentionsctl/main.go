// Command mentionsctl is the operator CLI for the mentions bot. It works
// directly against the configured database and platform credentials, without
// going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/brandpulse/social-mentions-bot/internal/config"
	"github.com/brandpulse/social-mentions-bot/internal/llm"
	"github.com/brandpulse/social-mentions-bot/internal/monitoring"
	"github.com/brandpulse/social-mentions-bot/internal/notifications"
	"github.com/brandpulse/social-mentions-bot/internal/sentiment"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
	"github.com/brandpulse/social-mentions-bot/internal/storage"
	"github.com/brandpulse/social-mentions-bot/internal/store"
	"github.com/brandpulse/social-mentions-bot/internal/ticketing"
)

type options struct {
	verbose bool
	timeout time.Duration
}

// app holds the services one command invocation works with
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	store    *store.Store
	notifier notifications.Notifier
	archive  *storage.ReportArchive
	monitor  *monitoring.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	st := store.New(db)

	completer, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var notifier notifications.Notifier
	if cfg.NotificationsEnabled() {
		notifier = notifications.NewService(cfg)
	}

	var archive *storage.ReportArchive
	backend, err := storage.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		archive = storage.NewReportArchive(backend, cfg.ArchiveKeep)
	}

	monitor := monitoring.NewService(st, sources.NewSetFromConfig(cfg), sentiment.NewGenerator(completer, 3),
		ticketing.NewService(st, notifier), archive)

	return &app{cfg: cfg, db: db, store: st, notifier: notifier, archive: archive, monitor: monitor}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "mentionsctl",
		Short:         "Operate the social mentions bot from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			logrus.SetOutput(cmd.ErrOrStderr())
			logrus.SetLevel(logrus.WarnLevel)
			if opts.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Operation timeout")

	root.AddCommand(
		checkCmd(opts),
		fetchCmd(opts),
		cycleCmd(opts),
		analyticsCmd(opts),
		historyCmd(opts),
		ticketsCmd(opts),
		resolveCmd(opts),
		reportsCmd(opts),
		digestCmd(opts),
	)
	return root
}

// withApp runs fn with a fresh app and a context bounded by --timeout
func withApp(opts *options, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
