package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todo-auth-core/internal/config"
	"github.com/sandeepkv93/todo-auth-core/internal/di"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/tools/common"
	"github.com/sandeepkv93/todo-auth-core/internal/tools/loadgen"
	"github.com/sandeepkv93/todo-auth-core/internal/tools/ui"
)

type options struct {
	envFile string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "authsvc",
		Short:         "Authentication and session-security service for the to-do app",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := common.LoadEnvFile(opts.envFile)
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional KEY=VALUE file loaded before the environment is parsed")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newServeCommand(), newMigrateCommand(opts), newSweepCommand(opts), newLoadgenCommand(opts))
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the retention sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, lp, err := observability.NewLogger(ctx, cfg, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			a, err := di.InitializeApp(ctx, cfg, logger, lp)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			details, err := run(opts, "database migration", func(ctx context.Context) ([]string, error) {
				db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
				if err != nil {
					return nil, err
				}
				if sqlDB, err := db.DB(); err == nil {
					defer func() { _ = sqlDB.Close() }()
				}
				if err := repository.Migrate(db.WithContext(ctx)); err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("driver=%s models=%d", cfg.DatabaseDriver, len(repository.Models()))}, nil
			})
			return finish(cmd, opts, "database migration", details, err)
		},
	}
}

func newSweepCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep and report what was removed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			details, err := run(opts, "retention sweep", func(ctx context.Context) ([]string, error) {
				job, err := di.InitializeSweepJob(cfg, logger)
				if err != nil {
					return nil, err
				}
				defer func() { _ = job.Resources.Close() }()
				report, err := job.Sweeper.Sweep(ctx)
				return []string{
					fmt.Sprintf("security_events=%d", report.SecurityEvents),
					fmt.Sprintf("sessions=%d", report.Sessions),
					fmt.Sprintf("verification_codes=%d", report.VerificationCodes),
					fmt.Sprintf("login_attempts=%d", report.LoginAttempts),
					fmt.Sprintf("total=%d elapsed=%s", report.Total(), report.Elapsed.Round(time.Millisecond)),
				}, err
			})
			return finish(cmd, opts, "retention sweep", details, err)
		},
	}
}

func newLoadgenCommand(opts *options) *cobra.Command {
	cfg := loadgen.Config{}
	var seed int64
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate login/refresh traffic against a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Seed = uint64(seed)
			details, err := run(opts, "auth load generation", func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, cfg)
				if err != nil {
					return nil, err
				}
				details := res.Details()
				if res.Failures > 0 {
					return details, fmt.Errorf("%d requests failed", res.Failures)
				}
				return details, nil
			})
			return finish(cmd, opts, "auth load generation", details, err)
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: auth, refresh or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 10, "requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().StringVar(&cfg.Email, "email", "", "email of a verified test account")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "password of the test account")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for the mixed profile")
	return cmd
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func finish(cmd *cobra.Command, opts *options, title string, details []string, err error) error {
	if opts.ci {
		if perr := common.PrintCIResult(cmd.OutOrStdout(), err == nil, title, details, err); perr != nil && err == nil {
			return perr
		}
	}
	return err
}
