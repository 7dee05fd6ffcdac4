package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"partyboard/config"
)

const releaseVersion = "0.4.0"

type cliOptions struct {
	flags   Flags
	envFile string
}

func main() {
	opts := &cliOptions{}
	if err := newRootCmd(opts).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "partyboard-server: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyboard-server",
		Short:         "Best-score leaderboard API for party game sessions.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.envFile == "" {
				return config.LoadEnvFiles()
			}
			return config.LoadEnvFiles(opts.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.flags)
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&opts.flags.ConfigPath, "config", "c", "", "path to a JSON config file (env: PARTYBOARD_CONFIG)")
	fs.StringVarP(&opts.flags.Profile, "profile", "p", "", "named profile: development, testing, staging, production (env: PARTYBOARD_PROFILE)")
	fs.StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before configuration (env: PARTYBOARD_ENV_FILE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newMigrateCmd(opts), newConfigCmd(opts))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("partyboard-server v{{.Version}}\n")

	return cmd
}

// newMigrateCmd applies the schema for the sql and postgres adapters and exits.
func newMigrateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured storage adapter.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := provideConfig(opts.flags)
			if err != nil {
				return err
			}
			switch cfg.Storage.Adapter {
			case config.AdapterSQL:
				cfg.Storage.SQL.AutoMigrate = true
			case config.AdapterPostgres:
				cfg.Storage.Postgres.AutoMigrate = true
			default:
				return fmt.Errorf("adapter %q has no schema to migrate", cfg.Storage.Adapter)
			}
			logger := setupLogging(cfg)
			_, cleanup, err := provideStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()
			logger.Info("migrations applied", "adapter", cfg.Storage.Adapter)
			return nil
		},
	}
}

// newConfigCmd prints the resolved configuration with secrets redacted.
func newConfigCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := provideConfig(opts.flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func serve(parent context.Context, flags Flags) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx, flags)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer cleanup()

	cfg := app.Config
	app.Logger.Info("starting partyboard server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"version", releaseVersion)

	reportCtx, stopReports := context.WithCancel(context.Background())
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		if app.Reporter != nil {
			app.Reporter.Start(reportCtx)
		}
	}()

	srv := app.Server
	serveErr := make(chan error, 1)
	go func() {
		app.Logger.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stopReports()
		<-reportDone
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	stopReports()
	<-reportDone
	if err != nil {
		app.Logger.Error("error during server shutdown", "error", err)
		return err
	}

	slog.Info("server stopped")
	return nil
}
