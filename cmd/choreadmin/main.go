// Command choreadmin manages accounts and schedules directly against the
// database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choreplan/internal/config"
	"github.com/dukerupert/choreplan/internal/database"
	"github.com/dukerupert/choreplan/internal/logging"
)

type app struct {
	configFile string
	envFile    string
	cfg        *config.Config
	db         *sql.DB
	logger     *slog.Logger
	out        io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "choreadmin:", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "choreadmin",
		Short:         "Administer a choreplan database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env", ".env", "dotenv file, ignored when missing")

	root.AddCommand(a.userCmd(), a.scheduleCmd(), a.migrateCmd())
	return root
}

// open loads config and the database. Migrations run on open.
func (a *app) open() error {
	cfg, err := config.Load(a.configFile, a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "database %s is up to date\n", a.cfg.Database.Path)
			return nil
		},
	}
}
