package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/choreplan/internal/config"
	"github.com/dukerupert/choreplan/internal/database"
	"github.com/dukerupert/choreplan/internal/logging"
	"github.com/dukerupert/choreplan/internal/schedule"
	"github.com/dukerupert/choreplan/internal/server"
)

const limiterIdle = 30 * time.Minute

func main() {
	var configFile, envFile string
	cmd := &cobra.Command{
		Use:           "choreplan",
		Short:         "Household chore planner API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile, envFile)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	cmd.Flags().StringVar(&envFile, "env", ".env", "dotenv file, ignored when missing")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "choreplan:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile, envFile string) error {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}

	logger, closer := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer closer.Close()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv := server.New(db, server.Options{
		SessionTTL:     cfg.Auth.SessionTTL,
		SecureCookies:  cfg.Auth.SecureCookies,
		SignInEvery:    cfg.Auth.SignInEvery,
		SignInBurst:    cfg.Auth.SignInBurst,
		OriginPatterns: cfg.Server.OriginPatterns,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("choreplan starting", "addr", cfg.Server.Addr, "db", cfg.Database.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Schedule.Runner {
		runner := schedule.NewRunner(srv.Scheduler(), srv.SessionStore(), cfg.Schedule.HorizonDays, logger)
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup(limiterIdle)
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		srv.Hub().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("systemd notify", "error", err)
	} else if ok {
		logger.Debug("systemd notified")
	}

	return g.Wait()
}
