// TalonPulse: local host telemetry collector with a small web dashboard.
// Author: vesaa | License: MIT | https://github.com/vesaa/talonpulse
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/vesaa/talonpulse/internal/agent"
	"github.com/vesaa/talonpulse/internal/config"
	"github.com/vesaa/talonpulse/internal/logger"
	"github.com/vesaa/talonpulse/internal/server"
	"github.com/vesaa/talonpulse/internal/telemetry"
)

const version = "v0.1.0"

func printBanner(cfg *config.Config) {
	fmt.Printf("\n  ► TalonPulse %s  |  Author: vesaa\n", version)
	fmt.Printf("  ✓ Dashboard + API → http://%s\n", cfg.Addr())
	fmt.Printf("  ✓ Database        → %s\n", cfg.DBPath)
	fmt.Printf("  ✓ Sample every %ds (cpu window %dms)\n\n", cfg.SampleInterval, cfg.CPUWindow)
}

func main() {
	root := &cobra.Command{
		Use:   "talonpulse",
		Short: "TalonPulse: local host telemetry collector",
		Long: `TalonPulse periodically samples CPU, memory, disk and network usage,
stores the series in SQLite and serves it to a web dashboard.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to config file (default: ./config.yaml or ~/.talonpulse/config.yaml)")

	// ── serve subcommand ──────────────────────────────────────────────────────
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the collector and the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// CLI flags override config values.
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				cfg.DBPath = db
			}
			if port, _ := cmd.Flags().GetInt("port"); port != 0 {
				cfg.ListenPort = port
			}
			if interval, _ := cmd.Flags().GetInt("interval"); interval != 0 {
				cfg.SampleInterval = interval
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
			slog.SetDefault(log)
			printBanner(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	serveCmd.Flags().String("db", "", "SQLite database path (overrides config)")
	serveCmd.Flags().Int("port", 0, "HTTP listen port (overrides config)")
	serveCmd.Flags().Int("interval", 0, "Seconds between samples (overrides config)")

	// ── collect subcommand ────────────────────────────────────────────────────
	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Take one sample and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

			var sink agent.Sink = agent.DiscardSink{}
			if persist, _ := cmd.Flags().GetBool("store"); persist {
				store, err := openStore(cfg, log)
				if err != nil {
					return err
				}
				defer store.Close()
				sink = store
			}

			sampler := agent.NewSampler(agent.NewHostReader(), cfg.Window(), log)
			sched := agent.NewScheduler(sampler, sink, cfg.Interval(), cfg.Timeout(), log, nil)
			sample, err := sched.Tick(cmd.Context())
			if sample != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(sample)
			}
			return err
		},
	}
	collectCmd.Flags().Bool("store", false, "Also persist the sample to the configured database")

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print TalonPulse version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("TalonPulse %s  |  Author: vesaa\n", version)
		},
	}

	root.AddCommand(serveCmd, collectCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openStore opens the database and ensures the schema. Any failure here is fatal.
func openStore(cfg *config.Config, log *slog.Logger) (*server.Store, error) {
	store, err := server.OpenStore(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return store, nil
}

// serve runs the scheduler and the HTTP server until ctx is cancelled or
// either of them fails.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	auth, err := server.NewAuth(cfg.JWTSecret, cfg.TokenLifetime(), cfg.Users, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline := telemetry.NewPipeline(reg)

	sampler := agent.NewSampler(agent.NewHostReader(), cfg.Window(), log)
	sched := agent.NewScheduler(sampler, store, cfg.Interval(), cfg.Timeout(), log, pipeline)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	server.NewAPI(server.NewQueryService(store), auth, log).RegisterRoutes(engine, reg)
	server.RegisterStaticFiles(engine)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
