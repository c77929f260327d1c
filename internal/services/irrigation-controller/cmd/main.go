package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apogeecmb/smartSprinkler/internal/config"
	"github.com/apogeecmb/smartSprinkler/internal/metrics"
	controller "github.com/apogeecmb/smartSprinkler/internal/services/irrigation-controller"
	"github.com/apogeecmb/smartSprinkler/internal/services/persistence"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

func main() {
	var (
		cfgPath = flag.String("config", envOr("SPRINKLER_CONFIG", "/etc/smartSprinkler/config.yaml"), "config file (yaml or json)")
		once    = flag.Bool("once", false, "run a single cycle and exit")
	)
	flag.Parse()

	boot := logx.NewConsole("info")
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot.Error("config", logx.Err(err))
		os.Exit(1)
	}
	log := logx.New(cfg.Logging, os.Stderr).With(logx.String("service", "irrigation-controller"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	built, err := controller.Build(ctx, cfg, log)
	if err != nil {
		log.Error("collaborators", logx.Err(err))
		os.Exit(1)
	}
	defer func() {
		if err := built.Close(); err != nil {
			log.Warn("close collaborators", logx.Err(err))
		}
	}()

	m := metrics.New()
	ctrl, err := controller.NewController(built.Collaborators,
		func() (*config.Config, error) { return config.Load(*cfgPath) },
		log, controller.WithMetrics(m))
	if err != nil {
		log.Error("controller", logx.Err(err))
		os.Exit(1)
	}

	runOnce := func() {
		if _, err := ctrl.RunCycle(ctx); err != nil {
			if errors.Is(err, controller.ErrCycleInProgress) {
				log.Warn("cycle skipped, previous one still running")
				return
			}
			log.Error("cycle failed", logx.Err(err))
		}
	}

	if *once {
		runOnce()
		return
	}

	mux := persistence.NewHTTPMux(ctrl.Latest)
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", logx.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", logx.Err(err))
			stop()
		}
	}()

	loc, _ := cfg.Location.Load()
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(cfg.Schedule, runOnce); err != nil {
		log.Error("invalid schedule", logx.String("schedule", cfg.Schedule), logx.Err(err))
		os.Exit(1)
	}
	c.Start()
	log.Info("scheduler started", logx.String("schedule", cfg.Schedule), logx.String("tz", loc.String()))

	// first cycle right away so the controller is programmed after a restart
	go runOnce()

	<-ctx.Done()
	log.Info("shutting down")
	<-c.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
