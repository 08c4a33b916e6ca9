package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trend-reel/internal/api"
	"trend-reel/internal/app"
	"trend-reel/internal/platform/config"
	"trend-reel/internal/platform/logger"
	"trend-reel/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg, err := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	a, err := app.New(cfg, log, met)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	svc := api.NewService(jobsCtx, cfg.Groups, a.History, a.Assembler, api.NewInMemoryJobRepository(), log)
	h := api.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Handle("/metrics", met.Handler())
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"groups", len(cfg.Groups),
		"workers", cfg.Video.Workers,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("stopping render jobs", "active_jobs", svc.ActiveJobs())
	stopJobs()
	svc.Wait()
	log.Info("server stopped")
}
