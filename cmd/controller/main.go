// Package main is the entry point for the cirelay controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"cirelay/internal/config"
	"cirelay/internal/controller"
	"cirelay/internal/logger"
	"cirelay/internal/notify"
	"cirelay/internal/observability"
	"cirelay/internal/scheduler"
	"cirelay/internal/store/postgres"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx := context.Background()
	st, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer st.Close()

	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(st.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	shutdownTracer, err := observability.Init(ctx, "cirelay-controller", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics, including the live-jobs gauge queried only when scraped.
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()
	metrics, err := observability.NewSchedulerMetrics(st.CountLiveJobs)
	if err != nil {
		log.Printf("Failed to register scheduler metrics: %v", err)
	}

	var dispatcher notify.Dispatcher = &notify.LogDispatcher{Log: slogger}
	if cfg.WebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.WebhookURL)
	}

	sched := scheduler.New(st, slogger, scheduler.Options{
		Notifier:   dispatcher,
		Metrics:    metrics,
		StaleAfter: cfg.StaleAfter,
	})

	// Background janitor: sweeps stale live jobs across all remotecis.
	janitor := cron.New()
	_, err = janitor.AddFunc(cfg.JanitorSchedule, func() {
		killed, err := sched.ReapStale(context.Background())
		if err != nil {
			slogger.Error("janitor sweep failed", "error", err)
			return
		}
		if killed > 0 {
			slogger.Info("janitor reaped stale jobs", "killed", killed)
		}
	})
	if err != nil {
		log.Fatalf("Invalid janitor schedule %q: %v", cfg.JanitorSchedule, err)
	}
	janitor.Start()
	defer janitor.Stop()

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(controller.Config{
		Addr:      addr,
		Store:     st,
		Scheduler: sched,
		Log:       slogger,
		Metrics:   metricsHandler,
		RateLimit: 50,
		RateBurst: 100,
	})

	go func() {
		log.Printf("cirelay controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
