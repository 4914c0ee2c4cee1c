package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomops/vcwatch/internal/alert"
	"github.com/roomops/vcwatch/internal/config"
	"github.com/roomops/vcwatch/internal/dispatch"
	"github.com/roomops/vcwatch/internal/httpapi"
	"github.com/roomops/vcwatch/internal/httpapi/middleware"
	"github.com/roomops/vcwatch/internal/logging"
	"github.com/roomops/vcwatch/internal/notify"
	"github.com/roomops/vcwatch/internal/probe"
	"github.com/roomops/vcwatch/internal/repo"
	"github.com/roomops/vcwatch/internal/repo/memory"
	"github.com/roomops/vcwatch/internal/repo/postgres"
	"github.com/roomops/vcwatch/internal/scheduler"
	"github.com/roomops/vcwatch/internal/sweeper"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: postgres when configured, in-memory otherwise.
	var (
		rooms   repo.RoomStore
		samples repo.SampleStore
		alerts  repo.AlertStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		rooms, samples, alerts = pg, pg, pg
		logger.Info("storage", zap.String("backend", "postgres"))
	} else {
		mem := memory.New()
		rooms, samples, alerts = mem, mem, mem
		logger.Info("storage", zap.String("backend", "memory"))
	}

	// Notification channels. Constructors return nil when unconfigured.
	var channels []notify.Channel
	if e := notify.NewEmail(cfg.SMTPAddr, cfg.SMTPFrom, cfg.AdminEmails); e != nil {
		channels = append(channels, e)
	}
	if sn := notify.NewServiceNow(cfg.ServiceNowHost, cfg.ServiceNowUser, cfg.ServiceNowSecret); sn != nil {
		channels = append(channels, sn)
	}
	var notifier notify.Channel
	if len(channels) > 0 {
		notifier = notify.Multi(channels)
	}

	var dedupe dispatch.DedupeStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis_url_invalid", zap.Error(err))
		}
		dedupe = dispatch.NewRedisDedupe(redis.NewClient(opts), cfg.DedupeTTL)
		logger.Info("dispatch_dedupe", zap.String("backend", "redis"))
	} else {
		dedupe = dispatch.NewMemoryDedupe(cfg.DedupeTTL)
		logger.Info("dispatch_dedupe", zap.String("backend", "memory"))
	}

	dispatcher := dispatch.New(channels, dedupe, logger, cfg.DispatchRetries, cfg.DispatchBackoff)

	engine := alert.NewEngine(alerts, dispatcher.Dispatch, logger)
	if err := engine.Restore(ctx); err != nil {
		logger.Warn("alert_restore_failed", zap.Error(err))
	}

	transport := probe.NewHTTPTransport(
		cfg.DeviceAPIUser, cfg.DeviceAPIPass,
		cfg.CloudBaseURL, cfg.CloudAPIToken,
		cfg.ProbeTimeout,
	)
	prober := probe.NewDeviceProber(transport, cfg.ProbeTimeout)

	sched := scheduler.New(logger, rooms, samples, prober, engine, scheduler.Config{
		RetryAttempts:  cfg.RetryAttempts,
		RetryBackoff:   cfg.RetryBackoff,
		Concurrency:    cfg.ConcurrentProbes,
		ReconcileEvery: cfg.ReconcileEvery,
	})
	go sched.Run(ctx)

	sweep := sweeper.New(logger, samples, alerts, cfg.Retention, cfg.SweepInterval)
	go sweep.Run(ctx)

	api := &httpapi.Server{
		Logger:   logger,
		Rooms:    rooms,
		Samples:  samples,
		Alerts:   alerts,
		Sched:    sched,
		Notifier: notifier,
		Defaults: httpapi.Defaults{
			CheckInterval:    cfg.CheckInterval,
			TestCallInterval: cfg.TestCallInterval,
			Thresholds:       cfg.Thresholds,
		},
		Keys:      middleware.Keys{Operator: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
		Origins:   cfg.AllowedOrigins,
		RateRPM:   cfg.PublicRPM,
		RateBurst: cfg.PublicBurst,
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_serve_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	dispatcher.Close()
	dispatcher.Wait()
}
