package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/example/last-mile-dispatch/internal/config"
	"github.com/example/last-mile-dispatch/internal/dispatch"
	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/geo"
	"github.com/example/last-mile-dispatch/internal/horizon"
	httpapi "github.com/example/last-mile-dispatch/internal/http"
	"github.com/example/last-mile-dispatch/internal/ingest"
	"github.com/example/last-mile-dispatch/internal/lock"
	"github.com/example/last-mile-dispatch/internal/logging"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	pol, err := config.LoadPolicy(cfg.PolicyProfile)
	if err != nil {
		logger.Error("policy load failed", "error", err)
		os.Exit(1)
	}

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(cfg.PGDSN, logger)
	}

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	var matrix eta.Matrix
	if cfg.OSRMEndpoint != "" {
		matrix = eta.NewOSRMMatrix(cfg.OSRMEndpoint)
	} else {
		matrix = eta.ManhattanMatrix{SpeedMps: cfg.DefaultSpeedMps}
	}

	var driverIndex geo.Geo
	var jobLock lock.JobLock
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		driverIndex = geo.NewRedisGeo(rc, cfg.RedisGeoKey)
		jobLock = lock.NewRedisLock(rc, pol.AcceptanceDeadline)
	} else {
		driverIndex = geo.NewIndex()
		jobLock = lock.NewMemoryLock()
	}

	var kafka *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kafka = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, cfg.KafkaLocationTopic)
		defer kafka.Close()
	}

	wsreg := dispatch.NewWSRegistry()
	var fcm *dispatch.FCMPush
	if cfg.FCMEndpoint != "" {
		fcm = dispatch.NewFCMPush(cfg.FCMEndpoint, cfg.FCMKey, nil)
	}
	push := &dispatch.FanoutPush{WS: wsreg, FCM: fcm}

	dispatcher := dispatch.NewDispatcher(jobLock, push, store, matrix, logger)
	dispatcher.OnAbandon = func(job models.Job) {
		logger.Warn("job returned to abandon queue", "job_id", job.ID, "orders", len(job.OrderIDs))
	}

	queue := horizon.NewQueue(store, matrix, pol, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Policy hot swap: SIGHUP re-reads the profile and env overrides and
	// stages the new policy for the next cycle boundary.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			fresh, err := config.LoadPolicy(os.Getenv("POLICY_PROFILE"))
			if err != nil {
				logger.Warn("policy reload rejected", "error", err)
				continue
			}
			queue.SetPolicy(fresh)
			logger.Info("policy reloaded")
		}
	}()

	// Horizon tick loop: one cycle at a time, never re-entered.
	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				jobs, err := queue.RunCycle(ctx)
				if err != nil {
					logger.Error("cycle failed", "error", err)
					continue
				}
				for _, job := range jobs {
					var pickup models.Coord
					if len(job.Stops) > 0 {
						pickup = job.Stops[0].Coord
					}
					drivers := driverIndex.Nearby(pickup, cfg.DriverTopN)
					dispatcher.DispatchJob(ctx, job, drivers, pol)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(queue, dispatcher, store, driverIndex, kafka, wsreg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open error", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		logger.Error("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_init.sql")
}
