// cmd/dispatchd/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"notify-dispatch/internal/audit"
	"notify-dispatch/internal/common/config"
	"notify-dispatch/internal/common/database"
	"notify-dispatch/internal/common/logger"
	"notify-dispatch/internal/common/observability"
	"notify-dispatch/internal/delivery"
	"notify-dispatch/internal/digest"
	"notify-dispatch/internal/dispatch"
	"notify-dispatch/internal/preference"
	"notify-dispatch/internal/ratelimit"
	"notify-dispatch/internal/server"
	"notify-dispatch/internal/template"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting notification dispatch service",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.Server.Port),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	var tracer *observability.Tracer
	if cfg.Observability.TracingEnabled {
		tracer, err = observability.InitTracer(cfg.App.Name, cfg.Observability.JaegerEndpoint)
		if err != nil {
			zapLog.Fatal("tracer init failed", zap.Error(err))
		}
		defer tracer.Shutdown()
	}

	ctx := context.Background()

	// --- Preference store (in-memory unless Postgres is enabled) ---
	var prefs preference.Store = preference.NewMemoryStore()
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		store := preference.NewPostgresStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("preference schema init failed", zap.Error(err))
		}
		prefs = store
		zapLog.Info("using postgres preference store")
	}

	// --- Rate limiter (fixed window; Redis backend shares one budget) ---
	var limiter ratelimit.Limiter = ratelimit.NewFixedWindow(
		cfg.Dispatch.RateLimit.Ceiling,
		cfg.Dispatch.RateLimit.Window,
	)
	if cfg.Dispatch.RateLimit.Backend == "redis" {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		limiter = ratelimit.NewRedisFixedWindow(
			rdb.Client, "dispatch:ratelimit",
			cfg.Dispatch.RateLimit.Ceiling,
			cfg.Dispatch.RateLimit.Window,
		)
		zapLog.Info("using redis rate limiter")
	}

	// --- Audit recorder (optional Elasticsearch sink) ---
	var auditRec audit.Recorder = audit.NopRecorder{}
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		auditRec = audit.NewElasticRecorder(es.Client, cfg.Database.Elasticsearch.AuditIndex, log)
		zapLog.Info("using elasticsearch audit recorder")
	}

	// --- Delivery channel ---
	var deliverer delivery.Deliverer
	switch cfg.Delivery.Provider {
	case "ses":
		deliverer, err = delivery.NewSESDeliverer(ctx, cfg.Delivery.AWS.Region, log)
		if err != nil {
			zapLog.Fatal("ses deliverer init failed", zap.Error(err))
		}
	case "sns":
		deliverer, err = delivery.NewSNSDeliverer(ctx, cfg.Delivery.AWS.Region, cfg.Delivery.AWS.TopicARN, log)
		if err != nil {
			zapLog.Fatal("sns deliverer init failed", zap.Error(err))
		}
	default:
		deliverer = delivery.NewSMTPDeliverer(cfg.Delivery.SMTP, log)
	}

	engine := dispatch.New(cfg.Dispatch, dispatch.Dependencies{
		Logger:      log,
		Templates:   template.NewStore(),
		Preferences: prefs,
		Limiter:     limiter,
		Digests:     digest.NewMemoryQueue(),
		Deliverer:   deliverer,
		Metrics:     obs,
		Audit:       auditRec,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.New(engine, log, tracer).Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
}
