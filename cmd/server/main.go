package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"compliance-gateway/internal/activity"
	"compliance-gateway/internal/compliance"
	"compliance-gateway/internal/dashboard"
	"compliance-gateway/internal/event"
	"compliance-gateway/internal/keylock"
	"compliance-gateway/internal/ledger"
	"compliance-gateway/internal/notify"
	"compliance-gateway/internal/platform/config"
	"compliance-gateway/internal/platform/httpserver"
	"compliance-gateway/internal/platform/logger"
	"compliance-gateway/internal/platform/metrics"
	"compliance-gateway/internal/platform/middleware"
	platformredis "compliance-gateway/internal/platform/redis"
	"compliance-gateway/internal/stream"
	"compliance-gateway/internal/webhook"
	webhookhandler "compliance-gateway/internal/webhook/handler"
)

const activityBuffer = 256

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		records   compliance.Store
		events    ledger.Store
		reminders notify.Store
		procOpts  []webhook.ProcessorOption
		db        *sql.DB
	)
	switch {
	case cfg.DatabaseURL != "":
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping database", "error", err.Error())
			os.Exit(1)
		}

		eventStore := ledger.NewPostgres(db)
		recordStore := compliance.NewPostgres(db)
		reminderStore := notify.NewPostgres(db)
		for _, ensure := range []func(context.Context) error{
			eventStore.EnsureSchema,
			recordStore.EnsureSchema,
			reminderStore.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				log.Error("ensure schema", "error", err.Error())
				os.Exit(1)
			}
		}
		records, events, reminders = recordStore, eventStore, reminderStore
		procOpts = append(procOpts, webhook.WithDB(db))
		log.Info("using postgres stores")
	default:
		records = compliance.NewInMemoryStore()
		events = ledger.NewInMemoryStore()
		reminders = notify.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	var locks keylock.Locker = keylock.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locks = keylock.NewRedis(redisClient.Client)
		log.Info("using redis key locks")
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := stream.NewPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err.Error())
			os.Exit(1)
		}
		defer publisher.Close()
		procOpts = append(procOpts, webhook.WithPublisher(publisher))
		log.Info("publishing processed events", "topic", cfg.KafkaTopic)
	}

	fileSink, err := activity.NewFileSink(cfg.ActivityLogPath)
	if err != nil {
		log.Error("open activity log", "error", err.Error())
		os.Exit(1)
	}
	defer fileSink.Close()
	trail := activity.NewAsyncSink(activityBuffer, log)
	trailWorker := activity.NewWorker(fileSink, trail, log)

	m := metrics.New()
	scheduler := notify.NewScheduler(reminders, cfg.DeadlineDays)
	dispatcher := notify.NewDispatcher(
		reminders,
		notify.LogSender{Logger: log},
		log,
		cfg.DispatchInterval,
		notify.WithSentCallback(func() { m.RemindersSent.Inc() }),
	)

	if cfg.KeyIncludesInstance {
		procOpts = append(procOpts, webhook.WithInstanceScopedKeys(true))
	}
	processor := webhook.NewProcessor(
		webhook.NewSignatureValidator(cfg.WebhookSecret, cfg.AllowUnsigned),
		event.NewNormalizer(),
		compliance.NewMachine(cfg.DeadlineDays),
		records,
		events,
		scheduler,
		locks,
		trail,
		m,
		log,
		procOpts...,
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	webhookhandler.New(processor, log).Register(router)

	var healthChecks []func(context.Context) error
	if db != nil {
		healthChecks = append(healthChecks, db.PingContext)
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, redisClient.Health)
	}
	router.Get("/healthz", httpserver.Health(healthChecks...))
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.JWTSigningKey, log))
		dashboard.New(records, events, reminders, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return trailWorker.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		log.Info("starting compliance-gateway", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown", "error", err.Error())
		os.Exit(1)
	}
	log.Info("stopped")
}
