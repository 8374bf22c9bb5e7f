package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/appointly/appointly/libs/config"
	"github.com/appointly/appointly/libs/db"
	"github.com/appointly/appointly/libs/httpx"
	"github.com/appointly/appointly/libs/kafkax"
	otelx "github.com/appointly/appointly/libs/otel"
	"github.com/appointly/appointly/libs/outbox"
	"github.com/appointly/appointly/libs/runtime"
	"github.com/appointly/appointly/services/reminder-service/internal/email"
	"github.com/appointly/appointly/services/reminder-service/internal/reminder"
	"github.com/appointly/appointly/services/reminder-service/internal/runlock"
	"github.com/appointly/appointly/services/reminder-service/internal/storage"
)

func main() {
	config.LoadEnvFile()
	service := config.String("SERVICE_NAME", "reminder-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("APP_TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("invalid APP_TIMEZONE", "err", err)
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	store := storage.NewReminderStore(pool, outboxRepo)
	sender := buildSender(logger)
	if sender == nil {
		logger.Warn("no email sender configured; reminder runs will scan only")
	}
	scheduler := reminder.NewScheduler(store, sender, logger, loc)

	var lock *runlock.Lock
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		lock = runlock.New(client, "reminder:run-lock", time.Minute)
	}

	runReminders := func(ctx context.Context) (reminder.Summary, bool, error) {
		if lock != nil {
			acquired, err := lock.TryAcquire(ctx)
			if err != nil {
				logger.Warn("run lock unavailable; proceeding without it", "err", err)
			} else if !acquired {
				return reminder.Summary{}, false, nil
			} else {
				defer lock.Release(ctx)
			}
		}
		summary, err := scheduler.Run(ctx, time.Now())
		return summary, true, err
	}

	interval := time.Duration(config.Int("REMINDER_INTERVAL_SECONDS", 300)) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				summary, ran, err := runReminders(ctx)
				if err != nil {
					logger.Error("reminder run failed", "err", err)
					continue
				}
				if !ran {
					logger.Debug("reminder run skipped; another instance holds the lock")
					continue
				}
				logger.Info("reminder run complete",
					"reminder24h", summary.Reminder24h,
					"reminder1h", summary.Reminder1h,
					"sent", summary.Sent,
					"note", summary.Note)
			}
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/internal/reminders/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		summary, ran, err := runReminders(r.Context())
		if err != nil {
			logger.Error("reminder run failed", "err", err)
			http.Error(w, "reminder run failed", http.StatusInternalServerError)
			return
		}
		if !ran {
			http.Error(w, "another run is in progress", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(summary)
	})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "reminder")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// buildSender returns nil when no provider is configured; the scheduler
// treats that as scan-only, not an error.
func buildSender(logger *slog.Logger) reminder.Sender {
	switch config.String("EMAIL_PROVIDER", "") {
	case "smtp":
		return email.NewSMTPSender(
			config.String("SMTP_HOST", "localhost"),
			config.String("SMTP_PORT", "1025"),
			config.String("EMAIL_FROM", ""),
		)
	case "sendgrid":
		sender, err := email.NewSendGridSender(
			config.String("SENDGRID_API_KEY", ""),
			config.String("EMAIL_FROM", "no-reply@appointly.local"),
			config.String("EMAIL_FROM_NAME", ""),
		)
		if err != nil {
			logger.Error("sendgrid sender init failed", "err", err)
			return nil
		}
		return sender
	case "noop":
		return email.NewNoopSender(logger)
	default:
		return nil
	}
}
