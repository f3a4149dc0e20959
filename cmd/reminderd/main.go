// cmd/reminderd/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"clinic-reminders/internal/calendar"
	"clinic-reminders/internal/common/config"
	"clinic-reminders/internal/common/database"
	"clinic-reminders/internal/common/logger"
	"clinic-reminders/internal/mail"
	"clinic-reminders/internal/notify"
	"clinic-reminders/internal/secrets"
	"clinic-reminders/internal/store"
)

// The AWS secret access key lives in the secret store under this name, never
// in the config file.
const mailSecretName = "ses_secret_access_key"

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
			delay *= 2 // Exponential backoff
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

	zapLog.Info("Starting reminder daemon...",
		zap.String("clinic", cfg.Clinic.Name),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
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
	zapLog.Info("PostgreSQL connected successfully")

	if err := store.EnsureSchema(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema bootstrap failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var rds *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rds, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rds.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rds.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores ---
	events := store.NewEventStore(pg.DB)
	patients := store.NewPatientStore(pg.DB)
	templates := store.NewTemplateStore(pg.DB)
	audit := store.NewAuditLog(pg.DB)

	if err := templates.Seed(ctx); err != nil {
		zapLog.Fatal("template seeding failed", zap.Error(err))
	}

	// --- Mail transport ---
	var transport mail.Transport
	if cfg.Mail.Enabled {
		secretStore := secrets.NewRedisStore(rds.Client)
		secretKey, err := secretStore.GetSecret(ctx, mailSecretName)
		if err != nil {
			zapLog.Warn("mail secret not found, falling back to default AWS credential chain", zap.Error(err))
			secretKey = ""
		}

		transport, err = mail.NewSESTransport(ctx, cfg.Mail, secretKey, log)
		if err != nil {
			zapLog.Fatal("mail transport init failed", zap.Error(err))
		}
		zapLog.Info("SES mail transport initialized", zap.String("from", cfg.Mail.FromEmail))
	} else {
		zapLog.Warn("mail sending disabled, batches will fail until mail.enabled is set")
	}

	// --- Dispatch pipeline ---
	engine := notify.NewEngine(events, patients, log)
	dispatcher := notify.NewDispatcher(engine, templates, events, audit, transport, cfg.Clinic, log)

	// --- Startup calendar sync ---
	if cfg.Calendar.SourceURL != "" {
		source := calendar.NewHTTPSource(cfg.Calendar.SourceURL, cfg.Calendar.GetTimeout())
		syncer := calendar.NewSyncer(source, events, audit, log)

		synced, err := syncer.Sync(ctx, cfg.Calendar.DaysAhead)
		if err != nil {
			zapLog.Error("startup calendar sync failed", zap.Error(err))
		} else {
			zapLog.Info("calendar synced", zap.Int("events", synced))
		}
	}

	// --- Scheduler ---
	scheduler := notify.NewScheduler(log)
	if cfg.Automation.Enabled {
		err = scheduler.AddDaily("daily-reminders", cfg.Automation.ReminderTime, func(ctx context.Context) {
			if _, err := dispatcher.RunReminderBatch(ctx, time.Now()); err != nil {
				zapLog.Error("reminder batch failed", zap.Error(err))
			}
		})
		if err != nil {
			zapLog.Fatal("trigger registration failed", zap.Error(err))
		}

		err = scheduler.AddDaily("new-appointment-confirmations", cfg.Automation.NewAppointmentTime, func(ctx context.Context) {
			if _, err := dispatcher.RunNewAppointmentBatch(ctx, time.Now()); err != nil {
				zapLog.Error("new appointment batch failed", zap.Error(err))
			}
		})
		if err != nil {
			zapLog.Fatal("trigger registration failed", zap.Error(err))
		}

		scheduler.Start()
		if err := audit.Append(ctx, "INFO", "Automatizálás elindítva", ""); err != nil {
			zapLog.Warn("audit append failed", zap.Error(err))
		}
	} else {
		zapLog.Warn("automation disabled, no scheduled batches will run")
	}

	// --- Metrics endpoint ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("metrics endpoint listening", zap.String("address", cfg.App.MetricsAddress))
		if err := http.ListenAndServe(cfg.App.MetricsAddress, nil); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping scheduler...")
	scheduler.Stop()
	if err := audit.Append(ctx, "INFO", "Automatizálás leállítva", ""); err != nil {
		zapLog.Warn("audit append failed", zap.Error(err))
	}
	zapLog.Info("Reminder daemon stopped")
}
