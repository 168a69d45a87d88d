package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/InvoiceFox/app/controllers"
	"github.com/ManuelReschke/InvoiceFox/app/repository"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/alerting"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/cache"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/database"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/env"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/health"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/mail"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/ratelimit"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/recurrence"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/router"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/s3archive"
)

const lockPrefix = "recurrence:lock:"

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("[Main] Shutting down")
		if m := jobqueue.GetManager(); m != nil {
			m.Stop()
		}
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Errorf("[Main] Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/invoicefox to project root
		"../../../", // Fallback
	}

	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	app := fiber.New(fiber.Config{
		AppName:           "InvoiceFox",
		BodyLimit:         1 << 20,
		EnablePrintRoutes: env.IsDev(),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, wireHandlers(context.Background()))

	return app
}

// wireHandlers builds the engine with every optional collaborator that is
// reachable and starts the background manager.
func wireHandlers(ctx context.Context) router.Handlers {
	repos := repository.NewRepositories(database.GetDB())

	// A nil interface, never a typed nil client, marks Redis as absent.
	var redisClient redis.UniversalClient
	if c := cache.GetClient(); c != nil {
		if err := c.Ping(ctx).Err(); err != nil {
			log.Warnf("[Main] Redis unavailable, locks, counters and the job queue are disabled: %v", err)
		} else {
			redisClient = c
		}
	}

	recCfg := recurrence.LoadConfig()
	deps := recurrence.Deps{
		Contracts: repos.Contract,
		Invoices:  repos.Invoice,
		Audit:     repos.Audit,
		Logs:      repos.ExecutionLog,
	}

	settings := alerting.NewSettingsStore(repos.AlertSettings, redisClient)
	var mailer mail.Mailer
	if mailCfg := mail.LoadConfig(); mailCfg.Host != "" {
		mailer = mail.NewSMTPMailer(mailCfg)
	} else {
		log.Warn("[Main] SMTP_HOST not set, email alerts are disabled")
	}
	webhook := alerting.NewWebhookSender(
		env.GetEnv("ALERT_WEBHOOK_SECRET", ""),
		env.GetDurationEnv("ALERT_WEBHOOK_TIMEOUT", 10*time.Second),
	)
	if env.GetBoolEnv("ALERT_WEBHOOK_ALLOW_PRIVATE", false) {
		webhook.AllowPrivateNetworks()
	}
	dispatcher := alerting.NewDispatcher(settings, mailer, webhook, repos.ExecutionLog)
	deps.Alerts = dispatcher

	var stats controllers.RunStats
	if redisClient != nil {
		deps.Locker = cache.NewLocker(redisClient, lockPrefix)
		recorder := counter.NewRecorder(redisClient)
		deps.Recorder = recorder
		stats = recorder
	}

	s3Cfg, err := s3archive.LoadConfig()
	switch {
	case err != nil:
		log.Errorf("[Main] Invalid run archive configuration: %v", err)
	case s3Cfg.IsEnabled():
		archive, err := s3archive.NewClient(ctx, s3Cfg)
		if err != nil {
			log.Errorf("[Main] Run archive disabled: %v", err)
		} else {
			deps.Archiver = archive
		}
	}

	engine := recurrence.NewEngine(deps, recCfg)

	manager := jobqueue.NewManager(redisClient, engine, jobqueue.LoadManagerConfig(recCfg.ScheduleHour))
	jobqueue.SetManager(manager)
	manager.Start()

	var jobs controllers.RecurringJobs
	if manager.GetQueue() != nil {
		jobs = manager
	}

	var limit fiber.Handler
	if env.GetBoolEnv("RATE_LIMIT_ENABLED", true) {
		limit = ratelimit.New(ratelimit.LoadConfig(), ratelimit.NewStorage(ctx))
	}

	checker := health.NewChecker().
		Add("database", health.DatabasePinger(database.GetDB()), true).
		Add("redis", health.RedisPinger(redisClient), false)

	return router.Handlers{
		Recurrence:    controllers.NewRecurrenceController(engine, jobs, stats),
		Alerts:        controllers.NewAlertController(dispatcher, dispatcher.Settings()),
		Logs:          controllers.NewExecutionLogController(repos.ExecutionLog),
		TriggerSecret: env.GetEnv("RECURRENCE_TRIGGER_SECRET", ""),
		RateLimit:     limit,
		Health:        checker.Handler(),
	}
}
