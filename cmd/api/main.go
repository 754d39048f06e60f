package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	config "github.com/anjiri1684/skillcoin/configs"
	"github.com/anjiri1684/skillcoin/database"
	"github.com/anjiri1684/skillcoin/handlers"
	"github.com/anjiri1684/skillcoin/jobs"
	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/logger"
	"github.com/anjiri1684/skillcoin/middleware"
	"github.com/anjiri1684/skillcoin/notifications"
	"github.com/anjiri1684/skillcoin/observability"
	"github.com/anjiri1684/skillcoin/routes"
	"github.com/anjiri1684/skillcoin/storage"
	"github.com/anjiri1684/skillcoin/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

func main() {
	log, err := logger.New(config.ConfigOr("APP_ENV", "development"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(config.Config("DATABASE_URL"), log)
	if err != nil {
		log.Fatal("database unavailable", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("migration failed", "error", err)
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	core := ledger.New(db, log, ledger.Options{
		MaxAttempts:    config.Int("LEDGER_MAX_ATTEMPTS", 3),
		MeetingBaseURL: config.Config("MEETING_BASE_URL"),
		Hooks:          metrics,
		Notifier:       hub,
	})

	var media handlers.MediaStore
	if cld, err := storage.NewCloudinary(config.Config("CLOUDINARY_URL"), storage.DefaultVideoFolder); err != nil {
		log.Warn("video storage disabled", "error", err)
	} else {
		media = cld
	}

	mailer := notifications.NewBrevoService(
		config.Config("BREVO_API_KEY"),
		config.Config("EMAIL_SENDER"),
		config.ConfigOr("EMAIL_SENDER_NAME", "SkillCoin Connect"),
		log,
	)

	rdb := openRedis(ctx, config.Config("REDIS_URL"), log)
	if rdb != nil {
		defer rdb.Close()
	}

	secret := config.Config("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	h := handlers.New(handlers.Deps{
		DB:            db,
		Ledger:        core,
		Log:           log,
		Media:         media,
		Mailer:        mailer,
		Hub:           hub,
		JWTSecret:     secret,
		StartingCoins: int64(config.Int("STARTING_COINS", 1000)),
	})

	reminders := jobs.NewReminderJob(core, db, mailer, rdb, log, metrics)
	c := cron.New()
	if _, err := c.AddFunc(jobs.ReminderSchedule, reminders.Func(ctx)); err != nil {
		log.Fatal("scheduling reminders failed", "error", err)
	}
	c.Start()
	log.Info("booking reminder job scheduled", "schedule", jobs.ReminderSchedule)

	app := fiber.New(fiber.Config{
		AppName:       "SkillCoin Connect",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			log.Error("request failed", "error", err, "path", c.Path(), "method", c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  config.ConfigOr("CORS_ORIGINS", "*"),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization, Retry-After",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to SkillCoin Connect API",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	routes.Setup(app, h, routes.Config{
		JWTSecret: secret,
		Limiter:   middleware.NewRateLimiter(rdb, log, metrics),
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		cronCtx := c.Stop()
		<-cronCtx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	addr := ":" + config.ConfigOr("PORT", "8080")
	log.Info("server listening", "addr", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server failed", "error", err)
	}
}

func openDB(dsn string, log *logger.Logger) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "file:") {
		log.Warn("using sqlite store, intended for local runs only")
		return database.OpenSQLite(dsn)
	}
	return database.ConnectDB(dsn, log)
}

// openRedis returns nil when Redis is not configured or unreachable; rate
// limiting and the reminder lock are skipped in that case.
func openRedis(ctx context.Context, url string, log *logger.Logger) *redis.Client {
	if url == "" {
		log.Warn("REDIS_URL not set, rate limiting disabled")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("invalid REDIS_URL, rate limiting disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, rate limiting disabled", "error", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
