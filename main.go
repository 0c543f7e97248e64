package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/poputky-backend/database"
	"github.com/Ananth-NQI/poputky-backend/internal/config"
	"github.com/Ananth-NQI/poputky-backend/internal/handlers"
	"github.com/Ananth-NQI/poputky-backend/internal/ingest"
	"github.com/Ananth-NQI/poputky-backend/internal/jobs"
	"github.com/Ananth-NQI/poputky-backend/internal/routes"
	"github.com/Ananth-NQI/poputky-backend/internal/services"
	"github.com/Ananth-NQI/poputky-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	health := handlers.NewHealthHandler(version, getStorageType(cfg))

	// Initialize storage
	var store storage.Store
	var db *gorm.DB

	// Check if we should use memory store (for testing)
	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		// Connect to database
		log.Println("📦 Connecting to PostgreSQL database...")
		db, err = database.Connect(cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}

		// Run migrations
		log.Println("🔄 Running database migrations...")
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(db)
		health.AddCheck("database", func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Session store
	var sessions services.SessionStore
	var sweeper services.Sweeper
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		sessions = services.NewRedisSessionStore(rdb, cfg.RedisSessionPrefix, cfg.SessionTTL)
		health.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Printf("✅ Sessions in Redis at %s", cfg.RedisAddr)
	case config.SessionBackendDatabase:
		dbSessions := services.NewDatabaseSessionStore(db, cfg.SessionTTL)
		sessions, sweeper = dbSessions, dbSessions
		log.Println("✅ Sessions in PostgreSQL")
	default:
		memSessions := services.NewMemorySessionStore(cfg.SessionTTL)
		sessions, sweeper = memSessions, memSessions
		log.Println("✅ Sessions in memory")
	}

	// Messaging transports
	router := services.NewMessengerRouter(services.LogMessenger{})
	var telegram *services.TelegramMessenger
	if cfg.TelegramBotToken != "" {
		telegram, err = services.NewTelegramMessenger(cfg.TelegramBotToken)
		if err != nil {
			log.Fatal("Failed to initialize Telegram bot:", err)
		}
		router.Register(services.ChannelTelegram, telegram)
	} else {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set - Telegram replies will only be logged")
	}
	if cfg.TwilioConfigured() {
		twilioService, err := services.NewTwilioService(cfg)
		if err != nil {
			log.Fatal("Failed to initialize Twilio service:", err)
		}
		router.Register(services.ChannelWhatsApp, twilioService)
		log.Println("✅ Twilio service initialized")
	} else {
		log.Println("⚠️  Twilio credentials not found - WhatsApp replies will only be logged")
	}

	// Listing events
	var publisher services.ListingEventPublisher = services.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		log.Printf("✅ Publishing listings to Kafka topic %s", cfg.KafkaTopic)
	}

	engine := services.NewEngine(services.EngineConfig{
		Sessions:          sessions,
		Store:             store,
		Parser:            services.DefaultTextParser{},
		Messenger:         router,
		Events:            publisher,
		Location:          cfg.Location,
		NotifyConcurrency: cfg.NotifyConcurrency,
	})
	dispatcher := services.NewChatDispatcher()

	importer := services.NewViberImporter(services.ImporterConfig{
		Store:             store,
		Messenger:         router,
		Parser:            services.DefaultTextParser{},
		Events:            publisher,
		Location:          cfg.Location,
		NotifyConcurrency: cfg.NotifyConcurrency,
	})

	// Initialize and start maintenance jobs
	maintenanceJob := jobs.NewMaintenanceJob(store, sweeper, cfg.Location, cfg.ListingCleanupHour, cfg.SessionSweepInterval)
	maintenanceJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Poputky Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	var callbacks handlers.CallbackAnswerer
	if telegram != nil {
		callbacks = telegram
	}
	routes.SetupRoutes(app, cfg, routes.Handlers{
		Health:   health,
		Telegram: handlers.NewTelegramHandler(engine, dispatcher, callbacks),
		WhatsApp: handlers.NewWhatsAppHandler(engine, dispatcher),
		TestChat: handlers.NewTestChatHandler(engine, dispatcher),
		Listings: handlers.NewListingHandler(store, cfg.Location),
		Import:   handlers.NewImportHandler(importer),
	})

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping maintenance jobs...")
		maintenanceJob.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 Poputky Backend starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", getStorageType(cfg))
	log.Printf("🗂️  Sessions: %s (TTL %v)", cfg.SessionBackend, cfg.SessionTTL)
	log.Printf("🌍 Environment: %s, timezone %s", cfg.Environment, cfg.Location)
	log.Printf("💬 Telegram: %s", getStatus(cfg.TelegramBotToken != ""))
	log.Printf("📱 WhatsApp: %s", getStatus(cfg.TwilioConfigured()))
	log.Println("========================================")

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("❌ Server stopped: %v", err)
	}
}

func getStorageType(cfg config.Config) string {
	if cfg.UseMemoryStore {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getStatus(configured bool) string {
	if !configured {
		return "Not configured"
	}
	return "Configured"
}
