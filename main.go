package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"loyalty-points-system/handlers"
	"loyalty-points-system/middleware"
	"loyalty-points-system/models"
	"loyalty-points-system/services"
	"loyalty-points-system/utils"
	"loyalty-points-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, reward images only
	})

	// GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	// TranslateError lets the engine catch duplicate idempotency keys as
	// gorm.ErrDuplicatedKey instead of driver-specific errors.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.UserPointsAccount{},
		&models.Transaction{},
		&models.Reward{},
		&models.PointGift{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Announcement{},
		&models.StaffRole{},
		&models.NotificationOutbox{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	cfg := services.LoadLoyaltyConfig()

	notify := services.NewNotifyService(db)
	engine := services.NewPointsEngine(db, cfg, notify)
	achievements := services.NewAchievementService(db, engine)
	engine.Achievements = achievements
	history := services.NewHistoryService(db)
	referrals := services.NewReferralService(db, engine, cfg)
	rewards := services.NewRewardService(db)
	admin := services.NewAdminService(db, notify)
	announcements := services.NewAnnouncementService(db, notify)

	if err := achievements.SeedDefaults(); err != nil {
		log.Fatal("failed to seed achievements:", err)
	}

	dispatcher := workers.NewOutboxDispatcher(notify, cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollOutbox(ctx, dispatcher, 10*time.Second)

	announcements.StartMaintenanceScheduler(cfg.OutboxMaxAttempts)

	handlers.SetupPointsRoutes(app, engine, history)
	handlers.SetupRewardRoutes(app, rewards, admin)
	handlers.SetupSocialRoutes(app, achievements, referrals, announcements)
	handlers.SetupAdminRoutes(app, engine, history, admin, announcements, notify)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Notification outbox worker running (every 10s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
