package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"microcredit/internal/adapters/http/middleware"
	"microcredit/internal/adapters/http/routes"
	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	_ "microcredit/docs" // Swagger docs
)

// @title Microcredit Ledger API
// @version 1.0
// @description Manager-originated microcredit loans with daily compounding interest.

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	logCloser := config.SetupLogging(cfg)
	defer logCloser.Close()

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Connect to redis (event channel, wallet login nonces)
	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to redis: %v", err)
	}
	defer config.CloseRedis()

	// Seed bootstrap data
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := config.NewSeeder(db, cfg).Run(ctx); err != nil {
		log.Printf("⚠️ Warning: Failed to seed data: %v", err)
	}

	container := routes.NewContainer(db, rdb, cfg)

	if err := container.Ledger.InitRevenueAddress(ctx, cfg.Ledger.Revenue); err != nil {
		log.Fatalf("❌ Failed to initialize revenue address: %v", err)
	}
	if cfg.Ledger.Custody == (common.Address{}) {
		log.Println("⚠️ LEDGER_CUSTODY_ADDRESS not set: claims and repayments will be rejected")
	}

	// Start cron jobs (expiry sweep, exposure snapshot)
	if err := container.Cron.Start(); err != nil {
		log.Fatalf("❌ Failed to start cron: %v", err)
	}
	defer container.Cron.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Microcredit Ledger API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, container)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
