package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"notetracker/internal/auth"
	"notetracker/internal/config"
	"notetracker/internal/database"
	"notetracker/internal/handlers"
	"notetracker/internal/repository"
	"notetracker/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	gin.SetMode(cfg.GinMode)
	cfg.LogSummary()

	// Initialize database
	if err := database.InitDB(cfg.Database); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	db := database.GetDB()

	reminders := repository.NewReminderRepository(db)
	tasks := repository.NewTaskStore(db)
	accounts := repository.NewAccountStore(db)
	notifications := repository.NewNotificationStore(db)

	// Channels are tried in this order on every cycle
	channels := []services.Channel{services.NewInAppChannel(db)}
	if cfg.SendGrid.Enabled() {
		channels = append(channels, services.NewEmailService(cfg.SendGrid))
	} else {
		log.Println("Warning: SendGrid not configured, email reminders will be skipped")
	}
	if cfg.TelegramBotToken != "" {
		channels = append(channels, services.NewTelegramService(cfg.TelegramBotToken, cfg.Reminder.DeliveryTimeout))
	} else {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, telegram reminders will be skipped")
	}

	delivery := services.NewDeliveryService(reminders, accounts, cfg.Reminder.DeliveryTimeout, channels...)
	worker := services.NewReminderWorker(reminders, delivery, cfg.Reminder.CheckInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	worker.Start(ctx)

	// Initialize Gin router
	router := gin.Default()
	router.SetTrustedProxies([]string{"127.0.0.1"})

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Basic routes
	router.GET("/", handlers.HomeHandler)
	router.GET("/health", handlers.HealthHandler)

	// Protected routes (auth required)
	protected := router.Group("")
	protected.Use(auth.AuthMiddleware(cfg.JWTSecret))
	handlers.New(reminders, tasks, notifications, delivery, worker).RegisterRoutes(protected)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error: Server shutdown failed: %v", err)
	}
	worker.Stop()
}
