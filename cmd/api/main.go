package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/complaint-hub/internal/application/dispatch"
	"github.com/complaint-hub/internal/application/reminder"
	"github.com/complaint-hub/internal/config"
	"github.com/complaint-hub/internal/infrastructure/dynamo"
	jwtinfra "github.com/complaint-hub/internal/infrastructure/jwt"
	"github.com/complaint-hub/internal/infrastructure/realtime"
	"github.com/complaint-hub/internal/infrastructure/smtp"
	"github.com/complaint-hub/internal/infrastructure/sns"
	transporthttp "github.com/complaint-hub/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	reminderRepo := dynamo.NewReminderRepo(dynamoClient, cfg.DynamoTables.Reminders)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)

	// One registry and one dispatcher per process, injected everywhere.
	registry := realtime.NewRegistry()
	dispatcher := dispatch.NewService(dispatch.Deps{
		Publisher: registry,
		Store:     notificationRepo,
		Directory: userRepo,
		Mailer:    mailer,
		SMS:       smsSender,
		DedupTTL:  cfg.DispatchDedupTTL,
	})

	// One scheduler per process. Multi-instance deployments can double-fire
	// a reminder at the due instant; run a single designated instance or
	// add a shared lock if that ever matters.
	scheduler := reminder.NewScheduler(reminder.SchedulerDeps{
		Store:      reminderRepo,
		Dispatcher: dispatcher,
		Interval:   cfg.SchedulerInterval,
		DedupTTL:   cfg.ReminderDedupTTL,
		PurgeAge:   cfg.DedupPurgeAge,
	})
	if err := scheduler.Start(); err != nil {
		log.Fatalf("scheduler start: %v", err)
	}

	deps := &transporthttp.Deps{
		NotificationRepo: notificationRepo,
		ReminderRepo:     reminderRepo,
		Dispatcher:       dispatcher,
		Registry:         registry,
		JWTProvider:      jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	// No global read/write timeouts: the /v1/stream WebSocket connections
	// are long-lived. Per-message deadlines live in the stream handler.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
