package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendly/cmd/janitor/jobs"
	"attendly/internal/config"
	"attendly/internal/database"
	"attendly/internal/logger"
	"attendly/internal/messaging"
	"attendly/internal/repository"
	"attendly/internal/service"
)

func main() {
	log.Println("Starting janitor service...")

	// Load configuration
	cfg := config.Load()
	cfg.NATS.ClientID = "attendly-janitor"

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	repos := repository.NewRepositories(db)
	auditService := service.NewAuditService(repos.Registrations, repos.Events, natsClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := jobs.NewPendingCleanupJob(repos.Registrations, cfg.PendingTTL)
	cleanupJob.Start(ctx)

	auditJob := jobs.NewDriftAuditJob(auditService, cfg.AuditInterval)
	auditJob.Start(ctx)

	log.Println("Janitor service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down janitor service...")

	cleanupJob.Stop()
	auditJob.Stop()
	cancel()

	log.Println("Janitor service stopped")
}
