// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wanzami/mailblast-backend/internal/config"
	"github.com/wanzami/mailblast-backend/internal/db"
	"github.com/wanzami/mailblast-backend/internal/mailer"
	"github.com/wanzami/mailblast-backend/internal/queue"
	"github.com/wanzami/mailblast-backend/internal/repository"
	"github.com/wanzami/mailblast-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	conn, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close()

	broker, err := queue.NewBroker(cfg.AMQPURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer broker.Close()

	sender, err := mailer.New(mailer.Options{
		Driver:       cfg.MailDriver,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUser:     cfg.SMTPUser,
		SMTPPass:     cfg.SMTPPass,
		ResendAPIKey: cfg.ResendAPIKey,
		From:         cfg.FromEmail,
	})
	if err != nil {
		log.Fatalf("failed to configure mailer: %v", err)
	}

	store := queue.NewStore(conn, cfg.StalledAfter)
	sendService := &service.SendService{
		Queue:        store,
		LedgerRepo:   &repository.LedgerRepository{DB: conn},
		CampaignRepo: &repository.CampaignRepository{DB: conn},
		Mailer:       sender,
		SendTimeout:  cfg.SendTimeout,
		RetryBackoff: cfg.RetryBackoff,
	}
	pool := &service.WorkerPool{
		Queue:       store,
		Sender:      sendService,
		Concurrency: cfg.WorkerConcurrency,
	}

	deliveries, err := broker.Consume(cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("failed to register consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pool.Maintain(ctx, broker, cfg.PromoteInterval, cfg.KeepCompleted, cfg.KeepFailed)

	log.Printf("worker running with concurrency %d, waiting for jobs...", cfg.WorkerConcurrency)
	pool.Run(ctx, deliveries)
	log.Println("worker stopped")
}
