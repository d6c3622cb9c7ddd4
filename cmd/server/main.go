// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/wanzami/mailblast-backend/internal/config"
	"github.com/wanzami/mailblast-backend/internal/controller"
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
	campaignRepo := &repository.CampaignRepository{DB: conn}
	subscriberRepo := &repository.SubscriberRepository{DB: conn}
	ledgerRepo := &repository.LedgerRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		TemplateRepo: templateRepo,
		LedgerRepo:   ledgerRepo,
	}
	dispatcher := &service.Dispatcher{
		CampaignRepo: campaignRepo,
		LedgerRepo:   ledgerRepo,
		Queue:        store,
		Publisher:    broker,
		MaxAttempts:  cfg.JobMaxAttempts,
	}
	sendService := &service.SendService{
		Queue:        store,
		LedgerRepo:   ledgerRepo,
		CampaignRepo: campaignRepo,
		Mailer:       sender,
		SendTimeout:  cfg.SendTimeout,
		RetryBackoff: cfg.RetryBackoff,
	}
	processor := &service.Processor{
		Queue:     store,
		Sender:    sendService,
		BatchSize: cfg.PullBatchSize,
	}
	aggregator := &service.StatusAggregator{
		Queue:    store,
		PageSize: cfg.StatusPageSize,
	}

	campaignController := &controller.CampaignController{
		Service:    campaignService,
		Dispatcher: dispatcher,
	}
	queueController := &controller.QueueController{
		Aggregator: aggregator,
		Processor:  processor,
		Queue:      store,
	}
	subscriberController := &controller.SubscriberController{Repo: subscriberRepo}
	templateController := &controller.TemplateController{Repo: templateRepo}

	r := chi.NewRouter()

	r.Get("/campaigns", campaignController.List)
	r.Post("/campaigns", campaignController.Create)
	r.Get("/campaigns/{id}", campaignController.Get)
	r.Put("/campaigns/{id}", campaignController.Update)
	r.Delete("/campaigns/{id}", campaignController.Delete)
	r.Post("/campaigns/{id}/send", campaignController.Send)

	r.Get("/queue/status", queueController.Status)
	r.Post("/queue/process-now", queueController.ProcessNow)
	r.Post("/queue/clear-failed", queueController.ClearFailed)

	r.Get("/templates", templateController.List)
	r.Post("/templates", templateController.Create)
	r.Put("/templates/{id}", templateController.Update)
	r.Delete("/templates/{id}", templateController.Delete)

	r.Get("/subscribers", subscriberController.List)
	r.Post("/subscribers", subscriberController.Upload)
	r.Delete("/subscribers", subscriberController.Delete)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		log.Printf("server running on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("received shutdown signal")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
