package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/oinkbank/ledger/internal/config"
	"github.com/oinkbank/ledger/internal/db"
	"github.com/oinkbank/ledger/internal/queue"
	"github.com/oinkbank/ledger/internal/service"
)

// The archiver consumes committed posting events and writes them to the
// MongoDB statement archive.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	log.Println("Connecting to PostgreSQL...")
	postgres, err := db.NewPostgres(cfg.PostgresURI)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer postgres.Close()

	log.Println("Connecting to MongoDB...")
	mongodb, err := db.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongodb.Close(ctx)

	log.Println("Connecting to RabbitMQ...")
	rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbitmq.Close()

	transactionService := service.NewTransactionService(postgres, mongodb, rabbitmq)

	log.Println("Starting statement archiver...")
	if err := transactionService.StartArchiver(ctx); err != nil {
		log.Fatalf("Failed to start archiver: %v", err)
	}

	log.Println("Statement archiver started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down archiver...")
	cancel()
	log.Println("Archiver shut down successfully")
}
