package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/oinkbank/ledger/internal/db"
	"github.com/oinkbank/ledger/internal/ledger"
	"github.com/oinkbank/ledger/internal/models"
	"github.com/oinkbank/ledger/internal/queue"
)

// TransactionService wraps the posting engine and fans committed postings
// out to the statement archive via the queue.
type TransactionService struct {
	engine   *ledger.Engine
	postgres *db.Postgres
	mongodb  *db.MongoDB
	rabbitmq *queue.RabbitMQ
}

func NewTransactionService(postgres *db.Postgres, mongodb *db.MongoDB, rabbitmq *queue.RabbitMQ) *TransactionService {
	return &TransactionService{
		engine:   ledger.NewEngine(postgres),
		postgres: postgres,
		mongodb:  mongodb,
		rabbitmq: rabbitmq,
	}
}

// Post applies a transaction to an account. The posting itself is atomic in
// Postgres; the archive event is published after commit, best effort — a
// publish failure is logged, not returned, because the canonical state has
// already committed.
func (s *TransactionService) Post(ctx context.Context, accountID uuid.UUID, req *models.TransactionRequest) (*models.Transaction, error) {
	res, err := s.engine.Post(ctx, accountID, ledger.Request{
		Type:              req.Type,
		Amount:            req.Amount,
		Details:           req.Details,
		DestinationNumber: req.DestinationNumber,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, res)
	return res.Transaction, nil
}

// Reverse soft-deletes a posted transaction by posting a compensating entry.
func (s *TransactionService) Reverse(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	res, err := s.engine.Reverse(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, res)
	return res.Transaction, nil
}

func (s *TransactionService) publish(ctx context.Context, res *ledger.Result) {
	for _, tx := range []*models.Transaction{res.Transaction, res.Mirror} {
		if tx == nil {
			continue
		}
		if err := s.rabbitmq.PublishPosting(ctx, models.NewStatementEntry(tx)); err != nil {
			log.Printf("Failed to publish posting event for %s: %v", tx.ID, err)
		}
	}
}

// GetTransaction retrieves a transaction by ID.
func (s *TransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := s.postgres.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// Statement retrieves archived entries for an account, newest first.
func (s *TransactionService) Statement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.StatementEntry, error) {
	entries, err := s.mongodb.StatementByAccountID(ctx, accountID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}
	return entries, nil
}

// StartArchiver consumes posting events and writes them to the statement
// archive until the context is canceled.
func (s *TransactionService) StartArchiver(ctx context.Context) error {
	entryChan, err := s.rabbitmq.ConsumePostings(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume posting events: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entryChan:
				if !ok {
					return
				}

				if err := s.mongodb.ArchiveEntry(ctx, &entry); err != nil {
					log.Printf("Failed to archive posting %s: %v", entry.TransactionID, err)
				} else {
					log.Printf("Archived posting %s", entry.TransactionID)
				}
			}
		}
	}()

	return nil
}
