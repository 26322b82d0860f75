// Package queue publishes and consumes posting events over RabbitMQ. Events
// are emitted after the posting has committed; the consumer feeds the
// statement archive.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"

	"github.com/oinkbank/ledger/internal/models"
)

const (
	// PostingQueue carries committed posting events.
	PostingQueue = "postings"
)

// RabbitMQ handles queue operations.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewRabbitMQ(uri string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		PostingQueue, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// PublishPosting publishes a committed posting event.
func (r *RabbitMQ) PublishPosting(ctx context.Context, entry *models.StatementEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal posting event: %w", err)
	}

	err = r.channel.Publish(
		"",           // exchange
		PostingQueue, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish posting event: %w", err)
	}

	return nil
}

// ConsumePostings delivers posting events until the context is canceled.
// Messages are acked once handed off; malformed payloads are dropped with a
// log line rather than redelivered forever.
func (r *RabbitMQ) ConsumePostings(ctx context.Context) (<-chan models.StatementEntry, error) {
	msgs, err := r.channel.Consume(
		PostingQueue, // queue
		"",           // consumer
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	entryChan := make(chan models.StatementEntry)

	go func() {
		defer close(entryChan)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var entry models.StatementEntry
				if err := json.Unmarshal(msg.Body, &entry); err != nil {
					log.Printf("Dropping malformed posting event: %v", err)
					_ = msg.Nack(false, false)
					continue
				}

				select {
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				case entryChan <- entry:
					_ = msg.Ack(false)
				}
			}
		}
	}()

	return entryChan, nil
}
