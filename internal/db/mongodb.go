package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oinkbank/ledger/internal/models"
)

// MongoDB is the statement archive: an eventually consistent read model of
// posted transactions, fed by the archiver worker. Canonical state stays in
// Postgres.
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDB connects to MongoDB and prepares the statements collection.
func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	collection := client.Database(dbName).Collection("statements")

	// The _id is the transaction UUID, so redelivered queue messages are
	// archived at most once. The account index serves statement reads.
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "posted_at", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDB{
		client:     client,
		collection: collection,
	}, nil
}

// Close disconnects from MongoDB.
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ArchiveEntry stores a posted transaction in the archive. Duplicate entries
// are ignored so the archiver can safely reprocess deliveries.
func (m *MongoDB) ArchiveEntry(ctx context.Context, entry *models.StatementEntry) error {
	_, err := m.collection.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to archive entry: %w", err)
	}
	return nil
}

// StatementByAccountID retrieves archived entries for an account, newest
// first.
func (m *MongoDB) StatementByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.StatementEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "posted_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := m.collection.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find statement entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*models.StatementEntry, 0)
	for cursor.Next(ctx) {
		var entry models.StatementEntry
		if err := cursor.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode statement entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate statement entries: %w", err)
	}
	return entries, nil
}
