package database

import (
	"context"
	"fmt"
	"time"

	"whatsview/internal/constants"
	"whatsview/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the MongoDB-backed message store. All idempotency guarantees
// rely on the collection's unique-constraint and atomic single-document
// update semantics; there is no application-level locking.
type Store struct {
	client *mongo.Client
	col    *mongo.Collection
	logger *logrus.Logger
}

// New connects to MongoDB, verifies connectivity and ensures the indexes
// the query surface depends on.
func New(ctx context.Context, cfg models.MongoConfig, logger *logrus.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultMongoConnectSec*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &Store{
		client: client,
		col:    client.Database(cfg.Database).Collection(cfg.Collection),
		logger: logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"database":   cfg.Database,
		"collection": cfg.Collection,
	}).Info("MongoDB store initialized")

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	// messageId is unique when present but absent on locally composed
	// outbound messages, hence unique+sparse.
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "messageId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "metaMsgId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "waId", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "timestamp", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}

	_, err := s.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
