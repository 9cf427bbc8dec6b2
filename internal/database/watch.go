package database

import (
	"context"
	"fmt"

	"whatsview/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventPublisher receives store change events for fan-out to subscribers.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

type changeEvent struct {
	OperationType string          `bson:"operationType"`
	FullDocument  *models.Message `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	UpdateDescription *struct {
		UpdatedFields bson.M `bson:"updatedFields"`
	} `bson:"updateDescription"`
}

// WatchChanges opens a change stream on the collection and publishes
// message:new for inserts and message:update for updates/replaces until
// the context is cancelled. Change streams require a replica set; the
// returned error lets the caller degrade to direct-send-only events.
func (s *Store) WatchChanges(ctx context.Context, pub EventPublisher) error {
	stream, err := s.col.Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup),
	)
	if err != nil {
		return fmt.Errorf("failed to open change stream: %w", err)
	}

	go func() {
		defer func() {
			_ = stream.Close(context.Background())
		}()

		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				s.logger.WithError(err).Warn("Failed to decode change event")
				continue
			}

			switch ev.OperationType {
			case "insert":
				if ev.FullDocument != nil {
					pub.Publish(models.EventMessageNew, ev.FullDocument)
				}
			case "update", "replace":
				payload := map[string]interface{}{
					"_id": ev.DocumentKey.ID.Hex(),
				}
				if ev.UpdateDescription != nil {
					payload["updatedFields"] = ev.UpdateDescription.UpdatedFields
				}
				pub.Publish(models.EventMessageUpdate, payload)
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("Change stream terminated")
		}
	}()

	s.logger.Info("Change stream watcher started")
	return nil
}
