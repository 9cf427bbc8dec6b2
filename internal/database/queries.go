package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsview/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// externalIDFilter matches a message by either of its external
// identifiers. Status updates sometimes reference a message through
// meta_msg_id instead of the id it was created with.
func externalIDFilter(externalID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"messageId": externalID},
		bson.M{"metaMsgId": externalID},
	}}
}

// FindByExternalID returns the message whose messageId or metaMsgId equals
// externalID, or nil when no such message exists.
func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*models.Message, error) {
	var msg models.Message
	err := s.col.FindOne(ctx, externalIDFilter(externalID)).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message by external id: %w", err)
	}
	return &msg, nil
}

// UpsertInsertOnly creates the message unless a record with the same
// idempotency key already exists; an existing record is left untouched.
// The key is messageId when present, else (waId, timestamp, text).
// Returns whether a new record was inserted.
func (s *Store) UpsertInsertOnly(ctx context.Context, msg *models.Message) (bool, error) {
	var filter bson.M
	if msg.HasExternalID() {
		filter = bson.M{"messageId": *msg.MessageID}
	} else {
		filter = bson.M{"waId": msg.WaID, "timestamp": msg.Timestamp, "text": msg.Text}
	}

	res, err := s.col.UpdateOne(ctx, filter,
		bson.M{"$setOnInsert": msg},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert message: %w", err)
	}

	return res.UpsertedCount > 0, nil
}

// InsertMessage stores a new message unconditionally and returns it with
// its assigned id. Used by the send path, which always creates a fresh
// locally-authored record.
func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	res, err := s.col.InsertOne(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return msg, nil
}

// ApplyStatus sets the current status of every message matching externalID
// and appends one entry to its status history. History entries record
// arrival order; no monotonic-progression check is applied, so a
// regressing status is stored as given. Returns how many messages matched.
func (s *Store) ApplyStatus(ctx context.Context, externalID string, status models.MessageStatus, at time.Time) (int64, error) {
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now().UTC(),
		},
		"$push": bson.M{
			"statusHistory": models.StatusEntry{Status: status, At: at},
		},
	}

	res, err := s.col.UpdateMany(ctx, externalIDFilter(externalID), update)
	if err != nil {
		return 0, fmt.Errorf("failed to apply status update: %w", err)
	}

	return res.MatchedCount, nil
}

// SetContactName backfills the display name on every message of a
// conversation; the last-known value wins.
func (s *Store) SetContactName(ctx context.Context, waID, name string) error {
	_, err := s.col.UpdateMany(ctx,
		bson.M{"waId": waID},
		bson.M{"$set": bson.M{"contactName": name, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set contact name: %w", err)
	}
	return nil
}

// ListByConversation returns every message of a conversation in ascending
// timestamp order.
func (s *Store) ListByConversation(ctx context.Context, waID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := s.col.Find(ctx, bson.M{"waId": waID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

// AggregateConversationSummaries derives one row per conversation: the
// most recent message's fields plus a total count, sorted by recency.
// The projection is recomputed on every call and never cached.
func (s *Store) AggregateConversationSummaries(ctx context.Context) ([]models.ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$waId"},
			{Key: "lastMessage", Value: bson.D{{Key: "$first", Value: "$text"}}},
			{Key: "lastType", Value: bson.D{{Key: "$first", Value: "$type"}}},
			{Key: "lastStatus", Value: bson.D{{Key: "$first", Value: "$status"}}},
			{Key: "lastTimestamp", Value: bson.D{{Key: "$first", Value: "$timestamp"}}},
			{Key: "contactName", Value: bson.D{{Key: "$first", Value: "$contactName"}}},
			{Key: "totalMessages", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "waId", Value: "$_id"},
			{Key: "lastMessage", Value: 1},
			{Key: "lastType", Value: 1},
			{Key: "lastStatus", Value: 1},
			{Key: "lastTimestamp", Value: 1},
			{Key: "contactName", Value: 1},
			{Key: "totalMessages", Value: 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "lastTimestamp", Value: -1}}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate conversations: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	summaries := []models.ConversationSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode conversation summaries: %w", err)
	}

	return summaries, nil
}

// CountMessages returns the total number of stored messages.
func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
