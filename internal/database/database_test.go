package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"whatsview/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store tests run against a real MongoDB instance. They are skipped unless
// WHATSVIEW_TEST_MONGODB_URI is set, e.g.
//
//	WHATSVIEW_TEST_MONGODB_URI=mongodb://localhost:27017 go test ./internal/database/...
func setupTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	uri := os.Getenv("WHATSVIEW_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("WHATSVIEW_TEST_MONGODB_URI not set, skipping store integration tests")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx := context.Background()
	cfg := models.MongoConfig{
		URI:        uri,
		Database:   fmt.Sprintf("whatsview_test_%d", time.Now().UnixNano()),
		Collection: "processed_messages",
	}

	store, err := New(ctx, cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.col.Database().Drop(context.Background())
		_ = store.Close(context.Background())
	})

	return store, ctx
}

func inboundText(msgID, waID, text string, ts time.Time) *models.Message {
	m := &models.Message{
		WaID:          waID,
		Direction:     models.DirectionInbound,
		Kind:          models.KindText,
		Text:          strptr(text),
		Timestamp:     ts,
		Status:        models.StatusNone,
		StatusHistory: []models.StatusEntry{},
		From:          waID,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if msgID != "" {
		m.MessageID = strptr(msgID)
	}
	return m
}

func TestUpsertInsertOnlyIsIdempotent(t *testing.T) {
	store, ctx := setupTestStore(t)

	ts := time.Date(2023, 12, 21, 3, 30, 56, 0, time.UTC)
	msg := inboundText("wamid.test.1", "1234567890", "Hello", ts)

	inserted, err := store.UpsertInsertOnly(ctx, msg)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second pass with the same external id must leave the record alone.
	dup := inboundText("wamid.test.1", "1234567890", "Hello again", ts.Add(time.Minute))
	inserted, err = store.UpsertInsertOnly(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := store.FindByExternalID(ctx, "wamid.test.1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Hello", *found.Text)
}

func TestUpsertInsertOnlyCompositeKey(t *testing.T) {
	store, ctx := setupTestStore(t)

	ts := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	msg := inboundText("", "5550001111", "no external id", ts)

	inserted, err := store.UpsertInsertOnly(ctx, msg)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.UpsertInsertOnly(ctx, inboundText("", "5550001111", "no external id", ts))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Different text under the same key triple is a distinct record.
	inserted, err = store.UpsertInsertOnly(ctx, inboundText("", "5550001111", "different body", ts))
	require.NoError(t, err)
	assert.True(t, inserted)

	count, err := store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestApplyStatusAppendsHistory(t *testing.T) {
	store, ctx := setupTestStore(t)

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := store.UpsertInsertOnly(ctx, inboundText("wamid.status.1", "111", "hi", ts))
	require.NoError(t, err)

	matched, err := store.ApplyStatus(ctx, "wamid.status.1", models.StatusDelivered, ts.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)

	// Applying the same update twice appends two entries, both delivered.
	matched, err = store.ApplyStatus(ctx, "wamid.status.1", models.StatusDelivered, ts.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)

	msg, err := store.FindByExternalID(ctx, "wamid.status.1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, models.StatusDelivered, msg.Status)
	require.Len(t, msg.StatusHistory, 2)
	assert.Equal(t, models.StatusDelivered, msg.StatusHistory[0].Status)
	assert.Equal(t, models.StatusDelivered, msg.StatusHistory[1].Status)
}

func TestApplyStatusAcceptsRegression(t *testing.T) {
	store, ctx := setupTestStore(t)

	ts := time.Now().UTC().Truncate(time.Millisecond)
	_, err := store.UpsertInsertOnly(ctx, inboundText("wamid.regress.1", "222", "hi", ts))
	require.NoError(t, err)

	_, err = store.ApplyStatus(ctx, "wamid.regress.1", models.StatusRead, ts.Add(time.Second))
	require.NoError(t, err)
	_, err = store.ApplyStatus(ctx, "wamid.regress.1", models.StatusSent, ts.Add(2*time.Second))
	require.NoError(t, err)

	msg, err := store.FindByExternalID(ctx, "wamid.regress.1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	// Raw arrival order is preserved, regression included.
	assert.Equal(t, models.StatusSent, msg.Status)
	require.Len(t, msg.StatusHistory, 2)
	assert.Equal(t, models.StatusRead, msg.StatusHistory[0].Status)
	assert.Equal(t, models.StatusSent, msg.StatusHistory[1].Status)
}

func TestApplyStatusMatchesMetaMsgID(t *testing.T) {
	store, ctx := setupTestStore(t)

	ts := time.Now().UTC().Truncate(time.Millisecond)
	msg := inboundText("wamid.meta.1", "333", "hi", ts)
	msg.MetaMsgID = strptr("wamid.meta.alias")
	_, err := store.UpsertInsertOnly(ctx, msg)
	require.NoError(t, err)

	matched, err := store.ApplyStatus(ctx, "wamid.meta.alias", models.StatusRead, ts.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
}

func TestApplyStatusNoMatch(t *testing.T) {
	store, ctx := setupTestStore(t)

	matched, err := store.ApplyStatus(ctx, "wamid.ghost", models.StatusRead, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)
}

func TestListByConversationAscending(t *testing.T) {
	store, ctx := setupTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		// Insert out of order to prove the sort.
		idx := []int{1, 0, 2}[i]
		_, err := store.UpsertInsertOnly(ctx,
			inboundText(fmt.Sprintf("wamid.list.%d", idx), "444", text, base.Add(time.Duration(idx)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := store.UpsertInsertOnly(ctx, inboundText("wamid.other.1", "555", "other convo", base))
	require.NoError(t, err)

	msgs, err := store.ListByConversation(ctx, "444")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, !msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
}

func TestAggregateConversationSummaries(t *testing.T) {
	store, ctx := setupTestStore(t)

	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	// Conversation 777: two messages, newest at +2h.
	_, err := store.UpsertInsertOnly(ctx, inboundText("wamid.agg.1", "777", "older", base))
	require.NoError(t, err)
	_, err = store.UpsertInsertOnly(ctx, inboundText("wamid.agg.2", "777", "newest in 777", base.Add(2*time.Hour)))
	require.NoError(t, err)
	// Conversation 888: one message at +1h.
	_, err = store.UpsertInsertOnly(ctx, inboundText("wamid.agg.3", "888", "only in 888", base.Add(time.Hour)))
	require.NoError(t, err)

	rows, err := store.AggregateConversationSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Sorted by most recent lastTimestamp first.
	assert.Equal(t, "777", rows[0].WaID)
	assert.Equal(t, int64(2), rows[0].TotalMessages)
	require.NotNil(t, rows[0].LastMessage)
	assert.Equal(t, "newest in 777", *rows[0].LastMessage)
	assert.Equal(t, models.KindText, rows[0].LastKind)

	assert.Equal(t, "888", rows[1].WaID)
	assert.Equal(t, int64(1), rows[1].TotalMessages)
}

func TestFindByExternalIDAbsent(t *testing.T) {
	store, ctx := setupTestStore(t)

	msg, err := store.FindByExternalID(ctx, "wamid.absent")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestSetContactNameBackfills(t *testing.T) {
	store, ctx := setupTestStore(t)

	ts := time.Now().UTC().Truncate(time.Millisecond)
	_, err := store.UpsertInsertOnly(ctx, inboundText("wamid.name.1", "999", "hi", ts))
	require.NoError(t, err)

	require.NoError(t, store.SetContactName(ctx, "999", "Ada Lovelace"))

	msg, err := store.FindByExternalID(ctx, "wamid.name.1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NotNil(t, msg.ContactName)
	assert.Equal(t, "Ada Lovelace", *msg.ContactName)
}

func TestSeedIfEmpty(t *testing.T) {
	store, ctx := setupTestStore(t)

	require.NoError(t, store.SeedIfEmpty(ctx))

	count, err := store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// A second call must not duplicate the samples.
	require.NoError(t, store.SeedIfEmpty(ctx))
	count, err = store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
