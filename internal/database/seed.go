package database

import (
	"context"
	"fmt"
	"time"

	"whatsview/internal/models"
)

func strptr(s string) *string { return &s }

func sampleMessages() []interface{} {
	base := time.Date(2023, time.December, 21, 10, 30, 56, 0, time.UTC)

	mk := func(msgID, waID, name, text string, ts time.Time, status models.MessageStatus, history []models.StatusEntry) models.Message {
		return models.Message{
			MessageID:     strptr(msgID),
			WaID:          waID,
			ContactName:   strptr(name),
			Direction:     models.DirectionInbound,
			Kind:          models.KindText,
			Text:          strptr(text),
			Timestamp:     ts,
			Status:        status,
			StatusHistory: history,
			From:          waID,
			To:            "123456789",
			CreatedAt:     ts,
			UpdatedAt:     ts,
		}
	}

	return []interface{}{
		mk("wamid.HBgLMTIzNDU2Nzg5MBABABIYFjNBMDJENDlBQjA2QjA2QjA2QjA2QjA",
			"1234567890", "John Doe", "Hello! How are you?", base, models.StatusRead,
			[]models.StatusEntry{
				{Status: models.StatusSent, At: base},
				{Status: models.StatusDelivered, At: base.Add(2 * time.Second)},
				{Status: models.StatusRead, At: base.Add(3 * time.Second)},
			}),
		mk("wamid.HBgLMTIzNDU2Nzg5MBABABIYFjNBMDJENDlBQjA2QjA2QjA2QjA2QjB",
			"1234567890", "John Doe", "I'm doing great, thanks for asking!", base.Add(time.Second), models.StatusSent,
			[]models.StatusEntry{{Status: models.StatusSent, At: base.Add(time.Second)}}),
		mk("wamid.HBgLOTg3NjU0MzIxMBABABIYFjNBMDJENDlBQjA2QjA2QjA2QjA2QjA",
			"9876543210", "Jane Smith", "Hi there! Can we schedule a meeting?", base.Add(4*time.Second), models.StatusSent,
			[]models.StatusEntry{{Status: models.StatusSent, At: base.Add(4 * time.Second)}}),
		mk("wamid.HBgLOTg3NjU0MzIxMBABABIYFjNBMDJENDlBQjA2QjA2QjA2QjA2QjB",
			"9876543210", "Jane Smith", "Sure! How about tomorrow at 2 PM?", base.Add(5*time.Second), models.StatusSent,
			[]models.StatusEntry{{Status: models.StatusSent, At: base.Add(5 * time.Second)}}),
	}
}

// SeedIfEmpty inserts a couple of sample conversations when the store has
// no messages at all, so a fresh deployment renders something.
func (s *Store) SeedIfEmpty(ctx context.Context) error {
	count, err := s.CountMessages(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.WithField("messages", count).Debug("Store already populated, skipping seed")
		return nil
	}

	s.logger.Info("Store is empty, seeding with sample data")
	if _, err := s.col.InsertMany(ctx, sampleMessages()); err != nil {
		return fmt.Errorf("failed to seed sample data: %w", err)
	}

	return nil
}
