package service

import (
	"context"
	"fmt"
	"time"

	"whatsview/internal/constants"
	"whatsview/internal/models"

	"github.com/sirupsen/logrus"
)

// ChatService is the read side plus the local send path consumed by the
// HTTP layer.
type ChatService interface {
	Send(ctx context.Context, waID, text string) (*models.Message, error)
	Conversations(ctx context.Context) ([]models.ConversationSummary, error)
	History(ctx context.Context, waID string) ([]models.Message, error)
}

type chatService struct {
	store     MessageStore
	publisher Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewChatService(store MessageStore, publisher Publisher, logger *logrus.Logger) ChatService {
	return &chatService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Send creates a locally authored outbound text message and announces it
// to subscribers. The announcement is best-effort: the message is already
// durable by the time it is published.
func (s *chatService) Send(ctx context.Context, waID, text string) (*models.Message, error) {
	if waID == "" || text == "" {
		return nil, fmt.Errorf("waId and text are required")
	}

	now := s.now().UTC()
	msg := &models.Message{
		WaID:      waID,
		Direction: models.DirectionOutbound,
		Kind:      models.KindText,
		Text:      &text,
		Timestamp: now,
		Status:    models.StatusSent,
		StatusHistory: []models.StatusEntry{
			{Status: models.StatusSent, At: now},
		},
		From:      constants.BusinessSender,
		To:        waID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	stored, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to store outbound message: %w", err)
	}

	s.publisher.Publish(models.EventMessageNew, stored)

	s.logger.WithFields(logrus.Fields{
		LogFieldWaID:  waID,
		LogFieldEvent: models.EventMessageNew,
	}).Info("Outbound message created")

	return stored, nil
}

func (s *chatService) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return s.store.AggregateConversationSummaries(ctx)
}

func (s *chatService) History(ctx context.Context, waID string) ([]models.Message, error) {
	if waID == "" {
		return nil, fmt.Errorf("wa_id is required")
	}
	return s.store.ListByConversation(ctx, waID)
}
