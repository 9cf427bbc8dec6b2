package service

import (
	"context"
	"sync"
	"time"

	"whatsview/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertInsertOnly(ctx context.Context, msg *models.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockStore) ApplyStatus(ctx context.Context, externalID string, status models.MessageStatus, at time.Time) (int64, error) {
	args := m.Called(ctx, externalID, status, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) SetContactName(ctx context.Context, waID, name string) error {
	args := m.Called(ctx, waID, name)
	return args.Error(0)
}

func (m *mockStore) ListByConversation(ctx context.Context, waID string) ([]models.Message, error) {
	args := m.Called(ctx, waID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *mockStore) AggregateConversationSummaries(ctx context.Context) ([]models.ConversationSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationSummary), args.Error(1)
}

type publishedEvent struct {
	event   string
	payload interface{}
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{event: event, payload: payload})
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}
