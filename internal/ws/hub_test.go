package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsview/internal/models"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.Subscribe))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, have %d", want, hub.Subscribers())
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, frame, err := conn.Read(ctx)
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(frame, &event))
	return event
}

func TestHubPublishReachesSubscriber(t *testing.T) {
	hub := NewHub(testLogger(), "*")
	defer hub.Close()

	conn := dialHub(t, hub)
	waitForSubscribers(t, hub, 1)

	hub.Publish(models.EventMessageNew, map[string]string{"waId": "919937320320"})

	event := readEvent(t, conn)
	assert.Equal(t, models.EventMessageNew, event.Event)

	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "919937320320", data["waId"])
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub(testLogger(), "*")
	defer hub.Close()

	first := dialHub(t, hub)
	second := dialHub(t, hub)
	waitForSubscribers(t, hub, 2)

	hub.Publish(models.EventMessageUpdate, map[string]interface{}{"_id": "abc"})

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, models.EventMessageUpdate, event.Event)
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(testLogger(), "*")
	defer hub.Close()

	conn := dialHub(t, hub)
	waitForSubscribers(t, hub, 1)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	waitForSubscribers(t, hub, 0)
}

func TestHubCloseRejectsNewSubscriptions(t *testing.T) {
	hub := NewHub(testLogger(), "*")

	conn := dialHub(t, hub)
	waitForSubscribers(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	// The closed hub drops the connection.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Error(t, err)
}

func TestHubDropsFramesForSlowClient(t *testing.T) {
	hub := NewHub(testLogger(), "*")

	slow := &client{send: make(chan []byte, 1)}
	hub.clients[slow] = struct{}{}

	hub.Publish(models.EventMessageNew, map[string]string{"waId": "1"})
	hub.Publish(models.EventMessageNew, map[string]string{"waId": "2"})

	// The second frame is dropped rather than blocking the publisher.
	assert.Len(t, slow.send, 1)
}

func TestHubPublishWithNoSubscribers(t *testing.T) {
	hub := NewHub(testLogger(), "*")
	defer hub.Close()

	// Must not panic or block.
	hub.Publish(models.EventMessageNew, map[string]string{"waId": "1"})
}
