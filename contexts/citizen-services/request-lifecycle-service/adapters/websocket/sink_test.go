package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/notifications"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
)

func dial(t *testing.T, server *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func TestSinkStreamsNotifications(t *testing.T) {
	dispatcher := notifications.NewDispatcher(4, nil, nil)
	server := httptest.NewServer(NewSink(dispatcher, nil, nil))
	defer server.Close()

	conn, _, err := dial(t, server, "")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return dispatcher.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	dispatcher.Publish(notifications.LifecycleNotification{
		RequestID:  "req-1",
		Radicado:   "PQRSD-2025-000001",
		EventType:  entities.EventAssigned,
		State:      entities.StateAssigned,
		Sequence:   2,
		OccurredAt: time.Date(2025, time.April, 10, 15, 0, 0, 0, time.UTC),
		FromActor:  entities.Actor{ID: "coord-1", Role: entities.RoleAssigner},
		ToActor:    &entities.Actor{ID: "resp-7", Role: entities.RoleResponsible},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "request_assigned", msg.Type)
	assert.Equal(t, "PQRSD-2025-000001", msg.Radicado)
	assert.Equal(t, "assigned", msg.State)
	assert.Equal(t, int64(2), msg.Sequence)
	assert.Equal(t, "2025-04-10T15:00:00Z", msg.OccurredAt)
	assert.Equal(t, "resp-7", msg.ToActorID)
}

func TestSinkUnsubscribesOnDisconnect(t *testing.T) {
	dispatcher := notifications.NewDispatcher(4, nil, nil)
	server := httptest.NewServer(NewSink(dispatcher, nil, nil))
	defer server.Close()

	conn, _, err := dial(t, server, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return dispatcher.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return dispatcher.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSinkRejectsUnknownOrigin(t *testing.T) {
	dispatcher := notifications.NewDispatcher(4, nil, nil)
	server := httptest.NewServer(NewSink(dispatcher, []string{"https://pqrsd.example.gov.co"}, nil))
	defer server.Close()

	_, resp, err := dial(t, server, "https://evil.example.com")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dial(t, server, "https://pqrsd.example.gov.co")
	require.NoError(t, err)
	_ = conn.Close()
}
