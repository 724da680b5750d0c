package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcbackend/clients"
	"mcbackend/models"
)

// fakeGatewayServer upgrades the connection, consumes the connect
// handshake, then writes the given wire messages and holds the
// connection open until the client hangs up.
func fakeGatewayServer(t *testing.T, messages []wireMessage) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var connect wireMessage
		require.NoError(t, conn.ReadJSON(&connect))
		assert.Equal(t, "connect", connect.Method)

		for _, msg := range messages {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		// Block until the client closes its side
		var discard wireMessage
		_ = conn.ReadJSON(&discard)
	}))
}

func eventMessage(eventType, sessionKey string) wireMessage {
	return wireMessage{
		Type:    "event",
		Event:   eventType,
		Payload: []byte(`{"sessionKey":"` + sessionKey + `"}`),
	}
}

func TestDialStream(t *testing.T) {
	t.Run("delivers typed session events", func(t *testing.T) {
		server := fakeGatewayServer(t, []wireMessage{
			{Type: "res", ID: "ignored"},
			eventMessage("session.started", "sess-1"),
			eventMessage("not.a.session.event", "sess-1"),
			eventMessage("agent.heartbeat", "sess-1"),
		})
		defer server.Close()

		dialer := NewWebsocketStreamDialer()
		stream, err := dialer.DialStream(context.Background(), clients.GatewayConfig{URL: server.URL})
		require.NoError(t, err)
		defer stream.Close()

		first := receiveEvent(t, stream)
		assert.Equal(t, models.SessionEventStarted, first.EventType)
		assert.Equal(t, "sess-1", first.SessionKey)

		// The unrecognized event type is filtered out
		second := receiveEvent(t, stream)
		assert.Equal(t, models.SessionEventHeartbeat, second.EventType)
	})

	t.Run("close unblocks a backed up stream", func(t *testing.T) {
		// More events than the channel buffers, and no reader
		messages := make([]wireMessage, 0, 40)
		for i := 0; i < 40; i++ {
			messages = append(messages, eventMessage("agent.heartbeat", "sess-1"))
		}
		server := fakeGatewayServer(t, messages)
		defer server.Close()

		dialer := NewWebsocketStreamDialer()
		stream, err := dialer.DialStream(context.Background(), clients.GatewayConfig{URL: server.URL})
		require.NoError(t, err)

		// Let the read loop fill the buffer and block on the next send
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, stream.Close())

		// The events channel must close even though nothing drained it
		// before Close, otherwise the read loop is stuck forever
		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-stream.Events():
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("stream read loop did not shut down after Close")
			}
		}
	})

	t.Run("unreachable gateway is a dial error", func(t *testing.T) {
		dialer := NewWebsocketStreamDialer()
		_, err := dialer.DialStream(context.Background(),
			clients.GatewayConfig{URL: "http://127.0.0.1:1"})
		require.Error(t, err)
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "dial", gwErr.Op)
	})
}

func receiveEvent(t *testing.T, stream clients.GatewayStream) models.SessionEvent {
	t.Helper()
	select {
	case event, ok := <-stream.Events():
		require.True(t, ok, "stream closed before delivering an event")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a stream event")
		return models.SessionEvent{}
	}
}
