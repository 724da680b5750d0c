package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mcbackend/clients"
	"mcbackend/core"
	"mcbackend/models"
)

const (
	protocolVersion = 3
	clientID        = "mcbackend-event-listener"
	clientVersion   = "1.0.0"
)

var operatorScopes = []string{"sessions.read", "events.subscribe"}

type connectParams struct {
	MinProtocol int            `json:"minProtocol"`
	MaxProtocol int            `json:"maxProtocol"`
	Role        string         `json:"role"`
	Scopes      []string       `json:"scopes"`
	Client      map[string]any `json:"client"`
	Auth        map[string]any `json:"auth,omitempty"`
}

type wireMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type eventPayload struct {
	SessionKey string  `json:"sessionKey"`
	AgentName  *string `json:"agentName,omitempty"`
	Timestamp  *string `json:"timestamp,omitempty"`
}

// WebsocketStreamDialer opens persistent event streams against gateway
// websocket endpoints.
type WebsocketStreamDialer struct{}

func NewWebsocketStreamDialer() *WebsocketStreamDialer {
	return &WebsocketStreamDialer{}
}

type websocketStream struct {
	conn      *websocket.Conn
	events    chan models.SessionEvent
	done      chan struct{}
	closeOnce sync.Once
}

// DialStream connects, performs the protocol/capability handshake, and
// starts pumping typed session events until the connection drops.
func (d *WebsocketStreamDialer) DialStream(
	ctx context.Context,
	cfg clients.GatewayConfig,
) (clients.GatewayStream, error) {
	wsURL, err := toWebsocketURL(cfg.URL)
	if err != nil {
		return nil, &GatewayError{GatewayURL: cfg.URL, Op: "dial", Err: err}
	}

	dialer := *websocket.DefaultDialer
	if cfg.AllowInsecureTLS {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, &GatewayError{GatewayURL: cfg.URL, Op: "dial", Err: err}
	}

	params := connectParams{
		MinProtocol: protocolVersion,
		MaxProtocol: protocolVersion,
		Role:        "operator",
		Scopes:      operatorScopes,
		Client: map[string]any{
			"id":      clientID,
			"version": clientVersion,
			"mode":    "backend",
		},
	}
	if cfg.Token != "" {
		params.Auth = map[string]any{"token": cfg.Token}
	}

	connectMsg := wireMessage{
		Type:   "req",
		ID:     core.NewID("req"),
		Method: "connect",
		Params: params,
	}
	if err := conn.WriteJSON(connectMsg); err != nil {
		conn.Close()
		return nil, &GatewayError{GatewayURL: cfg.URL, Op: "connect", Err: err}
	}

	stream := &websocketStream{
		conn:   conn,
		events: make(chan models.SessionEvent, 16),
		done:   make(chan struct{}),
	}
	go stream.readLoop(cfg.URL)

	return stream, nil
}

func (s *websocketStream) Events() <-chan models.SessionEvent {
	return s.events
}

// Close unblocks the read loop even when nobody is draining Events.
func (s *websocketStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

func (s *websocketStream) readLoop(gatewayURL string) {
	defer close(s.events)

	for {
		var msg wireMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			log.Printf("❌ Gateway stream read error for %s: %v", gatewayURL, err)
			return
		}

		if msg.Type != "event" {
			continue
		}

		eventType := models.SessionEventType(msg.Event)
		switch eventType {
		case models.SessionEventStarted, models.SessionEventEnded, models.SessionEventHeartbeat, models.SessionEventPresence:
		default:
			continue
		}

		var payload eventPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				log.Printf("⚠️ Gateway stream message with malformed payload from %s: %v", gatewayURL, err)
				continue
			}
		}

		event := models.SessionEvent{
			EventType:  eventType,
			SessionKey: payload.SessionKey,
			AgentName:  payload.AgentName,
			ObservedAt: time.Now().UTC(),
		}
		if payload.Timestamp != nil {
			// Callers must receive true event-observed time when the
			// gateway provides one
			if t, err := time.Parse(time.RFC3339, *payload.Timestamp); err == nil {
				event.ObservedAt = t
			}
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func toWebsocketURL(gatewayURL string) (string, error) {
	parsed, err := url.Parse(gatewayURL)
	if err != nil {
		return "", err
	}
	switch {
	case strings.EqualFold(parsed.Scheme, "https"):
		parsed.Scheme = "wss"
	case strings.EqualFold(parsed.Scheme, "http"):
		parsed.Scheme = "ws"
	}
	return parsed.String(), nil
}
