package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/samber/mo"

	"mcbackend/clients"
	"mcbackend/models"
)

// GatewayError is the typed failure for any network/protocol problem
// talking to an upstream gateway. The core treats it as retryable on
// the next cycle.
type GatewayError struct {
	GatewayURL string
	Op         string
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.GatewayURL, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError checks whether an error is a gateway unreachable/protocol error
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

type rpcRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type rpcResponse struct {
	OK     bool            `json:"ok"`
	Error  *string         `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

type sessionPayload struct {
	Key          string  `json:"key"`
	Label        *string `json:"label,omitempty"`
	Active       *bool   `json:"active,omitempty"`
	LastActivity *string `json:"lastActivity,omitempty"`
}

// HTTPGatewayClient talks to the gateway's RPC endpoint over HTTP with
// an explicit sub-10-second timeout so one unreachable gateway cannot
// stall a shared poll tick.
type HTTPGatewayClient struct {
	callTimeout time.Duration
}

func NewHTTPGatewayClient(callTimeout time.Duration) *HTTPGatewayClient {
	return &HTTPGatewayClient{callTimeout: callTimeout}
}

func (c *HTTPGatewayClient) ListActiveSessions(
	ctx context.Context,
	cfg clients.GatewayConfig,
) ([]models.RemoteSession, error) {
	result, err := c.call(ctx, cfg, "sessions.list", map[string]any{})
	if err != nil {
		return nil, err
	}

	var payloads []sessionPayload
	if err := json.Unmarshal(result, &payloads); err != nil {
		// Non-list payloads from older gateways are treated as empty
		log.Printf("⚠️ Gateway %s returned a non-list sessions payload, treating as empty", cfg.URL)
		return nil, nil
	}

	sessions := make([]models.RemoteSession, 0, len(payloads))
	for _, p := range payloads {
		if p.Key == "" {
			continue
		}
		sessions = append(sessions, toRemoteSession(p))
	}

	return sessions, nil
}

func (c *HTTPGatewayClient) PreviewSession(
	ctx context.Context,
	cfg clients.GatewayConfig,
	sessionKey string,
) (mo.Option[models.RemoteSession], error) {
	result, err := c.call(ctx, cfg, "sessions.preview", map[string]any{"key": sessionKey})
	if err != nil {
		return mo.None[models.RemoteSession](), err
	}

	var payload sessionPayload
	if err := json.Unmarshal(result, &payload); err != nil || payload.Key == "" {
		return mo.None[models.RemoteSession](), nil
	}

	return mo.Some(toRemoteSession(payload)), nil
}

func (c *HTTPGatewayClient) call(
	ctx context.Context,
	cfg clients.GatewayConfig,
	method string,
	params map[string]any,
) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{GatewayURL: cfg.URL, Op: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := c.httpClient(cfg).Do(req)
	if err != nil {
		return nil, &GatewayError{GatewayURL: cfg.URL, Op: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{
			GatewayURL: cfg.URL,
			Op:         method,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, &GatewayError{GatewayURL: cfg.URL, Op: method, Err: err}
	}
	if !rpcResp.OK {
		errMsg := "gateway reported failure"
		if rpcResp.Error != nil {
			errMsg = *rpcResp.Error
		}
		return nil, &GatewayError{GatewayURL: cfg.URL, Op: method, Err: fmt.Errorf("%s", errMsg)}
	}

	return rpcResp.Result, nil
}

func (c *HTTPGatewayClient) httpClient(cfg clients.GatewayConfig) *http.Client {
	client := &http.Client{Timeout: c.callTimeout}
	if cfg.AllowInsecureTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

func toRemoteSession(p sessionPayload) models.RemoteSession {
	session := models.RemoteSession{
		Key:    p.Key,
		Label:  p.Label,
		Active: true,
	}
	if p.Active != nil {
		session.Active = *p.Active
	}
	if p.LastActivity != nil {
		if t, err := time.Parse(time.RFC3339, *p.LastActivity); err == nil {
			session.LastActivity = &t
		}
	}
	return session
}
