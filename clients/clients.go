package clients

import (
	"context"

	"github.com/samber/mo"

	"mcbackend/models"
)

// GatewayConfig is the explicit shape for one upstream gateway endpoint.
// Required vs optional is declared here instead of defensive field
// lookups at every call site.
type GatewayConfig struct {
	URL              string
	Token            string
	AllowInsecureTLS bool
}

// GatewayClient fetches session state from one upstream gateway.
// Failures surface as *gateway.GatewayError and are retryable on the
// next scheduled cycle, never fatal to a reconciliation pass.
type GatewayClient interface {
	ListActiveSessions(ctx context.Context, cfg GatewayConfig) ([]models.RemoteSession, error)
	PreviewSession(ctx context.Context, cfg GatewayConfig, sessionKey string) (mo.Option[models.RemoteSession], error)
}

// GatewayStream is one persistent event-stream connection to a gateway.
// Events arrive on Events until the connection drops or Close is called.
type GatewayStream interface {
	Events() <-chan models.SessionEvent
	Close() error
}

// GatewayStreamDialer opens gateway event streams. The reconciliation
// scheduler owns reconnect/backoff around it.
type GatewayStreamDialer interface {
	DialStream(ctx context.Context, cfg GatewayConfig) (GatewayStream, error)
}
