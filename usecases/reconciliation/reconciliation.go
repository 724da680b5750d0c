package reconciliation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"mcbackend/clients"
	"mcbackend/config"
	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services"
)

// ReconciliationScheduler owns the two continuous liveness inputs: the
// periodic gateway poll and one persistent event stream per gateway.
// Both feed the same LivenessService, which arbitrates between them.
//
// Each instance carries its own goroutines and counters. Start/Stop are
// explicit so tests and shutdown control the lifecycle directly.
type ReconciliationScheduler struct {
	gatewaysService services.GatewaysService
	agentsService   services.AgentsService
	livenessService services.LivenessService
	gatewayClient   clients.GatewayClient
	streamDialer    clients.GatewayStreamDialer
	cfg             config.GatewayPollConfig

	pollErrors   atomic.Int64
	streamErrors atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	streams map[string]context.CancelFunc
}

func NewReconciliationScheduler(
	gatewaysService services.GatewaysService,
	agentsService services.AgentsService,
	livenessService services.LivenessService,
	gatewayClient clients.GatewayClient,
	streamDialer clients.GatewayStreamDialer,
	cfg config.GatewayPollConfig,
) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		gatewaysService: gatewaysService,
		agentsService:   agentsService,
		livenessService: livenessService,
		gatewayClient:   gatewayClient,
		streamDialer:    streamDialer,
		cfg:             cfg,
		streams:         make(map[string]context.CancelFunc),
	}
}

// Start launches the poll loop. Stream listeners are started lazily as
// gateways are discovered on each poll tick. Calling Start twice is an
// error.
func (s *ReconciliationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("reconciliation scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.pollLoop(runCtx)

	log.Printf("🚀 Reconciliation scheduler started (poll every %s)", s.cfg.PollInterval)
	return nil
}

// Stop cancels all loops and waits for them to exit.
func (s *ReconciliationScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	log.Printf("🛑 Reconciliation scheduler stopped")
}

// PollErrorCount returns how many poll cycles failed since start.
func (s *ReconciliationScheduler) PollErrorCount() int64 {
	return s.pollErrors.Load()
}

// StreamErrorCount returns how many stream connections failed since start.
func (s *ReconciliationScheduler) StreamErrorCount() int64 {
	return s.streamErrors.Load()
}

// SyncGateway runs one on-demand poll of a single gateway, for the
// manual sync endpoint.
func (s *ReconciliationScheduler) SyncGateway(ctx context.Context, gatewayID string) error {
	maybeGateway, err := s.gatewaysService.GetGatewayByID(ctx, gatewayID)
	if err != nil {
		return err
	}
	gateway, ok := maybeGateway.Get()
	if !ok {
		return fmt.Errorf("gateway %s: %w", gatewayID, core.ErrNotFound)
	}
	if !gateway.HasUsableURL() {
		return fmt.Errorf("gateway %s has no pollable URL", gateway.Name)
	}
	return s.pollGateway(ctx, gateway)
}

// SyncAll runs one on-demand reconciliation pass over every gateway.
// Unlike the periodic loop it does not manage stream listeners, so it is
// safe to run on a request context.
func (s *ReconciliationScheduler) SyncAll(ctx context.Context) error {
	s.runPollCycle(ctx, false)
	return nil
}

func (s *ReconciliationScheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	// First pass immediately so a restart converges without waiting a
	// full interval
	s.runPollCycle(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPollCycle(ctx, true)
		}
	}
}

// runPollCycle executes one full reconciliation pass: poll every usable
// gateway, fold the snapshots in, then sweep for timeouts. A failing
// gateway is counted and skipped, never fatal.
func (s *ReconciliationScheduler) runPollCycle(ctx context.Context, manageStreams bool) {
	gateways, err := s.gatewaysService.GetAllGateways(ctx)
	if err != nil {
		log.Printf("❌ Poll cycle failed to list gateways: %v", err)
		s.pollErrors.Add(1)
		return
	}

	for _, gateway := range gateways {
		if !gateway.HasUsableURL() {
			continue
		}
		if manageStreams {
			s.ensureStream(ctx, gateway)
		}

		if err := s.pollGateway(ctx, gateway); err != nil {
			log.Printf("⚠️ Poll failed for gateway %s: %v", gateway.Name, err)
			s.pollErrors.Add(1)
		}
	}

	if _, err := s.livenessService.ReconcileAllByTimeout(ctx, time.Now().UTC(), s.cfg.OfflineAfter); err != nil {
		log.Printf("❌ Timeout sweep failed: %v", err)
		s.pollErrors.Add(1)
	}
}

func (s *ReconciliationScheduler) pollGateway(ctx context.Context, gateway *models.Gateway) error {
	cfg := gatewayConfig(gateway)

	sessions, err := s.gatewayClient.ListActiveSessions(ctx, cfg)
	if err != nil {
		return err
	}

	activeByKey := make(map[string]models.RemoteSession, len(sessions))
	for _, session := range sessions {
		if session.Active {
			activeByKey[session.Key] = session
		}
	}

	agents, err := s.agentsService.GetAgentsByGatewayID(ctx, gateway.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, agent := range agents {
		if _, err := s.livenessService.ApplyPollSnapshot(ctx, agent, activeByKey, now, s.cfg.OfflineAfter); err != nil {
			log.Printf("⚠️ Snapshot apply failed for agent %s: %v", agent.ID, err)
		}
	}

	return nil
}

// ensureStream starts the persistent event listener for a gateway if one
// is not already running.
func (s *ReconciliationScheduler) ensureStream(ctx context.Context, gateway *models.Gateway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.streams[gateway.ID]; running {
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s.streams[gateway.ID] = cancel

	s.wg.Add(1)
	go func(gw models.Gateway) {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.streams, gw.ID)
			s.mu.Unlock()
		}()
		s.streamLoop(streamCtx, &gw)
	}(*gateway)
}

// streamLoop keeps one gateway stream alive with exponential backoff.
// The delay doubles from the base to the ceiling and resets after every
// successful connect.
func (s *ReconciliationScheduler) streamLoop(ctx context.Context, gateway *models.Gateway) {
	backoff := s.cfg.StreamReconnectBase

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := s.streamDialer.DialStream(ctx, gatewayConfig(gateway))
		if err != nil {
			s.streamErrors.Add(1)
			log.Printf("⚠️ Stream connect failed for gateway %s, retrying in %s: %v", gateway.Name, backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.cfg.StreamReconnectMax {
				backoff = s.cfg.StreamReconnectMax
			}
			continue
		}

		log.Printf("✅ Stream connected to gateway %s", gateway.Name)
		backoff = s.cfg.StreamReconnectBase
		s.consumeStream(ctx, gateway, stream)
	}
}

// consumeStream drains events until the stream closes or the context is
// cancelled.
func (s *ReconciliationScheduler) consumeStream(
	ctx context.Context,
	gateway *models.Gateway,
	stream clients.GatewayStream,
) {
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream.Events():
			if !ok {
				s.streamErrors.Add(1)
				log.Printf("⚠️ Stream closed for gateway %s, will reconnect", gateway.Name)
				return
			}

			kind, ok := lifecycleKindFor(event.EventType)
			if !ok {
				continue
			}
			if _, err := s.livenessService.ApplyLifecycleEvent(ctx, event.SessionKey, kind, event.ObservedAt); err != nil {
				log.Printf("⚠️ Failed to apply %s event from gateway %s: %v", event.EventType, gateway.Name, err)
			}
		}
	}
}

// lifecycleKindFor maps a wire event type to a lifecycle kind. Presence
// pings carry no lifecycle information and are dropped.
func lifecycleKindFor(eventType models.SessionEventType) (models.LifecycleKind, bool) {
	switch eventType {
	case models.SessionEventStarted:
		return models.LifecycleStarted, true
	case models.SessionEventEnded:
		return models.LifecycleEnded, true
	case models.SessionEventHeartbeat:
		return models.LifecycleHeartbeat, true
	default:
		return "", false
	}
}

func gatewayConfig(gateway *models.Gateway) clients.GatewayConfig {
	cfg := clients.GatewayConfig{AllowInsecureTLS: gateway.AllowInsecureTLS}
	if gateway.URL != nil {
		cfg.URL = *gateway.URL
	}
	if gateway.Token != nil {
		cfg.Token = *gateway.Token
	}
	return cfg
}
