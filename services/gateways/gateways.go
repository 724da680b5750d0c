package gateways

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"mcbackend/core"
	"mcbackend/models"
)

type GatewaysRepository interface {
	CreateGateway(ctx context.Context, gateway *models.Gateway) error
	GetGatewayByID(ctx context.Context, id string) (mo.Option[*models.Gateway], error)
	GetAllGateways(ctx context.Context) ([]*models.Gateway, error)
}

type GatewaysService struct {
	gatewaysRepo GatewaysRepository
}

func NewGatewaysService(repo GatewaysRepository) *GatewaysService {
	return &GatewaysService{gatewaysRepo: repo}
}

func (s *GatewaysService) GetGatewayByID(ctx context.Context, id string) (mo.Option[*models.Gateway], error) {
	log.Printf("📋 Starting to get gateway by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.Gateway](), fmt.Errorf("gateway ID must be a valid ULID")
	}

	maybeGateway, err := s.gatewaysRepo.GetGatewayByID(ctx, id)
	if err != nil {
		return mo.None[*models.Gateway](), fmt.Errorf("failed to get gateway: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved gateway by ID: %s", id)
	return maybeGateway, nil
}

func (s *GatewaysService) GetAllGateways(ctx context.Context) ([]*models.Gateway, error) {
	log.Printf("📋 Starting to get all gateways")
	gateways, err := s.gatewaysRepo.GetAllGateways(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all gateways: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d gateways", len(gateways))
	return gateways, nil
}
