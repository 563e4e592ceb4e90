package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unr-deaddrop/server/internal/core/payload"
	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/policy"
)

// BuildPayload queues a payload build for the given agent and returns the
// task ID. The resulting endpoint ID is minted by the build itself and shows
// up in the task result.
func (s *Service) BuildPayload(ctx context.Context, agentID int64, buildArgs json.RawMessage, fields payload.Fields, user string) (string, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return "", fmt.Errorf("%w: agent %d", ErrNotFound, agentID)
	}
	if err := s.policy.Check(ctx, policy.Input{
		Operation:    "build_payload",
		AgentName:    agent.Name,
		AgentVersion: agent.Version,
	}); err != nil {
		return "", err
	}

	return s.tasks.Submit(ctx, "build-payload", user, func(ctx context.Context, taskID string) (string, error) {
		endpoint, err := s.builder.Build(ctx, agent, buildArgs, taskID, user, fields)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("built endpoint %s from %s", endpoint.ID, agent), nil
	})
}

// CreateVirtualEndpoint registers an endpoint with no agent behind it. The
// server mints the ID since there is no build to do so.
func (s *Service) CreateVirtualEndpoint(ctx context.Context, fields payload.Fields) (*domain.Endpoint, error) {
	endpoint := &domain.Endpoint{
		ID:        uuid.New(),
		Name:      fields.Name,
		Hostname:  fields.Hostname,
		Address:   fields.Address,
		IsVirtual: true,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("failed to persist endpoint: %w", err)
	}
	return endpoint, nil
}

// ListEndpoints lists all endpoints.
func (s *Service) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	endpoints, err := s.store.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	return endpoints, nil
}

// GetEndpoint retrieves an endpoint.
func (s *Service) GetEndpoint(ctx context.Context, id uuid.UUID) (*domain.Endpoint, error) {
	endpoint, err := s.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}
	return endpoint, nil
}

// DeleteEndpoint deletes an endpoint. Its agent package stays installed.
func (s *Service) DeleteEndpoint(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteEndpoint(ctx, id); err != nil {
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	return nil
}
