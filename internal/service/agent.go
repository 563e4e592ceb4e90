package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/unr-deaddrop/server/internal/core/install"
	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/policy"
)

// InstallAgent queues an agent package installation and returns the task ID.
func (s *Service) InstallAgent(ctx context.Context, bundlePath, user string) (string, error) {
	if err := s.policy.Check(ctx, policy.Input{Operation: "install"}); err != nil {
		return "", err
	}
	return s.tasks.Submit(ctx, "install-agent", user, func(ctx context.Context, taskID string) (string, error) {
		agent, err := s.installer.InstallAgent(ctx, bundlePath)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("installed %s", agent), nil
	})
}

// InstallProtocol queues a protocol package installation.
func (s *Service) InstallProtocol(ctx context.Context, bundlePath, user string) (string, error) {
	if err := s.policy.Check(ctx, policy.Input{Operation: "install"}); err != nil {
		return "", err
	}
	return s.tasks.Submit(ctx, "install-protocol", user, func(ctx context.Context, taskID string) (string, error) {
		protocol, err := s.installer.InstallProtocol(ctx, bundlePath)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("installed %s", protocol), nil
	})
}

// ListAgents lists installed agents.
func (s *Service) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// GetAgent retrieves an installed agent.
func (s *Service) GetAgent(ctx context.Context, id int64) (*domain.Agent, error) {
	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// DeleteAgent deletes an agent with no endpoints, removing its stored bundle
// and unpacked tree. Agents referenced by endpoints cannot be deleted.
func (s *Service) DeleteAgent(ctx context.Context, id int64) error {
	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil
	}
	count, err := s.store.AgentEndpointCount(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count endpoints: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s has %d endpoints", install.ErrPackageInUse, agent, count)
	}
	if err := s.store.DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	install.RemovePackageFiles(s.config, agent.PackageFile, agent.PackagePath)
	return nil
}

// ListProtocols lists installed protocols.
func (s *Service) ListProtocols(ctx context.Context) ([]domain.Protocol, error) {
	protocols, err := s.store.ListProtocols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	return protocols, nil
}

// AgentMetadata returns the agent descriptor from agent.json.
func (s *Service) AgentMetadata(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.packageJSON(ctx, id, "agent.json")
}

// AgentCommands returns the command catalog from commands.json.
func (s *Service) AgentCommands(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.packageJSON(ctx, id, "commands.json")
}

// AgentProtocols returns the protocol catalog from protocols.json.
func (s *Service) AgentProtocols(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.packageJSON(ctx, id, "protocols.json")
}

// packageJSON lazily reads a metadata document from an agent's unpacked
// package directory. Install guarantees these files exist.
func (s *Service) packageJSON(ctx context.Context, id int64, name string) (json.RawMessage, error) {
	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(agent.PackagePath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s for %s: %w", name, agent, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s for %s is not valid JSON", name, agent)
	}
	return data, nil
}
