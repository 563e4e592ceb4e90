// Package exchange sends and receives messages through an endpoint's
// originating package.
//
// Both directions stage a working copy of the package, write the endpoint's
// stored configuration and protocol state as message_config.json, and invoke
// the message_entry target. This package alone records Message rows, which
// centralizes deduplication: the durable insert on the message's own ID is
// the single source of truth, shared between send and receive.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/unr-deaddrop/server/internal/config"
	"github.com/unr-deaddrop/server/internal/core/contract"
	"github.com/unr-deaddrop/server/internal/core/runner"
	"github.com/unr-deaddrop/server/internal/core/staging"
	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/store"
)

// ErrVirtualEndpoint is returned when an exchange is attempted against an
// endpoint with no agent package behind it.
var ErrVirtualEndpoint = errors.New("endpoint has no agent package")

// Exchanger performs message exchanges.
type Exchanger struct {
	cfg    *config.Config
	store  store.Store
	runner *runner.Runner
}

// New creates an exchanger.
func New(cfg *config.Config, st store.Store, r *runner.Runner) *Exchanger {
	return &Exchanger{cfg: cfg, store: st, runner: r}
}

// agentCfgSections is the slice of an endpoint's stored configuration the
// exchange input is assembled from.
type agentCfgSections struct {
	AgentConfig    json.RawMessage `json:"agent_config"`
	ProtocolConfig json.RawMessage `json:"protocol_config"`
}

// Send sends the message to an endpoint and returns the harvested log text.
//
// The outgoing message is durably recorded before invocation. Re-sending an
// identical message ID indicates a caller bug and fails loudly; a message
// must be re-sent under a new ID.
func (e *Exchanger) Send(ctx context.Context, endpoint *domain.Endpoint, msg *domain.Message, taskID, user string) (string, error) {
	if err := e.store.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrDuplicateMessage) {
			return "", fmt.Errorf("message %s was already sent; re-send with a new ID: %w", msg.MessageID, err)
		}
		return "", fmt.Errorf("failed to record outgoing message: %w", err)
	}

	work, err := e.invoke(ctx, contract.ActionSend, endpoint, msg, "")
	if err != nil {
		return "", err
	}
	defer work.Release()

	return e.harvest(ctx, work.Path(), endpoint, taskID, user)
}

// Receive pulls pending messages from an endpoint. Each harvested message is
// durably recorded by its own ID; duplicates are dropped and noted, never
// overwritten. When requestID is set the returned list is narrowed to command
// responses correlating to it, while every non-duplicate message observed in
// the batch is still recorded.
func (e *Exchanger) Receive(ctx context.Context, endpoint *domain.Endpoint, requestID, taskID, user string) ([]domain.Message, error) {
	work, err := e.invoke(ctx, contract.ActionReceive, endpoint, nil, requestID)
	if err != nil {
		return nil, err
	}
	defer work.Release()

	if _, err := e.harvest(ctx, work.Path(), endpoint, taskID, user); err != nil {
		return nil, err
	}

	batch, err := contract.ReadMessages(work.Path())
	if err != nil {
		return nil, err
	}

	var kept []domain.Message
	for _, msg := range batch {
		if err := e.store.CreateMessage(ctx, &msg); err != nil {
			if errors.Is(err, store.ErrDuplicateMessage) {
				log.Printf("WARN: received message %s again, assuming duplicate and dropping", msg.MessageID)
				continue
			}
			return nil, fmt.Errorf("failed to record message %s: %w", msg.MessageID, err)
		}
		kept = append(kept, msg)
	}

	if requestID == "" {
		return kept, nil
	}
	var correlated []domain.Message
	for _, msg := range kept {
		if msg.CorrelatesTo(requestID) {
			correlated = append(correlated, msg)
		}
	}
	return correlated, nil
}

// invoke stages the endpoint's package, writes the exchange inputs and runs
// the message target. The working directory is handed back so the caller can
// harvest direction-specific outputs before releasing it.
func (e *Exchanger) invoke(ctx context.Context, action contract.Action, endpoint *domain.Endpoint, msg *domain.Message, listenForID string) (*staging.WorkDir, error) {
	if endpoint.AgentID == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVirtualEndpoint, endpoint.ID)
	}
	agent, err := e.store.GetAgent(ctx, endpoint.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %d not found for endpoint %s", endpoint.AgentID, endpoint.ID)
	}

	work, err := staging.Stage(agent.PackagePath)
	if err != nil {
		return nil, err
	}
	log.Printf("using %s for %s exchange with %s", work.Path(), action, endpoint.ID)

	release := true
	defer func() {
		if release {
			work.Release()
		}
	}()

	var sections agentCfgSections
	if len(endpoint.AgentCfg) > 0 {
		if err := json.Unmarshal(endpoint.AgentCfg, &sections); err != nil {
			return nil, fmt.Errorf("failed to parse stored agent configuration: %w", err)
		}
	}

	directive := contract.ServerDirective{
		Action:      action,
		ListenForID: listenForID,
	}
	if action == contract.ActionSend {
		directive.ServerPrivateKey = e.cfg.ServerPrivateKey
	}

	cfg := &contract.MessagingConfig{
		AgentConfig:    sections.AgentConfig,
		ProtocolConfig: sections.ProtocolConfig,
		ProtocolState:  endpoint.ProtocolState,
		Endpoint: contract.EndpointInfo{
			Name:     endpoint.Name,
			Hostname: endpoint.Hostname,
			Address:  endpoint.Address,
		},
		Server: directive,
	}
	if err := contract.WriteMessagingConfig(work.Path(), cfg); err != nil {
		return nil, err
	}

	if msg != nil {
		if err := contract.WriteMessage(work.Path(), msg); err != nil {
			return nil, err
		}
	}

	if _, err := e.runner.Run(ctx, work.Path(), runner.TargetMessageEntry); err != nil {
		return nil, err
	}

	release = false
	return work, nil
}

// harvest saves the execution log and applies any protocol state update the
// package left behind. Missing state means "no change"; a missing log is a
// contract violation.
func (e *Exchanger) harvest(ctx context.Context, workDir string, endpoint *domain.Endpoint, taskID, user string) (string, error) {
	logText, err := contract.ReadLog(workDir, contract.MessageLogFile)
	if err != nil {
		return "", err
	}
	sourceID := endpoint.ID
	if err := e.store.CreateLog(ctx, &domain.Log{
		SourceID:  &sourceID,
		User:      user,
		TaskID:    taskID,
		Category:  domain.LogCategoryMessaging,
		Level:     domain.LogLevelInfo,
		Timestamp: time.Now(),
		Data:      logText,
	}); err != nil {
		return "", fmt.Errorf("failed to save exchange log: %w", err)
	}

	state, err := contract.ReadProtocolState(workDir)
	if err != nil {
		return "", err
	}
	if state != nil {
		endpoint.ProtocolState = state
		if err := e.store.UpdateEndpointProtocolState(ctx, endpoint.ID, state); err != nil {
			return "", fmt.Errorf("failed to persist protocol state: %w", err)
		}
	}

	return logText, nil
}
