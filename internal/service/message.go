package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/policy"
)

// SendMessage queues a message send to the endpoint and returns the task ID.
// The task result is the harvested log text.
func (s *Service) SendMessage(ctx context.Context, endpointID uuid.UUID, msg *domain.Message, user string) (string, error) {
	endpoint, err := s.requireEndpoint(ctx, endpointID, "send")
	if err != nil {
		return "", err
	}
	return s.tasks.Submit(ctx, "send-message", user, func(ctx context.Context, taskID string) (string, error) {
		return s.exchanger.Send(ctx, endpoint, msg, taskID, user)
	})
}

// ReceiveMessages queues a message receive from the endpoint and returns the
// task ID. The task result is the JSON-encoded list of newly seen messages,
// narrowed to responses for requestID when one is given.
func (s *Service) ReceiveMessages(ctx context.Context, endpointID uuid.UUID, requestID, user string) (string, error) {
	endpoint, err := s.requireEndpoint(ctx, endpointID, "receive")
	if err != nil {
		return "", err
	}
	return s.tasks.Submit(ctx, "receive-messages", user, func(ctx context.Context, taskID string) (string, error) {
		msgs, err := s.exchanger.Receive(ctx, endpoint, requestID, taskID, user)
		if err != nil {
			return "", err
		}
		if msgs == nil {
			msgs = []domain.Message{}
		}
		data, err := json.Marshal(msgs)
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		return string(data), nil
	})
}

// PollReceive queues a receive for every non-virtual endpoint. Invoked by the
// cron poller.
func (s *Service) PollReceive() {
	ctx := context.Background()
	endpoints, err := s.store.ListEndpoints(ctx)
	if err != nil {
		log.Printf("ERROR: poll failed to list endpoints: %v", err)
		return
	}
	for _, endpoint := range endpoints {
		if endpoint.IsVirtual {
			continue
		}
		if _, err := s.ReceiveMessages(ctx, endpoint.ID, "", ""); err != nil {
			log.Printf("ERROR: poll failed to queue receive for %s: %v", endpoint.ID, err)
		}
	}
}

func (s *Service) requireEndpoint(ctx context.Context, id uuid.UUID, operation string) (*domain.Endpoint, error) {
	endpoint, err := s.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}
	if endpoint == nil {
		return nil, fmt.Errorf("%w: endpoint %s", ErrNotFound, id)
	}
	if err := s.policy.Check(ctx, policy.Input{Operation: operation, EndpointID: id.String()}); err != nil {
		return nil, err
	}
	return endpoint, nil
}

// ListMessages lists recorded messages.
func (s *Service) ListMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	messages, err := s.store.ListMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// ListLogs lists execution logs, optionally filtered by task ID.
func (s *Service) ListLogs(ctx context.Context, taskID string, limit int) ([]domain.Log, error) {
	logs, err := s.store.ListLogs(ctx, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return logs, nil
}

// GetTask retrieves a task record.
func (s *Service) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks lists task records.
func (s *Service) ListTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	tasks, err := s.store.ListTasks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}
