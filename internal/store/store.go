// Package store provides persistence for the control server.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/unr-deaddrop/server/internal/domain"
)

// ErrDuplicateMessage is returned when a message with the same ID has already
// been durably recorded. The durable insert is the single source of truth for
// deduplication; there is no separate seen-set.
var ErrDuplicateMessage = errors.New("message ID already recorded")

// Store is the persistence interface used by the service layer and the
// orchestration core.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, id int64) (*domain.Agent, error)
	GetAgentByNameVersion(ctx context.Context, name, version string) (*domain.Agent, error)
	GetAgentByPackagePath(ctx context.Context, packagePath string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	DeleteAgent(ctx context.Context, id int64) error
	AgentEndpointCount(ctx context.Context, agentID int64) (int, error)

	// Protocols
	CreateProtocol(ctx context.Context, protocol *domain.Protocol) error
	GetProtocolByNameVersion(ctx context.Context, name, version string) (*domain.Protocol, error)
	GetProtocolByPackagePath(ctx context.Context, packagePath string) (*domain.Protocol, error)
	ListProtocols(ctx context.Context) ([]domain.Protocol, error)
	DeleteProtocol(ctx context.Context, id int64) error

	// Endpoints
	CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error
	GetEndpoint(ctx context.Context, id uuid.UUID) (*domain.Endpoint, error)
	ListEndpoints(ctx context.Context) ([]domain.Endpoint, error)
	UpdateEndpointProtocolState(ctx context.Context, id uuid.UUID, state []byte) error
	DeleteEndpoint(ctx context.Context, id uuid.UUID) error

	// Messages
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListMessages(ctx context.Context, limit int) ([]domain.Message, error)

	// Logs
	CreateLog(ctx context.Context, entry *domain.Log) error
	ListLogs(ctx context.Context, taskID string, limit int) ([]domain.Log, error)

	// Tasks
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, limit int) ([]domain.Task, error)
	UpdateTaskCompleted(ctx context.Context, taskID string, status domain.TaskStatus, result string) error

	// Statistics
	EndpointCountsByAgent(ctx context.Context) (map[string]int, error)
	MessageCountsByEndpoint(ctx context.Context) (map[string]int, error)
	MessageCountsByHour(ctx context.Context, since time.Time) (map[int]int, error)
	TaskStatusCounts(ctx context.Context) (map[string]int, error)

	Close() error
}
