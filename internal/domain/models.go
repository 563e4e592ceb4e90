// Package domain defines the core domain models for the control server.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Agent represents an installed agent package. The (name, version) pair is
// unique; different versions of the same agent keep independent metadata,
// since deployed endpoints cannot be remotely updated.
type Agent struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	PackageFile string    `json:"package_file"` // original bundle, under the media root
	PackagePath string    `json:"package_path"` // unpacked contents, under the agent package root
	CreatedAt   time.Time `json:"created_at"`
}

func (a *Agent) String() string {
	return a.Name + "-" + a.Version
}

// Protocol represents an installed protocol handler package. Protocols go
// through the same install pipeline as agents but live under their own
// package root.
type Protocol struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	PackageFile string    `json:"package_file"`
	PackagePath string    `json:"package_path"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Protocol) String() string {
	return p.Name + "-" + p.Version
}

// Endpoint represents a device an agent is (or could be) deployed to. For
// non-virtual endpoints the ID is minted by the payload build, not the server.
type Endpoint struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Hostname string    `json:"hostname"`
	Address  string    `json:"address"`

	// Virtual endpoints have no agent installed and no payload.
	IsVirtual bool `json:"is_virtual"`

	// The originating agent package. Zero for virtual endpoints.
	AgentID int64 `json:"agent_id,omitempty"`

	// AgentCfg is the full configuration document harvested from the payload
	// build. The server only reads the fields it needs for exchanges; the
	// rest is opaque agent-specific content.
	AgentCfg json.RawMessage `json:"agent_cfg,omitempty"`

	// ProtocolState is an opaque blob the protocol handler maintains across
	// exchanges. Last writer wins; concurrent exchanges against one endpoint
	// are not serialized here (callers should keep one in flight at a time).
	ProtocolState json.RawMessage `json:"protocol_state,omitempty"`

	// PayloadFile is the built payload bundle under the media root.
	PayloadFile string `json:"payload_file,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LogLevel mirrors the levels agents emit in their log output.
type LogLevel int

const (
	LogLevelDebug    LogLevel = 0
	LogLevelInfo     LogLevel = 1
	LogLevelWarning  LogLevel = 2
	LogLevelError    LogLevel = 3
	LogLevelCritical LogLevel = 4
)

// Log categories used by the orchestration core.
const (
	LogCategoryInstall      = "package-install"
	LogCategoryPayloadBuild = "payload-build"
	LogCategoryMessaging    = "messaging"
)

// Log is a captured text blob tied to one staged invocation. Immutable once
// written.
type Log struct {
	ID        int64      `json:"id"`
	SourceID  *uuid.UUID `json:"source_id,omitempty"` // endpoint, nil means the server itself
	User      string     `json:"user,omitempty"`
	TaskID    string     `json:"task_id,omitempty"`
	Category  string     `json:"category"`
	Level     LogLevel   `json:"level"`
	Timestamp time.Time  `json:"timestamp"`
	Data      string     `json:"data"`
}

// TaskStatus represents the status of a background task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailure TaskStatus = "FAILURE"
)

// Task records one background operation (install, payload build, exchange).
type Task struct {
	TaskID    string     `json:"task_id"`
	Name      string     `json:"name"`
	Status    TaskStatus `json:"status"`
	Creator   string     `json:"creator,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Result    string     `json:"result,omitempty"`
}
