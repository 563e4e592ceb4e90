// Package contract defines the filesystem exchange contract between the
// server and opaque agent/protocol packages.
//
// Inputs are written into a staged working directory before a build target is
// invoked; outputs are read back from the same directory afterwards. Writers
// only serialize; readers validate presence and raise a distinct error per
// missing artifact so failures are diagnosable.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/unr-deaddrop/server/internal/domain"
)

// File names the contract is built around.
const (
	MessagingConfigFile = "message_config.json"
	BuildConfigFile     = "build_config.json"
	MessageInputFile    = "message.json"
	MessagesOutputFile  = "messages.json"
	ProtocolStateFile   = "protocol_state.json"
	AgentConfigFile     = "agent_cfg.json"
	PayloadFile         = "payload.zip"
	PayloadLogFile      = "payload-logs.txt"
	MessageLogFile      = "message-logs.txt"
)

// Per-artifact errors for required outputs.
var (
	ErrMissingLog         = errors.New("missing log output")
	ErrMissingMessages    = errors.New("missing messages output")
	ErrMissingAgentConfig = errors.New("missing final agent configuration")
	ErrMissingPayload     = errors.New("missing payload artifact")
)

// Action selects the exchange direction.
type Action string

const (
	ActionSend    Action = "send"
	ActionReceive Action = "receive"
)

// EndpointInfo carries the endpoint identity fields handed to the package.
type EndpointInfo struct {
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
}

// ServerDirective is the operation-specific section of the exchange input.
// The server private key is only populated when sending. PreferredProtocol is
// reserved; packages currently pick their first configured listener.
type ServerDirective struct {
	Action            Action  `json:"action"`
	ListenForID       string  `json:"listen_for_id,omitempty"`
	ServerPrivateKey  string  `json:"server_private_key,omitempty"`
	PreferredProtocol *string `json:"preferred_protocol"`
}

// MessagingConfig is the structured input document for a message exchange.
// The agent, protocol and state sections are opaque passthrough content owned
// by the package; the server only fills in the fields it owns.
type MessagingConfig struct {
	AgentConfig    json.RawMessage `json:"agent_config"`
	ProtocolConfig json.RawMessage `json:"protocol_config"`
	ProtocolState  json.RawMessage `json:"protocol_state"`
	Endpoint       EndpointInfo    `json:"endpoint"`
	Server         ServerDirective `json:"server"`
}

// AgentConfigDoc is the slice of agent_cfg.json the server reads. Everything
// outside agent_config.AGENT_ID is passed through opaque.
type AgentConfigDoc struct {
	AgentConfig struct {
		AgentID string `json:"AGENT_ID"`
	} `json:"agent_config"`
}

// WriteMessagingConfig serializes the exchange input document into the
// working directory.
func WriteMessagingConfig(workDir string, cfg *MessagingConfig) error {
	return writeJSON(filepath.Join(workDir, MessagingConfigFile), cfg)
}

// WriteMessage serializes the outgoing message.
func WriteMessage(workDir string, msg *domain.Message) error {
	return writeJSON(filepath.Join(workDir, MessageInputFile), msg)
}

// WriteBuildConfig writes the caller-supplied payload build arguments.
func WriteBuildConfig(workDir string, buildArgs json.RawMessage) error {
	if len(buildArgs) == 0 {
		buildArgs = json.RawMessage("{}")
	}
	return os.WriteFile(filepath.Join(workDir, BuildConfigFile), buildArgs, 0o644)
}

// ReadLog reads a free-text execution log. Absence is a contract violation.
func ReadLog(workDir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(workDir, name))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrMissingLog, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

// ReadProtocolState reads the optional protocol state blob. A nil result
// means the package left the state unchanged.
func ReadProtocolState(workDir string) (json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(workDir, ProtocolStateFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ProtocolStateFile, err)
	}
	return data, nil
}

// ReadMessages reads the received message batch. Absence is a contract
// violation; an empty array is how packages signal "nothing received".
func ReadMessages(workDir string) ([]domain.Message, error) {
	data, err := os.ReadFile(filepath.Join(workDir, MessagesOutputFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingMessages, MessagesOutputFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", MessagesOutputFile, err)
	}
	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", MessagesOutputFile, err)
	}
	return msgs, nil
}

// ReadAgentConfig reads the final agent configuration produced by a payload
// build and extracts the endpoint identifier the build minted.
func ReadAgentConfig(workDir string) (json.RawMessage, string, error) {
	data, err := os.ReadFile(filepath.Join(workDir, AgentConfigFile))
	if os.IsNotExist(err) {
		return nil, "", fmt.Errorf("%w: %s", ErrMissingAgentConfig, AgentConfigFile)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", AgentConfigFile, err)
	}
	var doc AgentConfigDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", AgentConfigFile, err)
	}
	if doc.AgentConfig.AgentID == "" {
		return nil, "", fmt.Errorf("%s declares no agent ID", AgentConfigFile)
	}
	return data, doc.AgentConfig.AgentID, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
