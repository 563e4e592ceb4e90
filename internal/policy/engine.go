// Package policy gates core operations through an OPA policy.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// ErrBlocked is returned when the policy denies an operation. Blocked
// operations fail before any staging happens.
var ErrBlocked = errors.New("operation blocked by policy")

// Input describes the operation under evaluation.
type Input struct {
	Operation    string `json:"operation"` // install, build_payload, send, receive
	AgentName    string `json:"agent_name,omitempty"`
	AgentVersion string `json:"agent_version,omitempty"`
	EndpointID   string `json:"endpoint_id,omitempty"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.operation_policy.decision"),
		rego.Module("operation_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Check evaluates the policy for the given operation and returns ErrBlocked
// on a "block" decision. Policies without a matching rule fall back to the
// default decision they declare.
func (e *Engine) Check(ctx context.Context, input Input) error {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil
	}
	if decision, ok := results[0].Expressions[0].Value.(string); ok && decision == "block" {
		return fmt.Errorf("%w: %s", ErrBlocked, input.Operation)
	}
	return nil
}

// DefaultPolicy allows every operation. Operators replace it to pin down
// which packages may be installed or exchanged with.
const DefaultPolicy = `
package operation_policy

default decision = "allow"
`
