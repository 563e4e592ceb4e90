package policy

import (
	"context"
	"errors"
	"testing"
)

const blockInstallPolicy = `
package operation_policy

default decision = "allow"

decision = "block" {
	input.operation == "install"
}
`

func TestDefaultPolicyAllows(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	for _, op := range []string{"install", "build_payload", "send", "receive"} {
		if err := engine.Check(ctx, Input{Operation: op}); err != nil {
			t.Errorf("default policy blocked %s: %v", op, err)
		}
	}
}

func TestBlockDecision(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, blockInstallPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	err = engine.Check(ctx, Input{Operation: "install", AgentName: "echo-agent"})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}

	if err := engine.Check(ctx, Input{Operation: "send"}); err != nil {
		t.Fatalf("unrelated operation blocked: %v", err)
	}
}

func TestInvalidPolicy(t *testing.T) {
	if _, err := NewEngine(context.Background(), "not rego"); err == nil {
		t.Fatal("expected error for invalid policy content")
	}
}
