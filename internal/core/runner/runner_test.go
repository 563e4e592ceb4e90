package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeMakefile drops a Makefile into dir. Recipes must be tab-indented.
func writeMakefile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, BuildScript), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write Makefile: %v", err)
	}
}

func TestRunCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "install:\n\t@echo installed\n\t@touch agent.json\n")

	r := New(30*time.Second, false)
	result, err := r.Run(context.Background(), dir, TargetInstall)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", result.ExitCode)
	}
	if result.Stdout != "installed\n" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
	// The recipe ran inside the working directory, not the test's cwd.
	if _, err := os.Stat(filepath.Join(dir, "agent.json")); err != nil {
		t.Fatalf("recipe output missing from working directory: %v", err)
	}
}

func TestRunMissingBuildScript(t *testing.T) {
	r := New(30*time.Second, false)
	_, err := r.Run(context.Background(), t.TempDir(), TargetInstall)
	if !errors.Is(err, ErrMissingBuildScript) {
		t.Fatalf("expected ErrMissingBuildScript, got %v", err)
	}
}

func TestRunNonZeroExitWarnOnly(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "payload_entry:\n\t@echo oops >&2\n\t@exit 3\n")

	r := New(30*time.Second, false)
	result, err := r.Run(context.Background(), dir, TargetPayloadEntry)
	if err != nil {
		t.Fatalf("warn-only runner must not fail on exit code: %v", err)
	}
	if result.ExitCode == 0 {
		t.Fatal("expected non-zero exit code")
	}
	if result.Stderr != "oops\n" {
		t.Fatalf("unexpected stderr %q", result.Stderr)
	}
}

func TestRunNonZeroExitFatal(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "payload_entry:\n\t@exit 3\n")

	r := New(30*time.Second, true)
	if _, err := r.Run(context.Background(), dir, TargetPayloadEntry); err == nil {
		t.Fatal("expected error with FailOnExit set")
	}
}

func TestRunTimeout(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "message_entry:\n\t@sleep 30\n")

	r := New(200*time.Millisecond, false)
	start := time.Now()
	result, err := r.Run(context.Background(), dir, TargetMessageEntry)
	if time.Since(start) > 10*time.Second {
		t.Fatal("runner did not enforce its timeout")
	}
	// A killed process surfaces as a non-zero exit, not success.
	if err == nil && result.ExitCode == 0 {
		t.Fatal("timed-out run reported success")
	}
}
