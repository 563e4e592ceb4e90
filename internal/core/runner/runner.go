// Package runner invokes conventional build targets inside staged package
// directories.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Build targets every package is expected to expose.
const (
	TargetInstall      = "install"
	TargetPayloadEntry = "payload_entry"
	TargetMessageEntry = "message_entry"
)

// BuildScript is the build descriptor expected at the root of every staged
// package directory.
const BuildScript = "Makefile"

// ErrMissingBuildScript is returned when the staged directory has no build
// descriptor.
var ErrMissingBuildScript = errors.New("build script missing from staged directory")

// Result captures one build invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner runs build targets. The invoked scripts are opaque and untrusted, so
// every invocation is bounded by Timeout. When FailOnExit is set a non-zero
// exit code aborts the operation; otherwise it is only logged and the
// required-output checks decide success.
type Runner struct {
	Timeout    time.Duration
	FailOnExit bool
}

// New creates a runner.
func New(timeout time.Duration, failOnExit bool) *Runner {
	return &Runner{Timeout: timeout, FailOnExit: failOnExit}
}

// Run invokes the named target with the working directory pinned to workDir,
// capturing both output streams. The target name is passed as a single
// argument; nothing is shell-interpolated.
func (r *Runner) Run(ctx context.Context, workDir, target string) (*Result, error) {
	if _, err := os.Stat(filepath.Join(workDir, BuildScript)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingBuildScript, workDir)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "make", target)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to invoke %s %s: %w", BuildScript, target, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	if result.ExitCode != 0 {
		log.Printf("WARN: target %s exited with code %d in %s\nstdout: %s\nstderr: %s",
			target, result.ExitCode, workDir, result.Stdout, result.Stderr)
		if r.FailOnExit {
			return result, fmt.Errorf("target %s exited with code %d", target, result.ExitCode)
		}
	}

	return result, nil
}
