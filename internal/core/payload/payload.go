// Package payload builds deployable payloads from installed agent packages.
//
// A build stages a working copy of the package, writes the caller's build
// arguments as build_config.json, and invokes the payload_entry target. The
// package's build system owns the result: it mints the endpoint identifier,
// may rewrite the configuration at will, and must leave agent_cfg.json,
// payload.zip and payload-logs.txt behind.
package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/unr-deaddrop/server/internal/config"
	"github.com/unr-deaddrop/server/internal/core/contract"
	"github.com/unr-deaddrop/server/internal/core/runner"
	"github.com/unr-deaddrop/server/internal/core/staging"
	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/store"
)

// Fields are the caller-supplied descriptive endpoint fields. Payload and
// connection references are build-owned for a fresh endpoint and cannot be
// supplied here.
type Fields struct {
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
}

// Builder builds payloads.
type Builder struct {
	cfg    *config.Config
	store  store.Store
	runner *runner.Runner
}

// New creates a builder.
func New(cfg *config.Config, st store.Store, r *runner.Runner) *Builder {
	return &Builder{cfg: cfg, store: st, runner: r}
}

// Build builds a new payload from an installed agent package and returns the
// newly persisted Endpoint. No Endpoint is persisted if any step fails.
func (b *Builder) Build(ctx context.Context, agent *domain.Agent, buildArgs json.RawMessage, taskID, user string, fields Fields) (*domain.Endpoint, error) {
	work, err := staging.Stage(agent.PackagePath)
	if err != nil {
		return nil, err
	}
	defer work.Release()
	log.Printf("using %s for payload build of %s", work.Path(), agent)

	if err := contract.WriteBuildConfig(work.Path(), buildArgs); err != nil {
		return nil, err
	}

	if _, err := b.runner.Run(ctx, work.Path(), runner.TargetPayloadEntry); err != nil {
		return nil, err
	}

	// Harvest the log first so a failure further down still leaves a
	// diagnosable record.
	logText, err := contract.ReadLog(work.Path(), contract.PayloadLogFile)
	if err != nil {
		return nil, err
	}
	if err := b.store.CreateLog(ctx, &domain.Log{
		User:      user,
		TaskID:    taskID,
		Category:  domain.LogCategoryPayloadBuild,
		Level:     domain.LogLevelInfo,
		Timestamp: time.Now(),
		Data:      logText,
	}); err != nil {
		return nil, fmt.Errorf("failed to save build log: %w", err)
	}

	agentCfg, rawID, err := contract.ReadAgentConfig(work.Path())
	if err != nil {
		return nil, err
	}
	endpointID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("build declared invalid endpoint ID %q: %w", rawID, err)
	}

	mediaRel, err := b.relocatePayload(work.Path(), agent, endpointID)
	if err != nil {
		return nil, err
	}

	// A fresh build starts with no protocol state; exchanges fill it in.
	endpoint := &domain.Endpoint{
		ID:          endpointID,
		Name:        fields.Name,
		Hostname:    fields.Hostname,
		Address:     fields.Address,
		AgentID:     agent.ID,
		AgentCfg:    agentCfg,
		PayloadFile: mediaRel,
		CreatedAt:   time.Now(),
	}
	if err := b.store.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("failed to persist endpoint: %w", err)
	}
	return endpoint, nil
}

// relocatePayload validates the built artifact and copies it into durable
// storage under a name combining the package identity and endpoint ID.
func (b *Builder) relocatePayload(workDir string, agent *domain.Agent, endpointID uuid.UUID) (string, error) {
	artifact := filepath.Join(workDir, contract.PayloadFile)
	if _, err := os.Stat(artifact); err != nil {
		return "", fmt.Errorf("%w: %s", contract.ErrMissingPayload, contract.PayloadFile)
	}

	zr, err := zip.OpenReader(artifact)
	if err != nil {
		return "", fmt.Errorf("payload artifact is not a valid archive: %w", err)
	}
	entries := len(zr.File)
	zr.Close()
	log.Printf("payload for %s contains %d entries", endpointID, entries)

	mediaRel := filepath.Join("payloads", fmt.Sprintf("%s-%s.zip", agent, endpointID))
	if err := copyFile(artifact, b.cfg.MediaPath(mediaRel)); err != nil {
		return "", fmt.Errorf("failed to store payload: %w", err)
	}
	return mediaRel, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
