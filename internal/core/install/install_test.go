package install

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/unr-deaddrop/server/internal/config"
	"github.com/unr-deaddrop/server/internal/core/runner"
	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/tests/helpers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		AgentPackageDir:    filepath.Join(root, "packages", "agents"),
		ProtocolPackageDir: filepath.Join(root, "packages", "protocols"),
		MediaRoot:          filepath.Join(root, "media"),
		BuildTimeout:       30 * time.Second,
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}
	return cfg
}

// writeBundle builds a .zip bundle at path from the given file contents.
func writeBundle(t *testing.T, path string, files map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create bundle: %v", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish bundle: %v", err)
	}
}

func agentBundleFiles() map[string]string {
	return map[string]string{
		"Makefile":       "install:\n\t@true\n",
		"agent.json":     `{"name":"echo-agent","version":"1.0.0"}`,
		"commands.json":  `{"commands":["ping"]}`,
		"protocols.json": `{"protocols":["plaintext_local"]}`,
	}
}

func TestInstallAgent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db := helpers.NewTestSQLiteStore(t)
	installer := New(cfg, db, runner.New(30*time.Second, false))

	bundle := filepath.Join(t.TempDir(), "echo-bundle.zip")
	writeBundle(t, bundle, agentBundleFiles())

	agent, err := installer.InstallAgent(ctx, bundle)
	if err != nil {
		t.Fatalf("InstallAgent failed: %v", err)
	}
	if agent.Name != "echo-agent" || agent.Version != "1.0.0" {
		t.Fatalf("unexpected identity %s", agent)
	}

	// The package lives under its canonical directory, not the bundle stem.
	wantDir := filepath.Join(cfg.AgentPackageDir, "echo-agent-1.0.0")
	if agent.PackagePath != wantDir {
		t.Fatalf("expected package at %s, got %s", wantDir, agent.PackagePath)
	}
	if _, err := os.Stat(filepath.Join(wantDir, "agent.json")); err != nil {
		t.Fatalf("unpacked package incomplete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.AgentPackageDir, "echo-bundle")); !os.IsNotExist(err) {
		t.Error("decompression target was left behind after rename")
	}

	// The original bundle is kept in durable storage.
	if _, err := os.Stat(cfg.MediaPath(agent.PackageFile)); err != nil {
		t.Fatalf("stored bundle missing: %v", err)
	}

	got, err := db.GetAgentByNameVersion(ctx, "echo-agent", "1.0.0")
	if err != nil || got == nil {
		t.Fatalf("agent not persisted: %v", err)
	}
}

func TestInstallAgentMissingBundle(t *testing.T) {
	cfg := testConfig(t)
	installer := New(cfg, helpers.NewTestSQLiteStore(t), runner.New(30*time.Second, false))

	_, err := installer.InstallAgent(context.Background(), filepath.Join(t.TempDir(), "nope.zip"))
	if !errors.Is(err, ErrBundleMissing) {
		t.Fatalf("expected ErrBundleMissing, got %v", err)
	}
}

func TestInstallAgentTargetExists(t *testing.T) {
	cfg := testConfig(t)
	installer := New(cfg, helpers.NewTestSQLiteStore(t), runner.New(30*time.Second, false))

	bundle := filepath.Join(t.TempDir(), "echo-bundle.zip")
	writeBundle(t, bundle, agentBundleFiles())

	// Occupied decompression target is a hard stop, never merged into.
	if err := os.MkdirAll(filepath.Join(cfg.AgentPackageDir, "echo-bundle"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := installer.InstallAgent(context.Background(), bundle)
	if !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
}

func TestInstallAgentIncompleteMetadata(t *testing.T) {
	cfg := testConfig(t)
	db := helpers.NewTestSQLiteStore(t)
	installer := New(cfg, db, runner.New(30*time.Second, false))

	files := agentBundleFiles()
	delete(files, "commands.json")
	bundle := filepath.Join(t.TempDir(), "echo-bundle.zip")
	writeBundle(t, bundle, files)

	_, err := installer.InstallAgent(context.Background(), bundle)
	if !errors.Is(err, ErrIncompleteMetadata) {
		t.Fatalf("expected ErrIncompleteMetadata, got %v", err)
	}

	// Failed installs leave nothing behind, in the package root or the store.
	if _, err := os.Stat(filepath.Join(cfg.AgentPackageDir, "echo-bundle")); !os.IsNotExist(err) {
		t.Error("partial package directory left behind")
	}
	agents, err := db.ListAgents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 0 {
		t.Fatalf("expected no agents, got %d", len(agents))
	}
}

func TestInstallAgentOverwrite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db := helpers.NewTestSQLiteStore(t)
	installer := New(cfg, db, runner.New(30*time.Second, false))

	bundle := filepath.Join(t.TempDir(), "echo-bundle.zip")
	writeBundle(t, bundle, agentBundleFiles())

	first, err := installer.InstallAgent(ctx, bundle)
	if err != nil {
		t.Fatalf("first install failed: %v", err)
	}

	// Same identity with no endpoints: controlled overwrite.
	second, err := installer.InstallAgent(ctx, bundle)
	if err != nil {
		t.Fatalf("reinstall failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("reinstall reused the old registration")
	}
	agents, err := db.ListAgents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected exactly one registration, got %d", len(agents))
	}

	// Same identity with a live endpoint: refused.
	endpoint := &domain.Endpoint{ID: uuid.New(), Name: "box-1", AgentID: second.ID, CreatedAt: time.Now()}
	if err := db.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatal(err)
	}
	_, err = installer.InstallAgent(ctx, bundle)
	if !errors.Is(err, ErrPackageInUse) {
		t.Fatalf("expected ErrPackageInUse, got %v", err)
	}

	// The in-use package survived untouched.
	if _, err := os.Stat(second.PackagePath); err != nil {
		t.Fatalf("in-use package was disturbed: %v", err)
	}
}

func TestInstallProtocol(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db := helpers.NewTestSQLiteStore(t)
	installer := New(cfg, db, runner.New(30*time.Second, false))

	bundle := filepath.Join(t.TempDir(), "ddp-bundle.zip")
	writeBundle(t, bundle, map[string]string{
		"Makefile":      "install:\n\t@true\n",
		"protocol.json": `{"name":"plaintext-tcp","version":"0.2.0"}`,
	})

	protocol, err := installer.InstallProtocol(ctx, bundle)
	if err != nil {
		t.Fatalf("InstallProtocol failed: %v", err)
	}
	if protocol.String() != "plaintext-tcp-0.2.0" {
		t.Fatalf("unexpected identity %s", protocol)
	}
	if _, err := os.Stat(filepath.Join(cfg.ProtocolPackageDir, "plaintext-tcp-0.2.0", "protocol.json")); err != nil {
		t.Fatalf("unpacked protocol incomplete: %v", err)
	}

	// Protocols are never endpoint-referenced; reinstall always overwrites.
	if _, err := installer.InstallProtocol(ctx, bundle); err != nil {
		t.Fatalf("protocol reinstall failed: %v", err)
	}
	protocols, err := db.ListProtocols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(protocols) != 1 {
		t.Fatalf("expected exactly one registration, got %d", len(protocols))
	}
}
