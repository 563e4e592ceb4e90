// Package install implements the package manager.
//
// Agents and protocol handlers arrive as .zip bundles in a standard layout.
// Installation unpacks the bundle into the package root, runs the package's
// own install target to generate its metadata files, validates them, and
// relocates the package under its canonical {name}-{version} directory.
package install

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/unr-deaddrop/server/internal/config"
	"github.com/unr-deaddrop/server/internal/core/runner"
	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/store"
)

// Required metadata files per package kind. Their internal schema is owned by
// the package; only presence is checked here.
var (
	RequiredAgentMetadata    = []string{"agent.json", "commands.json", "protocols.json"}
	RequiredProtocolMetadata = []string{"protocol.json"}
)

var (
	// ErrBundleMissing is returned when the bundle path does not exist.
	ErrBundleMissing = errors.New("bundle does not exist")
	// ErrTargetExists is returned when the decompression target directory is
	// already taken. The bundle name must be fresh relative to other
	// installed packages.
	ErrTargetExists = errors.New("decompression target already exists")
	// ErrIncompleteMetadata is returned when required metadata files are
	// missing after the install target ran.
	ErrIncompleteMetadata = errors.New("missing one or more required metadata files")
	// ErrPackageInUse is returned when installation would overwrite a package
	// that endpoints still reference.
	ErrPackageInUse = errors.New("package is in use by existing endpoints")
)

// Installer installs agent and protocol packages.
type Installer struct {
	cfg    *config.Config
	store  store.Store
	runner *runner.Runner
}

// New creates an installer.
func New(cfg *config.Config, st store.Store, r *runner.Runner) *Installer {
	return &Installer{cfg: cfg, store: st, runner: r}
}

// descriptor is the self-declared identity every package carries in its
// descriptor metadata file.
type descriptor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InstallAgent installs an agent package from a bundle and persists the
// resulting Agent.
func (i *Installer) InstallAgent(ctx context.Context, bundlePath string) (*domain.Agent, error) {
	rec, err := i.install(ctx, bundlePath, installKind{
		mediaSubdir:    "agents",
		descriptorFile: "agent.json",
		requiredFiles:  RequiredAgentMetadata,
		existing: func(ctx context.Context, name, version string) (existingPackage, error) {
			agent, err := i.store.GetAgentByNameVersion(ctx, name, version)
			if err != nil || agent == nil {
				return nil, err
			}
			return &existingAgent{installer: i, agent: agent}, nil
		},
		byPackagePath: func(ctx context.Context, path string) (bool, error) {
			agent, err := i.store.GetAgentByPackagePath(ctx, path)
			return agent != nil, err
		},
	})
	if err != nil {
		return nil, err
	}

	agent := &domain.Agent{
		Name:        rec.name,
		Version:     rec.version,
		PackageFile: rec.packageFile,
		PackagePath: rec.packagePath,
		CreatedAt:   time.Now(),
	}
	if err := i.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to persist agent: %w", err)
	}
	return agent, nil
}

// InstallProtocol installs a protocol handler package from a bundle and
// persists the resulting Protocol. Protocols are never referenced by
// endpoints, so a same-identity reinstall is always a controlled overwrite.
func (i *Installer) InstallProtocol(ctx context.Context, bundlePath string) (*domain.Protocol, error) {
	rec, err := i.install(ctx, bundlePath, installKind{
		mediaSubdir:    "protocols",
		descriptorFile: "protocol.json",
		requiredFiles:  RequiredProtocolMetadata,
		existing: func(ctx context.Context, name, version string) (existingPackage, error) {
			protocol, err := i.store.GetProtocolByNameVersion(ctx, name, version)
			if err != nil || protocol == nil {
				return nil, err
			}
			return &existingProtocol{installer: i, protocol: protocol}, nil
		},
		byPackagePath: func(ctx context.Context, path string) (bool, error) {
			protocol, err := i.store.GetProtocolByPackagePath(ctx, path)
			return protocol != nil, err
		},
	})
	if err != nil {
		return nil, err
	}

	protocol := &domain.Protocol{
		Name:        rec.name,
		Version:     rec.version,
		PackageFile: rec.packageFile,
		PackagePath: rec.packagePath,
		CreatedAt:   time.Now(),
	}
	if err := i.store.CreateProtocol(ctx, protocol); err != nil {
		return nil, fmt.Errorf("failed to persist protocol: %w", err)
	}
	return protocol, nil
}

// installKind parameterizes the shared install flow per package kind. The
// mediaSubdir doubles as the kind name for config.PackageDir.
type installKind struct {
	mediaSubdir    string
	descriptorFile string
	requiredFiles  []string
	existing       func(ctx context.Context, name, version string) (existingPackage, error)
	byPackagePath  func(ctx context.Context, path string) (bool, error)
}

// existingPackage is an already-registered package with the same identity.
type existingPackage interface {
	// EndpointCount reports how many endpoints reference the package.
	EndpointCount(ctx context.Context) (int, error)
	// Remove deletes the registration and its files.
	Remove(ctx context.Context) error
	String() string
}

type installed struct {
	name        string
	version     string
	packageFile string
	packagePath string
}

func (i *Installer) install(ctx context.Context, bundlePath string, kind installKind) (*installed, error) {
	if _, err := os.Stat(bundlePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleMissing, bundlePath)
	}

	baseDir := i.cfg.PackageDir(kind.mediaSubdir)
	packagePath, err := decompress(bundlePath, baseDir)
	if err != nil {
		return nil, err
	}
	// Nothing is registered yet; a failure from here on must not leave the
	// partial directory behind.
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(packagePath)
		}
	}()

	if _, err := i.runner.Run(ctx, packagePath, runner.TargetInstall); err != nil {
		return nil, err
	}

	for _, name := range kind.requiredFiles {
		if _, err := os.Stat(filepath.Join(packagePath, name)); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIncompleteMetadata, name)
		}
	}

	desc, err := readDescriptor(packagePath, kind.descriptorFile)
	if err != nil {
		return nil, err
	}
	internalName := desc.Name + "-" + desc.Version

	// Same-identity collision: overwrite only when nothing references the
	// existing registration.
	existing, err := kind.existing(ctx, desc.Name, desc.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing package: %w", err)
	}
	if existing != nil {
		count, err := existing.EndpointCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count endpoints: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: installation would overwrite %s", ErrPackageInUse, existing)
		}
		log.Printf("WARN: overwriting installed package %s, it has no endpoints", existing)
		if err := existing.Remove(ctx); err != nil {
			return nil, fmt.Errorf("failed to remove existing package: %w", err)
		}
	}

	// Relocate to the canonical directory name. A stale directory not claimed
	// by any registration is removed first.
	finalDir := filepath.Join(baseDir, internalName)
	if _, err := os.Stat(finalDir); err == nil {
		claimed, err := kind.byPackagePath(ctx, finalDir)
		if err != nil {
			return nil, fmt.Errorf("failed to check package directory owner: %w", err)
		}
		if !claimed {
			log.Printf("WARN: removing dangling package at %s", finalDir)
			os.RemoveAll(finalDir)
		}
	}
	if err := os.Rename(packagePath, finalDir); err != nil {
		return nil, fmt.Errorf("%w: %s is already installed", ErrPackageInUse, internalName)
	}
	packagePath = finalDir

	// Keep the original bundle in durable storage under the canonical name.
	mediaRel := filepath.Join(kind.mediaSubdir, internalName+filepath.Ext(bundlePath))
	if err := copyFile(bundlePath, i.cfg.MediaPath(mediaRel)); err != nil {
		return nil, fmt.Errorf("failed to store bundle: %w", err)
	}

	committed = true
	return &installed{
		name:        desc.Name,
		version:     desc.Version,
		packageFile: mediaRel,
		packagePath: finalDir,
	}, nil
}

// decompress unpacks the bundle into a directory named after the bundle's own
// base name. The target must be a fresh name; collisions are a hard stop.
func decompress(bundlePath, baseDir string) (string, error) {
	if _, err := os.Stat(baseDir); err != nil {
		return "", fmt.Errorf("package base path %s does not exist: %w", baseDir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(bundlePath), filepath.Ext(bundlePath))
	targetDir := filepath.Join(baseDir, stem)
	if _, err := os.Stat(targetDir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrTargetExists, targetDir)
	}

	zr, err := zip.OpenReader(bundlePath)
	if err != nil {
		return "", fmt.Errorf("failed to open bundle: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", targetDir, err)
	}

	for _, f := range zr.File {
		if err := extractFile(f, targetDir); err != nil {
			os.RemoveAll(targetDir)
			return "", fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return targetDir, nil
}

func extractFile(f *zip.File, targetDir string) error {
	// Reject entries that would escape the target directory.
	dest := filepath.Join(targetDir, filepath.Clean(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal entry path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func readDescriptor(packagePath, name string) (*descriptor, error) {
	data, err := os.ReadFile(filepath.Join(packagePath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	var desc descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if desc.Name == "" || desc.Version == "" {
		return nil, fmt.Errorf("%s declares no name or version", name)
	}
	return &desc, nil
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

type existingAgent struct {
	installer *Installer
	agent     *domain.Agent
}

func (e *existingAgent) EndpointCount(ctx context.Context) (int, error) {
	return e.installer.store.AgentEndpointCount(ctx, e.agent.ID)
}

func (e *existingAgent) Remove(ctx context.Context) error {
	if err := e.installer.store.DeleteAgent(ctx, e.agent.ID); err != nil {
		return err
	}
	RemovePackageFiles(e.installer.cfg, e.agent.PackageFile, e.agent.PackagePath)
	return nil
}

func (e *existingAgent) String() string { return e.agent.String() }

type existingProtocol struct {
	installer *Installer
	protocol  *domain.Protocol
}

func (e *existingProtocol) EndpointCount(ctx context.Context) (int, error) {
	return 0, nil
}

func (e *existingProtocol) Remove(ctx context.Context) error {
	if err := e.installer.store.DeleteProtocol(ctx, e.protocol.ID); err != nil {
		return err
	}
	RemovePackageFiles(e.installer.cfg, e.protocol.PackageFile, e.protocol.PackagePath)
	return nil
}

func (e *existingProtocol) String() string { return e.protocol.String() }

// RemovePackageFiles deletes a package's stored bundle and unpacked tree.
// Called after the registration row is gone; leftover files are logged, not
// fatal.
func RemovePackageFiles(cfg *config.Config, packageFile, packagePath string) {
	if packageFile != "" {
		if err := os.Remove(cfg.MediaPath(packageFile)); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: failed to remove bundle %s: %v", packageFile, err)
		}
	}
	if packagePath != "" {
		if err := os.RemoveAll(packagePath); err != nil {
			log.Printf("WARN: failed to remove package directory %s: %v", packagePath, err)
		}
	}
}
