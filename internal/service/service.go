// Package service ties the orchestration core to the store and the task
// runner. Handlers call into this layer only.
package service

import (
	"errors"

	"github.com/unr-deaddrop/server/internal/config"
	"github.com/unr-deaddrop/server/internal/core/exchange"
	"github.com/unr-deaddrop/server/internal/core/install"
	"github.com/unr-deaddrop/server/internal/core/payload"
	"github.com/unr-deaddrop/server/internal/core/runner"
	"github.com/unr-deaddrop/server/internal/policy"
	"github.com/unr-deaddrop/server/internal/store"
	"github.com/unr-deaddrop/server/internal/tasks"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

type Service struct {
	store     store.Store
	config    *config.Config
	installer *install.Installer
	builder   *payload.Builder
	exchanger *exchange.Exchanger
	policy    *policy.Engine
	tasks     *tasks.Runner
}

func New(st store.Store, cfg *config.Config, policyEngine *policy.Engine, taskRunner *tasks.Runner) *Service {
	buildRunner := runner.New(cfg.BuildTimeout, cfg.FailOnExit)
	return &Service{
		store:     st,
		config:    cfg,
		installer: install.New(cfg, st, buildRunner),
		builder:   payload.New(cfg, st, buildRunner),
		exchanger: exchange.New(cfg, st, buildRunner),
		policy:    policyEngine,
		tasks:     taskRunner,
	}
}
