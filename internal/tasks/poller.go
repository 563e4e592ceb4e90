package tasks

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Poller periodically triggers a job, typically a message receive sweep over
// all endpoints.
type Poller struct {
	c *cron.Cron
}

// NewPoller schedules job on the given cron spec.
func NewPoller(spec string, job func()) (*Poller, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("failed to parse poll schedule %q: %w", spec, err)
	}
	return &Poller{c: c}, nil
}

// Start begins the schedule.
func (p *Poller) Start() {
	p.c.Start()
}

// Stop halts the schedule; already-triggered jobs finish on the task runner.
func (p *Poller) Stop() {
	p.c.Stop()
}
