// Package tasks runs background operations on a worker pool.
//
// Each submitted operation runs start to finish on one worker, so staging,
// file I/O and build invocation stay sequential within a call while separate
// calls proceed concurrently. Task rows record the lifecycle.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unr-deaddrop/server/internal/domain"
	"github.com/unr-deaddrop/server/internal/store"
)

// Func is one background operation. The returned string becomes the task's
// recorded result.
type Func func(ctx context.Context, taskID string) (string, error)

// ErrShutdown is returned by Submit after the runner stopped accepting work.
var ErrShutdown = errors.New("task runner is shut down")

type job struct {
	taskID string
	fn     Func
}

// Runner is the in-process task runner.
type Runner struct {
	store store.Store
	jobs  chan job
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a runner and starts its workers.
func NewRunner(st store.Store, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		store: st,
		jobs:  make(chan job, 64),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit records a PENDING task and queues the operation. The returned task
// ID correlates logs and results.
func (r *Runner) Submit(ctx context.Context, name, creator string, fn Func) (string, error) {
	// The lock is held across the queue send so Shutdown cannot close the
	// channel between the closed check and the send.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrShutdown
	}

	task := &domain.Task{
		TaskID:    uuid.New().String(),
		Name:      name,
		Status:    domain.TaskStatusPending,
		Creator:   creator,
		CreatedAt: time.Now(),
	}
	if err := r.store.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	r.jobs <- job{taskID: task.TaskID, fn: fn}
	return task.TaskID, nil
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.jobs {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	ctx := context.Background()
	result, err := j.fn(ctx, j.taskID)

	status := domain.TaskStatusSuccess
	if err != nil {
		status = domain.TaskStatusFailure
		result = err.Error()
		log.Printf("ERROR: task %s failed: %v", j.taskID, err)
	}
	if err := r.store.UpdateTaskCompleted(ctx, j.taskID, status, result); err != nil {
		log.Printf("ERROR: failed to record task %s completion: %v", j.taskID, err)
	}
}

// Shutdown stops accepting work and waits for in-flight tasks. Running build
// invocations are not cancelled mid-flight; the runner waits for them to
// exit.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	r.wg.Wait()
}
