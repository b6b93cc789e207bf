/*
Package coordinator drives the peg state machine.

One goroutine owns the machine and applies events from a bounded channel.
Every task the machine emits runs in its own goroutine and its result
re-enters the same channel. The state is saved after each event, so a
restart resumes from the last processed event.
*/
package coordinator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TEENet-io/sbtc-bridge/pegstate"
)

const (
	DefaultChannelSize          = 64
	DefaultRetryInitialInterval = time.Second
	DefaultRetryMaxInterval     = 2 * time.Minute
)

// TaskExecutor performs a task and reports its outcome. An error wrapped in
// backoff.Permanent stops the retries.
type TaskExecutor interface {
	Execute(ctx context.Context, task pegstate.Task) (pegstate.Event, error)
}

// TaskError is returned by Run when a task failed permanently.
type TaskError struct {
	Task pegstate.Task
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type Config struct {
	ChannelSize          int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

type Coordinator struct {
	cfg      *Config
	machine  *pegstate.Machine
	store    pegstate.Store
	executor TaskExecutor

	events   chan pegstate.Event
	snapshot atomic.Pointer[[]byte] // JSON document of the last committed state
}

func New(cfg *Config, machine *pegstate.Machine, store pegstate.Store, executor TaskExecutor) (*Coordinator, error) {
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = DefaultChannelSize
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = DefaultRetryMaxInterval
	}

	c := &Coordinator{
		cfg:      cfg,
		machine:  machine,
		store:    store,
		executor: executor,
		events:   make(chan pegstate.Event, cfg.ChannelSize),
	}
	if err := c.publish(); err != nil {
		return nil, err
	}
	return c, nil
}

// Snapshot returns a private copy of the last committed state. It is safe to
// call from any goroutine.
func (c *Coordinator) Snapshot() (pegstate.State, error) {
	return pegstate.Unmarshal(*c.snapshot.Load())
}

// Run bootstraps the machine and processes events until ctx ends, the
// state cannot be saved or a task fails permanently. An invariant violation panics out of Run.
func (c *Coordinator) Run(ctx context.Context) error {
	logger.Info("starting coordinator")
	defer logger.Info("stopping coordinator")

	g, ctx := errgroup.WithContext(ctx)

	tasks := c.machine.Bootstrap()
	if err := c.commit(ctx); err != nil {
		return err
	}
	c.dispatch(ctx, g, tasks)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-c.events:
				logger.WithField("event", ev.String()).Debug("applying event")
				tasks := c.machine.Apply(ev)
				if err := c.commit(ctx); err != nil {
					logger.Errorf("failed to save peg state: err=%v", err)
					return err
				}
				c.dispatch(ctx, g, tasks)
			}
		}
	})

	return g.Wait()
}

func (c *Coordinator) commit(ctx context.Context) error {
	if err := pegstate.SaveState(ctx, c.store, c.machine.State()); err != nil {
		return err
	}
	return c.publish()
}

func (c *Coordinator) publish() error {
	doc, err := c.machine.Snapshot()
	if err != nil {
		return err
	}
	c.snapshot.Store(&doc)
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context, g *errgroup.Group, tasks []pegstate.Task) {
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return c.run(ctx, task)
		})
	}
}

// run retries the task until it succeeds, fails permanently or ctx ends,
// then queues its event. A permanent failure is returned as a *TaskError.
func (c *Coordinator) run(ctx context.Context, task pegstate.Task) error {
	newLogger := logger.WithFields(logger.Fields{
		"taskId": uuid.New().String(),
		"task":   task.String(),
	})
	newLogger.Debug("task started")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInitialInterval
	policy.MaxInterval = c.cfg.RetryMaxInterval
	policy.MaxElapsedTime = 0

	var ev pegstate.Event
	err := backoff.RetryNotify(func() error {
		var err error
		ev, err = c.executor.Execute(ctx, task)
		return err
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		newLogger.WithField("retryIn", next.String()).Warnf("task failed: err=%v", err)
	})
	if err != nil {
		if ctx.Err() != nil {
			newLogger.Debugf("task abandoned: err=%v", err)
			return nil
		}
		newLogger.Errorf("task failed permanently: err=%v", err)
		return &TaskError{Task: task, Err: err}
	}

	newLogger.WithField("event", ev.String()).Debug("task done")
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
	return nil
}
