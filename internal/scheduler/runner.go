package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/metrics"
	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// DefaultInterval is the pause between autonomous cycles
const DefaultInterval = 60 * time.Second

var (
	// ErrAlreadyRunning is returned by Start when a loop is active
	ErrAlreadyRunning = errors.New("autonomous runner is already running")
	// ErrNotRunning is returned by Stop when no loop is active
	ErrNotRunning = errors.New("autonomous runner is not running")
)

const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

// Cycler runs one autonomous cycle
type Cycler interface {
	RunCycle(ctx context.Context) (*models.CycleReport, error)
}

// Status describes the runner for the management API
type Status struct {
	Status      string     `json:"status"`
	IsRunning   bool       `json:"is_running"`
	Interval    string     `json:"interval"`
	Cycles      int64      `json:"cycles"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	LastCycleID string     `json:"last_cycle_id,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Runner repeats cycles on an interval until stopped. At most one loop runs
// at a time, and cycles never overlap.
type Runner struct {
	cycler   Cycler
	interval time.Duration

	state   atomic.Int32
	cycleMu sync.Mutex

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	cycles  int64
	lastAt  time.Time
	lastID  string
	lastErr string
}

// NewRunner creates a stopped runner. A non-positive interval uses DefaultInterval.
func NewRunner(cycler Cycler, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{cycler: cycler, interval: interval}
}

// Start spawns the cycle loop
func (r *Runner) Start() error {
	r.mu.Lock()
	if !r.state.CompareAndSwap(stateStopped, stateRunning) {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop = stop
	r.done = done
	r.mu.Unlock()

	metrics.RunnerActive.Set(1)
	logrus.Infof("Autonomous runner started (interval %s)", r.interval)
	go r.loop(stop, done)
	return nil
}

// Stop asks the loop to exit. A cycle in progress completes first; the
// wait between cycles is cut short.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.state.CompareAndSwap(stateRunning, stateStopping) {
		r.mu.Unlock()
		return ErrNotRunning
	}
	close(r.stop)
	r.mu.Unlock()

	logrus.Info("Autonomous runner stopping")
	return nil
}

// Wait blocks until the loop has exited or ctx is done
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether a loop is active
func (r *Runner) IsRunning() bool {
	return r.state.Load() == stateRunning
}

// RunOnce performs a single cycle synchronously, after any cycle in progress
func (r *Runner) RunOnce(ctx context.Context) (*models.CycleReport, error) {
	return r.runCycle(ctx)
}

// Status returns the current state and the last cycle's outcome
func (r *Runner) Status() Status {
	var name string
	switch r.state.Load() {
	case stateRunning:
		name = "running"
	case stateStopping:
		name = "stopping"
	default:
		name = "stopped"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Status:      name,
		IsRunning:   name == "running",
		Interval:    r.interval.String(),
		Cycles:      r.cycles,
		LastCycleID: r.lastID,
		LastError:   r.lastErr,
	}
	if !r.lastAt.IsZero() {
		at := r.lastAt
		st.LastCycleAt = &at
	}
	return st
}

func (r *Runner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		r.state.Store(stateStopped)
		metrics.RunnerActive.Set(0)
		logrus.Info("Autonomous runner stopped")
	}()

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		// The loop owns no request context; cycles run to completion
		_, _ = r.runCycle(context.Background())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.interval)

		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

func (r *Runner) runCycle(ctx context.Context) (report *models.CycleReport, err error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle panicked: %v", p)
		}

		r.mu.Lock()
		r.cycles++
		r.lastAt = time.Now().UTC()
		r.lastErr = ""
		if report != nil {
			r.lastID = report.ID
		}
		if err != nil {
			r.lastErr = err.Error()
		}
		r.mu.Unlock()

		if err != nil {
			logrus.Errorf("Autonomous cycle failed: %v", err)
		}
	}()

	return r.cycler.RunCycle(ctx)
}
