package agents

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle position of one stage in one pipeline run.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ErrInvalidTransition is returned for transitions the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid stage transition")

// StageRun records the lifecycle of one stage.
type StageRun struct {
	Stage      string
	State      State
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Tracker drives stages through PENDING -> RUNNING -> SUCCEEDED | FAILED.
type Tracker struct {
	mu    sync.Mutex
	runs  []*StageRun
	index map[string]*StageRun
	now   func() time.Time
}

// NewTracker registers stages in the order they are expected to run.
func NewTracker(stages ...string) *Tracker {
	t := &Tracker{index: make(map[string]*StageRun, len(stages)), now: time.Now}
	for _, stage := range stages {
		run := &StageRun{Stage: stage, State: StatePending}
		t.runs = append(t.runs, run)
		t.index[stage] = run
	}
	return t
}

// Run moves stage to RUNNING, executes fn and records the outcome. The error
// of fn is returned unchanged.
func (t *Tracker) Run(stage string, fn func() error) error {
	if err := t.transition(stage, StateRunning, nil); err != nil {
		return err
	}

	if err := fn(); err != nil {
		_ = t.transition(stage, StateFailed, err)
		return err
	}

	return t.transition(stage, StateSucceeded, nil)
}

// Runs returns a snapshot of every registered stage.
func (t *Tracker) Runs() []StageRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]StageRun, len(t.runs))
	for i, run := range t.runs {
		out[i] = *run
	}
	return out
}

// State returns the current state of stage.
func (t *Tracker) State(stage string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if run, ok := t.index[stage]; ok {
		return run.State
	}
	return ""
}

func (t *Tracker) transition(stage string, to State, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.index[stage]
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, stage)
	}

	allowed := false
	switch to {
	case StateRunning:
		allowed = run.State == StatePending
	case StateSucceeded, StateFailed:
		allowed = run.State == StateRunning
	}
	if !allowed {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, stage, run.State, to)
	}

	now := t.now()
	run.State = to
	switch to {
	case StateRunning:
		run.StartedAt = now
	default:
		run.FinishedAt = now
		run.Err = cause
	}

	return nil
}
