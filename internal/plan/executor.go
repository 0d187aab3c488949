package plan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step execution states. A step moves pending → running and settles in
// exactly one of the terminal states.
const (
	StatePending    = "pending"
	StateRunning    = "running"
	StateDone       = "done"
	StateFailed     = "failed"
	StateRolledBack = "rolled_back"
)

type StepResult struct {
	StepID     string    `json:"step_id"`
	Action     string    `json:"action"`
	State      string    `json:"state"`
	Detail     string    `json:"detail,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

type Execution struct {
	Results []StepResult `json:"results"`
	Halted  bool         `json:"halted,omitempty"`
}

// Handler runs one step. Detail is recorded on success.
type Handler func(ctx context.Context, step Step) (detail string, err error)

// Rollback undoes the already-completed steps after a critical
// failure.
type Rollback func(ctx context.Context) error

type Executor struct {
	handlers map[string]Handler
	rollback Rollback
	log      *zap.Logger
	now      func() time.Time
}

func NewExecutor(log *zap.Logger, handlers map[string]Handler, rollback Rollback) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		handlers: handlers,
		rollback: rollback,
		log:      log,
		now:      time.Now,
	}
}

// Run executes the plan in order. A failed critical step halts the
// run: completed steps are rolled back when a rollback is installed,
// and untouched steps stay pending in the result.
func (e *Executor) Run(ctx context.Context, p *Plan) (*Execution, error) {
	exec := &Execution{Results: make([]StepResult, len(p.Steps))}
	for i, step := range p.Steps {
		exec.Results[i] = StepResult{StepID: step.ID, Action: step.Action, State: StatePending}
	}

	var firstErr error
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			exec.Halted = true
			return exec, err
		}

		res := &exec.Results[i]
		res.State = StateRunning
		res.StartedAt = e.now()
		e.log.Info("step started", zap.String("step", step.ID), zap.String("action", step.Action))

		handler, ok := e.handlers[step.Action]
		if !ok {
			res.State = StateFailed
			res.Error = fmt.Sprintf("no handler for action %q", step.Action)
			res.FinishedAt = e.now()
			firstErr = fmt.Errorf("step %s: %s", step.ID, res.Error)
		} else if detail, err := handler(ctx, step); err != nil {
			res.State = StateFailed
			res.Error = err.Error()
			res.FinishedAt = e.now()
			firstErr = fmt.Errorf("step %s (%s): %w", step.ID, step.Action, err)
		} else {
			res.State = StateDone
			res.Detail = detail
			res.FinishedAt = e.now()
			continue
		}

		e.log.Warn("step failed", zap.String("step", step.ID), zap.Error(firstErr))

		if !step.Critical {
			firstErr = nil
			continue
		}

		exec.Halted = true
		e.rollBackCompleted(ctx, exec, i)
		return exec, firstErr
	}

	return exec, nil
}

func (e *Executor) rollBackCompleted(ctx context.Context, exec *Execution, failedIdx int) {
	if e.rollback == nil {
		return
	}
	if err := e.rollback(ctx); err != nil {
		e.log.Error("rollback failed", zap.Error(err))
		return
	}
	for i := 0; i < failedIdx; i++ {
		if exec.Results[i].State == StateDone {
			exec.Results[i].State = StateRolledBack
		}
	}
}
