// Package executor runs a plan: independent disk chains in parallel,
// dependency barriers between steps, fail-fast on destructive failures.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"blockplan/internal/config"
	"blockplan/internal/plan"
	"blockplan/pkg/shell"
)

type Executor struct {
	cfg config.Config
	log zerolog.Logger
	// run is swappable so tests never touch real block devices.
	run shell.RunFunc
	// OnStepDone, when set, observes every recorded result (progress UI).
	OnStepDone func(StepResult)
}

func New(cfg config.Config, log zerolog.Logger) *Executor {
	return &Executor{cfg: cfg, log: log, run: shell.Run}
}

const (
	statePending = iota
	stateRunning
	stateDone
)

type event struct {
	idx int
	res StepResult
}

// Execute runs the plan to completion or halt. The report lists every
// step in plan order; results are accumulated by the scheduling goroutine
// only, workers hand them over on a channel.
func (e *Executor) Execute(ctx context.Context, pl *plan.Plan) *RunReport {
	started := time.Now()
	n := len(pl.Steps)
	report := &RunReport{RunID: pl.RunID, StartedAt: started, Results: make([]StepResult, n)}

	index := map[string]int{}
	for i := range pl.Steps {
		index[pl.Steps[i].ID] = i
		report.Results[i] = StepResult{
			StepID:      pl.Steps[i].ID,
			Kind:        pl.Steps[i].Kind,
			Description: pl.Steps[i].Description,
		}
	}

	state := make([]int, n)
	workers := e.cfg.EffectiveWorkers(pl.DiskCount())
	events := make(chan event)
	running := 0
	halted := false
	canceled := false
	failedDisks := map[string]bool{}

	depsSatisfied := func(i int) bool {
		for _, dep := range pl.Steps[i].DependsOn {
			j := index[dep]
			if state[j] != stateDone || report.Results[j].Outcome != OutcomeSucceeded {
				return false
			}
		}
		return true
	}
	depFailed := func(i int) bool {
		for _, dep := range pl.Steps[i].DependsOn {
			j := index[dep]
			if state[j] == stateDone && report.Results[j].Outcome != OutcomeSucceeded {
				return true
			}
		}
		return false
	}
	onFailedDisk := func(i int) bool {
		for _, d := range pl.Steps[i].Disks {
			if failedDisks[d] {
				return true
			}
		}
		return false
	}
	skip := func(i int, why string) {
		state[i] = stateDone
		report.Results[i].Outcome = OutcomeSkipped
		report.Results[i].Detail = why
		if e.OnStepDone != nil {
			e.OnStepDone(report.Results[i])
		}
	}

	for {
		if ctx.Err() != nil {
			canceled = true
		}
		// propagate skips until stable
		for changed := true; changed; {
			changed = false
			for i := 0; i < n; i++ {
				if state[i] != statePending {
					continue
				}
				switch {
				case canceled:
					skip(i, "run canceled")
				case halted:
					skip(i, "run halted by earlier failure")
				case depFailed(i):
					skip(i, "dependency did not succeed")
				case onFailedDisk(i):
					skip(i, "disk chain halted by earlier failure")
				default:
					continue
				}
				changed = true
			}
		}
		// launch everything runnable, in plan order
		if !halted && !canceled {
			for i := 0; i < n && running < workers; i++ {
				if state[i] != statePending || !depsSatisfied(i) {
					continue
				}
				state[i] = stateRunning
				running++
				step := &pl.Steps[i]
				idx := i
				go func() {
					events <- event{idx: idx, res: e.runStep(ctx, step)}
				}()
			}
		}
		if running == 0 {
			break
		}
		ev := <-events
		running--
		state[ev.idx] = stateDone
		report.Results[ev.idx] = ev.res
		if e.OnStepDone != nil {
			e.OnStepDone(ev.res)
		}
		if ev.res.Outcome == OutcomeFailed {
			step := &pl.Steps[ev.idx]
			e.log.Error().Str("step", step.ID).Str("kind", string(ev.res.ErrorKind)).Msg(ev.res.Detail)
			for _, d := range step.Disks {
				failedDisks[d] = true
			}
			if e.cfg.StopOnFailure {
				halted = true
			}
		}
	}

	report.Elapsed = time.Since(started)
	report.Completed = report.FirstFailure() == nil && !canceled
	return report
}

// runStep executes a step's command sequence, retrying non-destructive
// steps per policy. Destructive commands run detached from the run
// context: an operator abort never kills a mid-flight partitioning or
// formatting command.
func (e *Executor) runStep(ctx context.Context, st *plan.Step) StepResult {
	now := time.Now()
	res := StepResult{
		StepID:      st.ID,
		Kind:        st.Kind,
		Description: st.Description,
		StartedAt:   &now,
	}
	attempts := 1
	if !st.Destructive {
		attempts += e.cfg.Retries
	}
	for a := 0; a < attempts; a++ {
		if a > 0 {
			res.Retries++
			select {
			case <-ctx.Done():
				res.Outcome = OutcomeFailed
				res.ErrorKind = ErrKindCanceled
				res.Detail = "run canceled during retry backoff"
				res.Duration = time.Since(now)
				return res
			case <-time.After(e.cfg.RetryBackoff):
			}
		}
		kind, detail, ok := e.runCommands(ctx, st)
		if ok {
			res.Outcome = OutcomeSucceeded
			res.ErrorKind = ""
			res.Detail = ""
			res.Duration = time.Since(now)
			return res
		}
		res.ErrorKind = kind
		res.Detail = detail
		if kind == ErrKindCanceled || kind == ErrKindNotFound {
			break // retrying cannot help
		}
	}
	res.Outcome = OutcomeFailed
	res.Duration = time.Since(now)
	return res
}

func (e *Executor) runCommands(ctx context.Context, st *plan.Step) (ErrorKind, string, bool) {
	for _, c := range st.Commands {
		cmdCtx := ctx
		timeout := e.cfg.CommandTimeout
		if st.Destructive {
			cmdCtx = context.Background()
			timeout = e.cfg.DestructiveTimeout
		}
		e.log.Debug().Str("step", st.ID).Str("cmd", c.String()).Msg("running")
		out, err := e.run(cmdCtx, timeout, c.Name, c.Args...)
		if err == nil {
			continue
		}
		if c.BestEffort {
			e.log.Debug().Str("step", st.ID).Str("cmd", c.Name).Msg("best-effort command failed, continuing")
			continue
		}
		switch {
		case errors.Is(err, shell.ErrTimeout):
			return ErrKindTimeout, fmt.Sprintf("%s: timed out", c.String()), false
		case errors.Is(err, shell.ErrNotFound):
			return ErrKindNotFound, fmt.Sprintf("%s: not found in PATH", c.Name), false
		case ctx.Err() != nil && !st.Destructive:
			return ErrKindCanceled, fmt.Sprintf("%s: interrupted", c.String()), false
		default:
			detail := fmt.Sprintf("%s: exit %d", c.String(), out.Code)
			if s := out.ErrText(); s != "" {
				detail += ": " + s
			}
			return ErrKindExit, detail, false
		}
	}
	return "", "", true
}
