package executor

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"blockplan/internal/plan"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

type ErrorKind string

const (
	ErrKindTimeout  ErrorKind = "timeout"
	ErrKindNotFound ErrorKind = "command-not-found"
	ErrKindExit     ErrorKind = "non-zero-exit"
	ErrKindCanceled ErrorKind = "canceled"
)

// StepResult is the recorded outcome of one step.
type StepResult struct {
	StepID      string        `json:"stepId"`
	Kind        plan.Kind     `json:"kind"`
	Description string        `json:"description"`
	Outcome     Outcome       `json:"outcome"`
	ErrorKind   ErrorKind     `json:"errorKind,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	Retries     int           `json:"retries"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// RunReport aggregates every step outcome for one run. It is the only
// output of a run; nothing is persisted.
type RunReport struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
	Completed bool          `json:"completed"`
	Results   []StepResult  `json:"results"`
	Fstab     []string      `json:"fstab,omitempty"`
}

// FirstFailure returns the first failed step, or nil.
func (r *RunReport) FirstFailure() *StepResult {
	for i := range r.Results {
		if r.Results[i].Outcome == OutcomeFailed {
			return &r.Results[i]
		}
	}
	return nil
}

// WriteJSON renders the report as indented JSON.
func (r *RunReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteTable renders a human-readable summary.
func (r *RunReport) WriteTable(w io.Writer) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%-28s %-10s %-10s %8s %10s  %s\n", "STEP", "KIND", "OUTCOME", "RETRIES", "DURATION", "DETAIL")
	for _, res := range r.Results {
		out := string(res.Outcome)
		switch res.Outcome {
		case OutcomeSucceeded:
			out = green(out)
		case OutcomeFailed:
			out = red(out)
		case OutcomeSkipped:
			out = yellow(out)
		}
		detail := res.Detail
		if res.ErrorKind != "" {
			detail = fmt.Sprintf("[%s] %s", res.ErrorKind, detail)
		}
		fmt.Fprintf(w, "%-28s %-10s %-10s %8d %10s  %s\n",
			res.StepID, res.Kind, out, res.Retries, res.Duration.Round(time.Millisecond), detail)
	}
	fmt.Fprintln(w)
	if r.Completed {
		fmt.Fprintf(w, "%s in %s\n", green("Completed"), r.Elapsed.Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "%s after %s", red("Halted"), r.Elapsed.Round(time.Millisecond))
		if f := r.FirstFailure(); f != nil {
			fmt.Fprintf(w, " (first failure: %s)", f.StepID)
		}
		fmt.Fprintln(w)
	}
	if len(r.Fstab) > 0 && r.Completed {
		fmt.Fprintln(w, "\nSuggested fstab entries:")
		for _, line := range r.Fstab {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
