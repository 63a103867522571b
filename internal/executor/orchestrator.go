package executor

import (
	"context"

	"github.com/rs/zerolog"

	"blockplan/internal/config"
	"blockplan/internal/disks"
	"blockplan/internal/layout"
	"blockplan/internal/plan"
)

// Phase is the run state machine. Each run starts from Idle; there is no
// resumption across runs.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhasePlanning   Phase = "planning"
	PhaseExecuting  Phase = "executing"
	PhaseCompleted  Phase = "completed"
	PhaseHalted     Phase = "halted"
)

// Orchestrator drives one run: validate, preflight, plan, execute,
// report. It never mutates the spec it is given.
type Orchestrator struct {
	cfg  config.Config
	log  zerolog.Logger
	exec *Executor

	phase Phase

	// seams for tests
	preflight func(context.Context, *layout.LayoutSpec) error
	discover  func(context.Context) ([]disks.Device, error)
}

func NewOrchestrator(cfg config.Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		exec:      New(cfg, log),
		phase:     PhaseIdle,
		preflight: disks.Preflight,
		discover:  disks.Collect,
	}
}

func (o *Orchestrator) Phase() Phase { return o.phase }

// Executor exposes the executor so the CLI can attach a progress hook.
func (o *Orchestrator) Executor() *Executor { return o.exec }

// Plan validates the spec and builds the ordered step list without
// executing anything. Device sizes come from discovery when available;
// discovery failure only costs the wipe step its tail zeroing.
func (o *Orchestrator) Plan(ctx context.Context, spec *layout.LayoutSpec) (*plan.Plan, error) {
	o.phase = PhaseValidating
	if err := spec.Validate(); err != nil {
		o.phase = PhaseHalted
		return nil, err
	}
	o.phase = PhasePlanning
	pl, err := plan.Build(spec, o.deviceSizes(ctx, spec))
	if err != nil {
		o.phase = PhaseHalted
		return nil, err
	}
	return pl, nil
}

// Run is the single entry point for a full provisioning run.
func (o *Orchestrator) Run(ctx context.Context, spec *layout.LayoutSpec) (*RunReport, error) {
	o.phase = PhaseValidating
	if err := spec.Validate(); err != nil {
		o.phase = PhaseHalted
		return nil, err
	}
	if err := o.preflight(ctx, spec); err != nil {
		o.phase = PhaseHalted
		return nil, err
	}
	o.phase = PhasePlanning
	pl, err := plan.Build(spec, o.deviceSizes(ctx, spec))
	if err != nil {
		o.phase = PhaseHalted
		return nil, err
	}
	o.log.Info().Str("run", pl.RunID).Int("steps", len(pl.Steps)).Int("disks", pl.DiskCount()).Msg("executing plan")

	o.phase = PhaseExecuting
	report := o.exec.Execute(ctx, pl)
	if report.Completed {
		report.Fstab = FstabSuggestions(spec)
		o.phase = PhaseCompleted
	} else {
		o.phase = PhaseHalted
	}
	return report, nil
}

func (o *Orchestrator) deviceSizes(ctx context.Context, spec *layout.LayoutSpec) map[string]int64 {
	devs, err := o.discover(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("device discovery failed; wipe will only zero device heads")
		return nil
	}
	byPath := map[string]int64{}
	for _, d := range devs {
		if d.Type == "disk" {
			byPath[d.Path] = d.SizeBytes
		}
	}
	sizes := map[string]int64{}
	for _, d := range spec.Disks {
		if n, ok := byPath[d.Device]; ok && n > 0 {
			sizes[d.ID] = n
		}
	}
	return sizes
}
