package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"caseflow/casefile"
	"caseflow/notify"
)

const (
	defaultPersistTimeout    = 5 * time.Second
	defaultSideEffectTimeout = 3 * time.Second
)

// Driver iterates the stage table against a case, executing every stage the
// case has not yet reached. Re-running an already-advanced case executes
// zero stages; that idempotence is what the rest of the system leans on.
type Driver struct {
	exec   *executor
	stages []Definition
	log    *slog.Logger
	now    func() time.Time
}

// Summary reports what one run actually did.
type Summary struct {
	CaseID             string
	FinalStatus        casefile.Status
	ProgressPercent    int
	StagesExecuted     int
	SideEffectFailures []SideEffectFailure
}

// New validates the collaborators and the stage table. Every non-initial
// status must be targeted by exactly one definition, in ascending pipeline
// order, so the driver can trust positional event-date synthesis.
func New(store CaseStore, tl TimelineStore, dispatcher notify.Dispatcher, stages []Definition, log *slog.Logger) (*Driver, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil case store", ErrConfiguration)
	}
	if tl == nil {
		return nil, fmt.Errorf("%w: nil timeline store", ErrConfiguration)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: nil notification dispatcher", ErrConfiguration)
	}
	if log == nil {
		log = slog.Default()
	}
	if err := validateStages(stages); err != nil {
		return nil, err
	}

	return &Driver{
		exec: &executor{
			store:             store,
			timeline:          tl,
			dispatcher:        dispatcher,
			log:               log,
			persistTimeout:    defaultPersistTimeout,
			sideEffectTimeout: defaultSideEffectTimeout,
		},
		stages: stages,
		log:    log,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source used for synthesized event dates.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

// WithTimeouts overrides the per-call bounds on persistence and side-effect
// calls.
func (d *Driver) WithTimeouts(persist, sideEffect time.Duration) *Driver {
	if persist > 0 {
		d.exec.persistTimeout = persist
	}
	if sideEffect > 0 {
		d.exec.sideEffectTimeout = sideEffect
	}
	return d
}

// Run loads the case and stakeholder context once, then walks the stage
// table in order. A persistence failure aborts the remaining run; the case
// stays at its last successfully persisted stage and a later run resumes.
func (d *Driver) Run(ctx context.Context, lookupKey string) (Summary, error) {
	c, stk, err := d.exec.store.GetCaseAndStakeholders(ctx, lookupKey)
	if err != nil {
		return Summary{}, fmt.Errorf("resolve case %q: %w: %w", lookupKey, ErrLookup, err)
	}

	summary := Summary{CaseID: c.ID}
	base := d.now().UTC()

	for i, def := range d.stages {
		if err := ctx.Err(); err != nil {
			summary.FinalStatus = c.Status
			summary.ProgressPercent = c.ProgressPercent
			return summary, fmt.Errorf("pipeline: run interrupted before stage %s: %w", def.Label, err)
		}

		reached, err := casefile.HasReachedOrPassed(c.Status, def.Target)
		if err != nil {
			// A status outside the enum must fail loudly, never read as
			// "already complete".
			summary.FinalStatus = c.Status
			summary.ProgressPercent = c.ProgressPercent
			return summary, fmt.Errorf("case %s: %w: %w", c.ID, ErrLookup, err)
		}
		if reached {
			continue
		}

		// Each executed stage gets a later logical date than the one
		// before it, keeping the recorded history strictly increasing.
		eventDate := base.Add(time.Duration(i) * time.Second)

		updated, failures, err := d.exec.runStage(ctx, c, stk, def, eventDate)
		if err != nil {
			summary.FinalStatus = c.Status
			summary.ProgressPercent = c.ProgressPercent
			return summary, err
		}

		c = updated
		summary.StagesExecuted++
		summary.SideEffectFailures = append(summary.SideEffectFailures, failures...)

		d.log.Info("pipeline: stage applied",
			"caseId", c.ID,
			"stage", def.Label,
			"status", string(c.Status),
			"progress", c.ProgressPercent)
	}

	summary.FinalStatus = c.Status
	summary.ProgressPercent = c.ProgressPercent
	return summary, nil
}

func validateStages(stages []Definition) error {
	expected := casefile.Statuses()[1:]
	if len(stages) != len(expected) {
		return fmt.Errorf("%w: stage table has %d definitions, want %d", ErrConfiguration, len(stages), len(expected))
	}

	prevStep, prevProgress := 0, 0
	for i, def := range stages {
		if def.Target != expected[i] {
			return fmt.Errorf("%w: stage %d targets %q, want %q", ErrConfiguration, i, def.Target, expected[i])
		}
		if def.Build == nil {
			return fmt.Errorf("%w: stage %s has no builder", ErrConfiguration, def.Label)
		}
		if def.StepFloor <= prevStep {
			return fmt.Errorf("%w: stage %s step floor %d not ascending", ErrConfiguration, def.Label, def.StepFloor)
		}
		if def.ProgressFloor <= prevProgress || def.ProgressFloor > 100 {
			return fmt.Errorf("%w: stage %s progress floor %d invalid", ErrConfiguration, def.Label, def.ProgressFloor)
		}
		prevStep, prevProgress = def.StepFloor, def.ProgressFloor
	}

	if last := stages[len(stages)-1]; last.ProgressFloor != 100 {
		return fmt.Errorf("%w: terminal stage %s must pin progress at 100", ErrConfiguration, last.Label)
	}
	return nil
}
