package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"caseflow/casefile"
	"caseflow/metadata"
	"caseflow/notify"
	"caseflow/timeline"
)

// CaseStore is the persistence collaborator. The persisted case is the
// single source of truth for "has this stage happened".
type CaseStore interface {
	GetCaseAndStakeholders(ctx context.Context, lookupKey string) (casefile.Case, casefile.StakeholderContext, error)
	UpdateCase(ctx context.Context, id string, patch casefile.UpdatePatch) (casefile.Case, error)
}

// TimelineStore appends audit events. Failures here are recoverable.
type TimelineStore interface {
	Append(ctx context.Context, e timeline.Event) error
}

// SideEffectFailure records a timeline or notification failure that was
// logged and absorbed without aborting the run.
type SideEffectFailure struct {
	Stage     string
	Recipient string
	Err       error
}

// executor applies one stage: mutate, persist, then side effects. The
// persist is fatal on failure; timeline and notifications are not.
type executor struct {
	store             CaseStore
	timeline          TimelineStore
	dispatcher        notify.Dispatcher
	log               *slog.Logger
	persistTimeout    time.Duration
	sideEffectTimeout time.Duration
}

func (e *executor) runStage(ctx context.Context, c casefile.Case, stk casefile.StakeholderContext, def Definition, eventDate time.Time) (casefile.Case, []SideEffectFailure, error) {
	stepIndex := max(c.StepIndex, def.StepFloor)
	progress := max(c.ProgressPercent, def.ProgressFloor)

	effect := def.Build(c, stk, eventDate)

	patch := casefile.UpdatePatch{
		Status:          def.Target,
		StepIndex:       stepIndex,
		ProgressPercent: progress,
		Metadata:        metadata.Merge(c.Metadata, effect.Patch),
	}
	// Set-once: never overwrite an amount already on the record.
	if effect.FinalAmount != nil && c.FinalAmount == nil {
		patch.FinalAmount = effect.FinalAmount
	}

	persistCtx, cancel := context.WithTimeout(ctx, e.persistTimeout)
	updated, err := e.store.UpdateCase(persistCtx, c.ID, patch)
	cancel()
	if err != nil {
		return c, nil, fmt.Errorf("stage %s: persist case: %w: %w", def.Label, ErrPersistence, err)
	}

	var failures []SideEffectFailure

	event := timeline.Event{
		CaseID:      updated.ID,
		Date:        eventDate,
		ActorType:   timeline.ActorSystem,
		Title:       effect.Timeline.Title,
		Description: effect.Timeline.Description,
		ColorTag:    effect.Timeline.ColorTag,
		Metadata:    effect.Timeline.Metadata,
	}
	tlCtx, cancel := context.WithTimeout(ctx, e.sideEffectTimeout)
	err = e.timeline.Append(tlCtx, event)
	cancel()
	if err != nil {
		e.log.Warn("pipeline: timeline append failed",
			"caseId", updated.ID, "stage", def.Label, "error", err)
		failures = append(failures, SideEffectFailure{Stage: def.Label, Err: err})
	}

	fanCtx, cancel := context.WithTimeout(ctx, e.sideEffectTimeout)
	dispatchFailures := notify.Fanout(fanCtx, e.dispatcher, effect.Notifications)
	cancel()
	for _, f := range dispatchFailures {
		e.log.Warn("pipeline: notification dispatch failed",
			"caseId", updated.ID, "stage", def.Label,
			"recipientId", f.RecipientID, "recipientRole", f.RecipientRole, "error", f.Err)
		failures = append(failures, SideEffectFailure{Stage: def.Label, Recipient: f.RecipientID, Err: f.Err})
	}

	return updated, failures, nil
}
