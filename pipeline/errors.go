package pipeline

import "errors"

// Fatal error classes. Anything wrapping one of these aborts the run;
// timeline and notification failures are handled where they occur and never
// reach the caller as errors.
var (
	// ErrConfiguration marks a collaborator or stage table problem detected
	// before any stage runs.
	ErrConfiguration = errors.New("pipeline: configuration error")
	// ErrLookup marks a case or stakeholder context that cannot be resolved.
	ErrLookup = errors.New("pipeline: lookup error")
	// ErrPersistence marks a failed stage write. The case stays at its last
	// persisted stage and a later run resumes safely.
	ErrPersistence = errors.New("pipeline: persistence error")
)
