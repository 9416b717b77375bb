// Package timeline writes the append-only audit trail of case state
// changes. Events carry a caller-supplied logical date so a full pipeline
// run can record a believable, strictly increasing history even when every
// stage executes within milliseconds.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/metadata"
)

// ActorType identifies the category of party behind a timeline event.
type ActorType string

const (
	ActorCustomer      ActorType = "customer"
	ActorProfessional  ActorType = "professional"
	ActorAdministrator ActorType = "administrator"
	ActorSystem        ActorType = "system"
)

// Event is one immutable entry in a case's timeline.
type Event struct {
	CaseID      string
	Date        time.Time
	ActorType   ActorType
	ActorID     *string
	Title       string
	Description string
	ColorTag    string
	Metadata    metadata.Tree
}

// ErrOutOfOrder is returned when an event predates the case's latest
// recorded event. Per-case dates must be non-decreasing.
var ErrOutOfOrder = errors.New("timeline: event predates latest recorded event")

// Recorder appends timeline events. There is deliberately no update or
// delete operation.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Append inserts one event. The single-writer-per-case contract makes the
// read-then-insert ordering check safe without a row lock.
func (r *Recorder) Append(ctx context.Context, e Event) error {
	if e.CaseID == "" {
		return fmt.Errorf("timeline: event missing case id")
	}
	if e.Title == "" {
		return fmt.Errorf("timeline: event missing title")
	}
	if e.Date.IsZero() {
		return fmt.Errorf("timeline: event missing date")
	}

	var latest *time.Time
	if err := r.pool.QueryRow(ctx, `
SELECT MAX(event_date) FROM timeline_events WHERE case_id = $1
`, e.CaseID).Scan(&latest); err != nil {
		return fmt.Errorf("timeline: read latest event date: %w", err)
	}
	if latest != nil && e.Date.Before(*latest) {
		return fmt.Errorf("%w: %s < %s", ErrOutOfOrder, e.Date.UTC().Format(time.RFC3339), latest.UTC().Format(time.RFC3339))
	}

	meta, err := metadata.Encode(e.Metadata)
	if err != nil {
		return fmt.Errorf("timeline: encode event metadata: %w", err)
	}

	var actorID any
	if e.ActorID != nil {
		actorID = *e.ActorID
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO timeline_events (case_id, event_date, actor_type, actor_id, title, description, color_tag, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
`, e.CaseID, e.Date.UTC(), string(e.ActorType), actorID, e.Title, e.Description, e.ColorTag, meta); err != nil {
		return fmt.Errorf("timeline: insert event: %w", err)
	}
	return nil
}

// CountForCase returns the number of recorded events for a case.
func (r *Recorder) CountForCase(ctx context.Context, caseID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM timeline_events WHERE case_id = $1
`, caseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("timeline: count events: %w", err)
	}
	return n, nil
}
