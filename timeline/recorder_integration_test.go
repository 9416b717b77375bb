package timeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/metadata"
	"caseflow/test/infra"
	"caseflow/timeline"
)

func setupCase(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg, dsn, err := infra.StartPostgres16(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	pool, err := infra.ApplyMigrations(ctx, dsn)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(pool.Close)

	var customerID string
	err = pool.QueryRow(ctx, `
INSERT INTO users (role, full_name, email) VALUES ('customer', 'Ada Martin', 'ada@example.com') RETURNING id::text
`).Scan(&customerID)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	var caseID string
	err = pool.QueryRow(ctx, `
INSERT INTO cases (customer_id) VALUES ($1) RETURNING id::text
`, customerID).Scan(&caseID)
	if err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return pool, caseID
}

func TestRecorderAppendsInOrder(t *testing.T) {
	pool, caseID := setupCase(t)
	ctx := context.Background()
	rec := timeline.NewRecorder(pool)
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		err := rec.Append(ctx, timeline.Event{
			CaseID:    caseID,
			Date:      base.Add(time.Duration(i) * time.Second),
			ActorType: timeline.ActorSystem,
			Title:     "Stage applied",
			Metadata:  metadata.Tree{"step": metadata.Number(float64(i))},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	n, err := rec.CountForCase(ctx, caseID)
	if err != nil {
		t.Fatalf("CountForCase: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 events, got %d", n)
	}
}

func TestRecorderRejectsBackdatedEvent(t *testing.T) {
	pool, caseID := setupCase(t)
	ctx := context.Background()
	rec := timeline.NewRecorder(pool)
	base := time.Now().UTC().Truncate(time.Second)

	if err := rec.Append(ctx, timeline.Event{
		CaseID: caseID, Date: base, ActorType: timeline.ActorSystem, Title: "First",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := rec.Append(ctx, timeline.Event{
		CaseID: caseID, Date: base.Add(-time.Minute), ActorType: timeline.ActorSystem, Title: "Backdated",
	})
	if !errors.Is(err, timeline.ErrOutOfOrder) {
		t.Fatalf("got %v, want ErrOutOfOrder", err)
	}

	n, err := rec.CountForCase(ctx, caseID)
	if err != nil {
		t.Fatalf("CountForCase: %v", err)
	}
	if n != 1 {
		t.Errorf("rejected event must not be stored, got %d events", n)
	}
}

func TestRecorderValidatesEvent(t *testing.T) {
	pool, caseID := setupCase(t)
	ctx := context.Background()
	rec := timeline.NewRecorder(pool)

	if err := rec.Append(ctx, timeline.Event{Date: time.Now(), ActorType: timeline.ActorSystem, Title: "No case"}); err == nil {
		t.Error("expected error for missing case id")
	}
	if err := rec.Append(ctx, timeline.Event{CaseID: caseID, Date: time.Now(), ActorType: timeline.ActorSystem}); err == nil {
		t.Error("expected error for missing title")
	}
	if err := rec.Append(ctx, timeline.Event{CaseID: caseID, ActorType: timeline.ActorSystem, Title: "No date"}); err == nil {
		t.Error("expected error for missing date")
	}
}
