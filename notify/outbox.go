package notify

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/metadata"
)

// OutboxDispatcher records each notification as one outbox row. A delivery
// relay outside this module drains the table.
type OutboxDispatcher struct {
	pool *pgxpool.Pool
}

func NewOutboxDispatcher(pool *pgxpool.Pool) *OutboxDispatcher {
	return &OutboxDispatcher{pool: pool}
}

// Send enqueues the notification under a role-scoped topic.
func (d *OutboxDispatcher) Send(ctx context.Context, n Notification) error {
	if n.RecipientID == nil {
		return nil
	}

	payload := map[string]any{
		"recipient_id":   *n.RecipientID,
		"recipient_role": n.RecipientRole,
		"title":          n.Title,
		"message":        n.Message,
		"priority":       string(n.Priority),
	}
	if n.ActionURL != "" {
		payload["action_url"] = n.ActionURL
	}
	if len(n.Metadata) > 0 {
		payload["metadata"] = metadata.Map(n.Metadata).ToAny()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal outbox payload: %w", err)
	}

	topic := "notification." + n.RecipientRole
	if _, err := d.pool.Exec(ctx, `
INSERT INTO outbox (id, topic, payload)
VALUES ($1, $2, $3::jsonb)
`, uuid.NewString(), topic, body); err != nil {
		return fmt.Errorf("notify: enqueue outbox: %w", err)
	}
	return nil
}
