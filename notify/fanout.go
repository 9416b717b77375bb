// Package notify fans notifications out to case stakeholders. Delivery
// itself is owned by an external relay draining the outbox table; the
// engine's job ends at a durable per-recipient record.
package notify

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"caseflow/metadata"
)

// Priority classifies how urgently a notification should surface.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is one message for one recipient. A nil RecipientID means
// there is no stakeholder to notify in that role and the entry is skipped.
type Notification struct {
	RecipientID   *string
	RecipientRole string
	Title         string
	Message       string
	Priority      Priority
	ActionURL     string
	Metadata      metadata.Tree
}

// Dispatcher delivers a single notification.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// Failure records a dispatch that did not go through. One recipient failing
// never blocks the others.
type Failure struct {
	RecipientID   string
	RecipientRole string
	Err           error
}

const maxConcurrentDispatches = 4

// Fanout dispatches each notification with a non-nil recipient, bounded
// concurrently. Failures are isolated per recipient and returned; the error
// group itself never fails. Ordering between recipients is not guaranteed.
func Fanout(ctx context.Context, d Dispatcher, notes []Notification) []Failure {
	var (
		mu       sync.Mutex
		failures []Failure
	)

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentDispatches)

	for _, n := range notes {
		if n.RecipientID == nil {
			continue
		}
		g.Go(func() error {
			if err := d.Send(ctx, n); err != nil {
				mu.Lock()
				failures = append(failures, Failure{
					RecipientID:   *n.RecipientID,
					RecipientRole: n.RecipientRole,
					Err:           err,
				})
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return failures
}
