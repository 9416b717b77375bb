package casefile

import (
	"errors"
	"fmt"
)

// Status is the lifecycle position of a case. Statuses form a fixed total
// order; the engine only ever moves a case forward through it.
type Status string

const (
	StatusEligible                 Status = "Eligible"
	StatusAdminValidated           Status = "AdminValidated"
	StatusExpertValidated          Status = "ExpertValidated"
	StatusCharterSigned            Status = "CharterSigned"
	StatusAuditInProgress          Status = "AuditInProgress"
	StatusAuditCompleted           Status = "AuditCompleted"
	StatusFinalValidation          Status = "FinalValidation"
	StatusImplementationInProgress Status = "ImplementationInProgress"
	StatusImplementationValidated  Status = "ImplementationValidated"
	StatusPaymentRequested         Status = "PaymentRequested"
	StatusPaymentInProgress        Status = "PaymentInProgress"
	StatusRefundCompleted          Status = "RefundCompleted"
)

// ErrUnknownStatus is returned for any status value outside the known enum.
// An unrecognized status must never be treated as "already complete".
var ErrUnknownStatus = errors.New("casefile: unknown status")

var statusOrder = []Status{
	StatusEligible,
	StatusAdminValidated,
	StatusExpertValidated,
	StatusCharterSigned,
	StatusAuditInProgress,
	StatusAuditCompleted,
	StatusFinalValidation,
	StatusImplementationInProgress,
	StatusImplementationValidated,
	StatusPaymentRequested,
	StatusPaymentInProgress,
	StatusRefundCompleted,
}

var statusIndex = func() map[Status]int {
	m := make(map[Status]int, len(statusOrder))
	for i, s := range statusOrder {
		m[s] = i
	}
	return m
}()

// Statuses returns the full pipeline order, initial status first.
func Statuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// Index returns the position of s in the pipeline order.
func (s Status) Index() (int, error) {
	i, ok := statusIndex[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
	return i, nil
}

// Valid reports whether s is part of the known enum.
func (s Status) Valid() bool {
	_, ok := statusIndex[s]
	return ok
}

// IsTerminal reports whether s is the end of the pipeline.
func (s Status) IsTerminal() bool {
	return s == StatusRefundCompleted
}

// HasReachedOrPassed reports whether current sits at or beyond target in the
// pipeline order. A stage targeting `target` must run iff this returns
// false. Either status being outside the enum is an error, never a skip.
func HasReachedOrPassed(current, target Status) (bool, error) {
	ci, err := current.Index()
	if err != nil {
		return false, err
	}
	ti, err := target.Index()
	if err != nil {
		return false, err
	}
	return ci >= ti, nil
}
