package casefile

import (
	"errors"
	"testing"
)

func TestStatusOrderIsTotal(t *testing.T) {
	all := Statuses()
	if len(all) != 12 {
		t.Fatalf("expected 12 statuses, got %d", len(all))
	}
	if all[0] != StatusEligible {
		t.Errorf("expected Eligible first, got %s", all[0])
	}
	if all[len(all)-1] != StatusRefundCompleted {
		t.Errorf("expected RefundCompleted last, got %s", all[len(all)-1])
	}

	for i, s := range all {
		idx, err := s.Index()
		if err != nil {
			t.Fatalf("index of %s: %v", s, err)
		}
		if idx != i {
			t.Errorf("status %s: index %d, want %d", s, idx, i)
		}
	}
}

func TestHasReachedOrPassed(t *testing.T) {
	tests := []struct {
		current Status
		target  Status
		want    bool
	}{
		{StatusEligible, StatusAdminValidated, false},
		{StatusAdminValidated, StatusAdminValidated, true},
		{StatusRefundCompleted, StatusAdminValidated, true},
		{StatusAuditCompleted, StatusPaymentRequested, false},
		{StatusPaymentInProgress, StatusRefundCompleted, false},
		{StatusRefundCompleted, StatusRefundCompleted, true},
	}
	for _, tt := range tests {
		got, err := HasReachedOrPassed(tt.current, tt.target)
		if err != nil {
			t.Fatalf("HasReachedOrPassed(%s, %s): %v", tt.current, tt.target, err)
		}
		if got != tt.want {
			t.Errorf("HasReachedOrPassed(%s, %s) = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestHasReachedOrPassedRejectsUnknownStatus(t *testing.T) {
	// An unrecognized status must error out, never read as "past
	// everything", which would silently skip the whole pipeline.
	if _, err := HasReachedOrPassed(Status("Bogus"), StatusAdminValidated); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("unknown current status: got %v, want ErrUnknownStatus", err)
	}
	if _, err := HasReachedOrPassed(StatusEligible, Status("Bogus")); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("unknown target status: got %v, want ErrUnknownStatus", err)
	}
}

func TestStatusValidity(t *testing.T) {
	if !StatusCharterSigned.Valid() {
		t.Error("CharterSigned should be valid")
	}
	if Status("Eligibl").Valid() {
		t.Error("typo status should be invalid")
	}
	if !StatusRefundCompleted.IsTerminal() {
		t.Error("RefundCompleted should be terminal")
	}
	if StatusPaymentInProgress.IsTerminal() {
		t.Error("PaymentInProgress should not be terminal")
	}
}
