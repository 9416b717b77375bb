package pipeline

import (
	"strings"
	"testing"
	"time"

	"caseflow/casefile"
	"caseflow/metadata"
	"caseflow/notify"
)

func decodeTree(t *testing.T, doc string) metadata.Tree {
	t.Helper()
	tree, err := metadata.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode %q: %v", doc, err)
	}
	return tree
}

func stageFor(t *testing.T, target casefile.Status) Definition {
	t.Helper()
	for _, def := range Stages(nil) {
		if def.Target == target {
			return def
		}
	}
	t.Fatalf("no stage targets %s", target)
	return Definition{}
}

func TestStageTableIsWellFormed(t *testing.T) {
	stages := Stages(nil)
	if err := validateStages(stages); err != nil {
		t.Fatalf("validateStages: %v", err)
	}

	seen := map[string]bool{}
	for _, def := range stages {
		if seen[def.Label] {
			t.Errorf("duplicate stage label %q", def.Label)
		}
		seen[def.Label] = true
	}
}

func TestAuditCompletionFixesAmountFromEstimate(t *testing.T) {
	def := stageFor(t, casefile.StatusAuditCompleted)
	c := testCase(casefile.StatusAuditInProgress)

	effect := def.Build(c, testStakeholders(), time.Now())

	if effect.FinalAmount == nil || *effect.FinalAmount != 48000 {
		t.Fatalf("expected final amount 48000, got %v", effect.FinalAmount)
	}
	v, ok := effect.Patch.Get("audit", "finalAmount")
	if !ok || v.Number() != 48000 {
		t.Errorf("expected audit.finalAmount 48000 in patch, got %v (present=%v)", v.Number(), ok)
	}
}

func TestAuditCompletionWithoutEstimate(t *testing.T) {
	def := stageFor(t, casefile.StatusAuditCompleted)
	c := testCase(casefile.StatusAuditInProgress)
	c.Metadata = nil

	effect := def.Build(c, testStakeholders(), time.Now())

	if effect.FinalAmount != nil {
		t.Errorf("expected no final amount without an estimate, got %v", *effect.FinalAmount)
	}
}

func TestAuditCompletionRespectsExistingAmount(t *testing.T) {
	def := stageFor(t, casefile.StatusAuditCompleted)
	c := testCase(casefile.StatusAuditInProgress)
	existing := 9000.0
	c.FinalAmount = &existing

	effect := def.Build(c, testStakeholders(), time.Now())

	if effect.FinalAmount != nil {
		t.Errorf("amount already fixed, stage must not propose another: %v", *effect.FinalAmount)
	}
}

func TestPaymentRequestUsesRatesFromMetadata(t *testing.T) {
	def := stageFor(t, casefile.StatusPaymentRequested)
	c := testCase(casefile.StatusImplementationValidated)
	amount := 1000.0
	c.FinalAmount = &amount
	c.Metadata = decodeTree(t, `{"fees": {"clientRate": 50, "platformRate": 0.1, "taxRate": 0}}`)

	effect := def.Build(c, testStakeholders(), time.Now())

	want := map[string]float64{
		"stageFee":         500.00,
		"platformFeeNet":   50.00,
		"tax":              0.00,
		"platformFeeGross": 50.00,
	}
	for key, w := range want {
		v, ok := effect.Patch.Get("fees", key)
		if !ok {
			t.Fatalf("missing fees.%s in patch", key)
		}
		if v.Number() != w {
			t.Errorf("fees.%s = %v, want %v", key, v.Number(), w)
		}
	}
}

func TestCharterStageToleratesUnassignedProfessional(t *testing.T) {
	def := stageFor(t, casefile.StatusCharterSigned)
	stk := testStakeholders()
	stk.Professional = nil

	effect := def.Build(testCase(casefile.StatusExpertValidated), stk, time.Now())

	var proNote *notify.Notification
	for i := range effect.Notifications {
		if effect.Notifications[i].RecipientRole == casefile.RoleProfessional {
			proNote = &effect.Notifications[i]
		}
	}
	if proNote == nil {
		t.Fatal("expected a professional-targeted notification")
	}
	if proNote.RecipientID != nil {
		t.Errorf("unassigned professional must yield a nil recipient, got %q", *proNote.RecipientID)
	}
}

func TestNotificationsCarrySignedLinks(t *testing.T) {
	links := notify.NewLinkSigner("https://portal.example", "secret", time.Hour)
	var def Definition
	for _, d := range Stages(links) {
		if d.Target == casefile.StatusAdminValidated {
			def = d
		}
	}

	effect := def.Build(testCase(casefile.StatusEligible), testStakeholders(), time.Now())

	for _, n := range effect.Notifications {
		if n.RecipientID == nil {
			continue
		}
		if !strings.HasPrefix(n.ActionURL, "https://portal.example/cases/case-1?token=") {
			t.Errorf("recipient %s: unexpected action url %q", *n.RecipientID, n.ActionURL)
		}
	}
}
