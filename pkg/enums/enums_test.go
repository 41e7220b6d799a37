package enums

import "testing"

func TestSubmissionStatusRankIsForwardOrdered(t *testing.T) {
	order := []SubmissionStatus{
		SubmissionStatusPreparing,
		SubmissionStatusAccepted,
		SubmissionStatusCompleted,
		SubmissionStatusPaid,
	}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("expected %s to rank after %s", order[i], order[i-1])
		}
	}
	if SubmissionStatus("served").Rank() != -1 {
		t.Fatal("unknown status should rank -1")
	}
}

func TestFlavorStatusParse(t *testing.T) {
	got, err := ParseFlavorStatus("flavor_accepted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != FlavorStatusAccepted {
		t.Fatalf("expected accepted, got %s", got)
	}
	if FlavorStatusCompleted.Rank() <= FlavorStatusAccepted.Rank() {
		t.Fatal("completed must rank after accepted")
	}
	if _, err := ParseFlavorStatus("accepted"); err == nil {
		t.Fatal("expected error for submission status used on flavor track")
	}
}

func TestParseMatchBy(t *testing.T) {
	got, err := ParseMatchBy(" ID ")
	if err != nil || got != MatchByID {
		t.Fatalf("expected id, got %q err=%v", got, err)
	}
	if _, err := ParseMatchBy("sku"); err == nil {
		t.Fatal("expected error for unknown match mode")
	}
}

func TestOutboxEventTypesValid(t *testing.T) {
	for _, evt := range validOutboxEventTypes {
		parsed, err := ParseOutboxEventType(string(evt))
		if err != nil || parsed != evt {
			t.Fatalf("round trip failed for %s: %v", evt, err)
		}
	}
	if OutboxEventType("order_created").IsValid() {
		t.Fatal("unexpected event type accepted")
	}
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	got, err := ParseOutboxDLQErrorReason("unresolvable")
	if err != nil || got != OutboxDLQReasonUnresolvable {
		t.Fatalf("expected unresolvable, got %q err=%v", got, err)
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatal("expected error for unknown reason")
	}
}
