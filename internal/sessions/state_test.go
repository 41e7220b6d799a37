package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
)

func billedSession(t *testing.T) *models.TableSession {
	t.Helper()
	session := &models.TableSession{TableNumber: 2}
	mustMerge(t, session, wings(1, "BBQ"))
	mustMerge(t, session, regular("Soda", "39", 1))
	return session
}

func TestAdvanceSubmissionStatusForwardAnyDistance(t *testing.T) {
	session := billedSession(t)

	change, err := AdvanceSubmissionStatus(session, 1, enums.SubmissionStatusCompleted, mergeNow)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if change.From != enums.SubmissionStatusPreparing || change.To != enums.SubmissionStatusCompleted {
		t.Fatalf("unexpected change %+v", change)
	}
	if session.Submissions[0].Status != enums.SubmissionStatusCompleted {
		t.Fatalf("status not applied: %s", session.Submissions[0].Status)
	}
	if session.Submissions[1].Status != enums.SubmissionStatusPreparing {
		t.Fatal("other submissions must not change")
	}
}

func TestAdvanceSubmissionStatusRejectsSameOrBackward(t *testing.T) {
	session := billedSession(t)
	if _, err := AdvanceSubmissionStatus(session, 1, enums.SubmissionStatusAccepted, mergeNow); err != nil {
		t.Fatalf("advance: %v", err)
	}

	for _, target := range []enums.SubmissionStatus{enums.SubmissionStatusAccepted, enums.SubmissionStatusPreparing} {
		_, err := AdvanceSubmissionStatus(session, 1, target, mergeNow)
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("expected state conflict for %s, got %v", target, err)
		}
		if !pkgerrors.IsConflict(err) {
			t.Fatal("invalid transitions are conflicts")
		}
		details, ok := pkgerrors.As(err).Details().(map[string]any)
		if !ok || details["from"] != "accepted" || details["to"] != string(target) {
			t.Fatalf("unexpected details %v", pkgerrors.As(err).Details())
		}
	}
}

func TestAdvanceSubmissionStatusErrors(t *testing.T) {
	session := billedSession(t)

	if _, err := AdvanceSubmissionStatus(session, 9, enums.SubmissionStatusAccepted, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := AdvanceSubmissionStatus(session, 1, enums.SubmissionStatus("cooking"), mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if _, err := AdvanceSubmissionStatus(session, 1, enums.SubmissionStatusPaid, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("paid without receipt should conflict, got %v", err)
	}

	session.IsPaid = true
	if _, err := AdvanceSubmissionStatus(session, 1, enums.SubmissionStatusAccepted, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("paid session should conflict, got %v", err)
	}
}

func TestPayingEverySubmissionSettlesSession(t *testing.T) {
	session := billedSession(t)
	if err := IssueReceipt(session, "R000001001", mergeNow); err != nil {
		t.Fatalf("issue: %v", err)
	}

	change, err := AdvanceSubmissionStatus(session, 1, enums.SubmissionStatusPaid, mergeNow)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if change.Settled || session.IsPaid {
		t.Fatal("session should stay open while a submission is unpaid")
	}

	change, err = AdvanceSubmissionStatus(session, 2, enums.SubmissionStatusPaid, mergeNow)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !change.Settled || !session.IsPaid || session.IsOccupied || session.HasPromotionalInitialOrder {
		t.Fatalf("expected settled session, got %+v", session)
	}
}

func TestAdvanceFlavorStatus(t *testing.T) {
	session := billedSession(t)
	promo := session.Lines[session.PromotionalLine()].ID

	change, err := AdvanceFlavorStatus(session, promo, enums.FlavorStatusCompleted, mergeNow)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if change.From != enums.FlavorStatusPending || change.To != enums.FlavorStatusCompleted {
		t.Fatalf("unexpected change %+v", change)
	}

	if _, err := AdvanceFlavorStatus(session, promo, enums.FlavorStatusAccepted, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("backward flavor move should fail, got %v", err)
	}

	var soda uuid.UUID
	for _, line := range session.Lines {
		if !line.IsPromotional {
			soda = line.ID
		}
	}
	if _, err := AdvanceFlavorStatus(session, soda, enums.FlavorStatusAccepted, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("regular line should be rejected, got %v", err)
	}
	if _, err := AdvanceFlavorStatus(session, uuid.New(), enums.FlavorStatusAccepted, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown line should be not found, got %v", err)
	}
}

func TestIssueReceiptThenMarkPaid(t *testing.T) {
	session := &models.TableSession{TableNumber: 2}
	mustMerge(t, session, regular("Sisig", "299", 1))
	mustMerge(t, session, regular("Rice", "39", 1))
	if !session.GrandTotal.Equal(decimal.NewFromInt(338)) {
		t.Fatalf("expected 338, got %s", session.GrandTotal)
	}

	if err := IssueReceipt(session, "R123456789", mergeNow); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if session.IsPaid {
		t.Fatal("receipt must not mark the session paid")
	}
	for _, sub := range session.Submissions {
		if sub.Status != enums.SubmissionStatusCompleted {
			t.Fatalf("expected completed submissions, got %s", sub.Status)
		}
	}
	if session.State() != enums.SessionStateAwaitingPayment {
		t.Fatalf("unexpected state %s", session.State())
	}

	paidAt := mergeNow.Add(10 * time.Minute)
	changed, err := MarkPaid(session, paidAt)
	if err != nil || !changed {
		t.Fatalf("mark paid: changed=%v err=%v", changed, err)
	}
	if !session.IsPaid || session.IsOccupied || session.HasPromotionalInitialOrder {
		t.Fatalf("unexpected flags after payment %+v", session)
	}

	changed, err = MarkPaid(session, paidAt.Add(time.Minute))
	if err != nil || changed {
		t.Fatalf("second payment should be a no-op, changed=%v err=%v", changed, err)
	}
	if *session.ReceiptNumber != "R123456789" || !session.GrandTotal.Equal(decimal.NewFromInt(338)) {
		t.Fatal("payment must keep receipt and total frozen")
	}
	if !session.PaidAt.Equal(paidAt) {
		t.Fatalf("paid at must not move on retry, got %s", session.PaidAt)
	}
}

func TestTerminalSessionRejectsMutations(t *testing.T) {
	session := billedSession(t)
	if err := IssueReceipt(session, "R1", mergeNow); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := MarkPaid(session, mergeNow); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if _, err := MergeSubmission(session, nil, MergeOptions{}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("merge on paid session: %v", err)
	}
	if _, err := AdvanceSubmissionStatus(session, 1, enums.SubmissionStatusPaid, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("status on paid session: %v", err)
	}
	if err := IssueReceipt(session, "R2", mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("receipt on paid session: %v", err)
	}
}

func TestIssueReceiptErrors(t *testing.T) {
	empty := &models.TableSession{TableNumber: 1}
	if err := IssueReceipt(empty, "R1", mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("no submissions should conflict, got %v", err)
	}

	session := billedSession(t)
	if err := IssueReceipt(session, "", mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("blank number should be rejected, got %v", err)
	}
	if err := IssueReceipt(session, "R1", mergeNow); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := IssueReceipt(session, "R2", mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second receipt should conflict, got %v", err)
	}

	unbilled := billedSession(t)
	if _, err := MarkPaid(unbilled, mergeNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("payment without receipt should conflict, got %v", err)
	}
}

func TestTimestampReceiptGenerator(t *testing.T) {
	gen := &TimestampReceiptGenerator{
		now:    func() time.Time { return time.UnixMilli(1_760_000_123_456) },
		random: func(int) int { return 7 },
	}
	number, err := gen.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if number != "R123456007" {
		t.Fatalf("unexpected receipt %q", number)
	}
}

type fakeCounter struct {
	keys []string
	n    int64
}

func (f *fakeCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	f.keys = append(f.keys, key)
	f.n++
	return f.n, nil
}

func (f *fakeCounter) CounterKey(name string) string { return "to:counter:" + name }

func TestCounterReceiptGenerator(t *testing.T) {
	counter := &fakeCounter{}
	gen, err := NewCounterReceiptGenerator(counter)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	gen.now = func() time.Time { return mergeNow }

	first, _ := gen.Next(context.Background())
	second, _ := gen.Next(context.Background())
	if first != "R202610160001" || second != "R202610160002" {
		t.Fatalf("unexpected receipts %q %q", first, second)
	}
	if counter.keys[0] != "to:counter:receipts:20261016" {
		t.Fatalf("unexpected counter key %q", counter.keys[0])
	}
}
