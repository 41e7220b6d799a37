package sessions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
	"github.com/angelmondragon/tableorders-backend/pkg/types"
)

var mergeNow = time.Date(2026, 10, 16, 19, 30, 0, 0, time.UTC)

func regular(name, price string, qty int) types.LineItem {
	return types.LineItem{
		MenuItemID: name,
		Name:       name,
		UnitPrice:  decimal.RequireFromString(price),
		Quantity:   qty,
	}
}

func wings(qty int, flavors ...string) types.LineItem {
	return types.LineItem{
		MenuItemID:      "unliwings",
		Name:            "Unliwings",
		UnitPrice:       decimal.RequireFromString("299"),
		Quantity:        qty,
		IsPromotional:   true,
		SelectedFlavors: flavors,
	}
}

func mustMerge(t *testing.T, session *models.TableSession, items ...types.LineItem) *types.OrderSubmission {
	t.Helper()
	sub, err := MergeSubmission(session, items, MergeOptions{MatchBy: enums.MatchByName, Now: mergeNow})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	return sub
}

func TestMergeFoldsRegularQuantities(t *testing.T) {
	session := &models.TableSession{TableNumber: 1}

	first := mustMerge(t, session, regular("Fries", "59", 1))
	second := mustMerge(t, session, regular("fries ", "59", 2))

	if len(session.Lines) != 1 {
		t.Fatalf("expected a single Fries line, got %d", len(session.Lines))
	}
	if session.Lines[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", session.Lines[0].Quantity)
	}
	if !first.SubmissionTotal.Equal(decimal.NewFromInt(59)) {
		t.Fatalf("first submission total %s", first.SubmissionTotal)
	}
	if !second.SubmissionTotal.Equal(decimal.NewFromInt(118)) {
		t.Fatalf("second submission should carry only the delta, got %s", second.SubmissionTotal)
	}
	if !session.GrandTotal.Equal(decimal.NewFromInt(177)) {
		t.Fatalf("expected grand total 177, got %s", session.GrandTotal)
	}
	if second.Items[0].ID != session.Lines[0].ID {
		t.Fatal("snapshot item must reference the tab line")
	}
	if second.Items[0].Quantity != 2 {
		t.Fatalf("snapshot keeps submitted quantity, got %d", second.Items[0].Quantity)
	}
}

func TestMergeSameItemTwiceYieldsOneLine(t *testing.T) {
	session := &models.TableSession{TableNumber: 1}
	mustMerge(t, session, regular("Fries", "4.99", 2))
	mustMerge(t, session, regular("Fries", "4.99", 2))

	if len(session.Lines) != 1 || session.Lines[0].Quantity != 4 {
		t.Fatalf("expected one line with quantity 4, got %+v", session.Lines)
	}
}

func TestMergeFoldsDuplicatesWithinBatch(t *testing.T) {
	session := &models.TableSession{TableNumber: 3}
	sub := mustMerge(t, session, regular("Soda", "2.99", 1), regular("Burger", "10.99", 1), regular("Soda", "2.99", 2))

	if len(session.Lines) != 2 || len(sub.Items) != 2 {
		t.Fatalf("expected 2 lines and 2 snapshot items, got %d/%d", len(session.Lines), len(sub.Items))
	}
	if sub.Items[0].Quantity != 3 {
		t.Fatalf("expected soda quantity 3, got %d", sub.Items[0].Quantity)
	}
	if !sub.SubmissionTotal.Equal(decimal.RequireFromString("19.96")) {
		t.Fatalf("unexpected total %s", sub.SubmissionTotal)
	}
}

func TestMergeByIDNeverFoldsItemsWithoutID(t *testing.T) {
	session := &models.TableSession{TableNumber: 1}
	opts := MergeOptions{MatchBy: enums.MatchByID, Now: mergeNow}

	noID := regular("Fries", "4.99", 1)
	noID.MenuItemID = ""
	if _, err := MergeSubmission(session, []types.LineItem{noID}, opts); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err := MergeSubmission(session, []types.LineItem{noID}, opts); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(session.Lines) != 2 {
		t.Fatalf("items without id must not merge, got %d lines", len(session.Lines))
	}

	renamed := regular("Fries", "4.99", 1)
	renamed.Name = "Large Fries"
	if _, err := MergeSubmission(session, []types.LineItem{regular("Fries", "4.99", 1), renamed}, opts); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(session.Lines) != 3 || session.Lines[2].Quantity != 2 {
		t.Fatalf("items sharing an id should merge regardless of name, got %+v", session.Lines)
	}
}

func TestPromotionalInitialOrderAndReorder(t *testing.T) {
	session := &models.TableSession{TableNumber: 2}

	mustMerge(t, session, wings(2, "BBQ", "Garlic"))
	if len(session.Lines) != 1 {
		t.Fatalf("expected one promotional line, got %d", len(session.Lines))
	}
	line := session.Lines[0]
	if line.SequenceNumber != 1 || line.OriginalQuantity == nil || *line.OriginalQuantity != 2 {
		t.Fatalf("unexpected initial promotional line %+v", line)
	}
	if line.FlavorStatus != enums.FlavorStatusPending || len(line.FlavorHistory) != 0 {
		t.Fatalf("unexpected flavor state %+v", line)
	}
	if !session.HasPromotionalInitialOrder || !session.HasPromotionalItem {
		t.Fatal("expected promotional flags set")
	}
	if !session.GrandTotal.Equal(decimal.NewFromInt(598)) {
		t.Fatalf("expected 598, got %s", session.GrandTotal)
	}

	session.Lines[0].FlavorStatus = enums.FlavorStatusCompleted
	reorder := mustMerge(t, session, wings(5, "Teriyaki"))

	line = session.Lines[0]
	if len(session.Lines) != 1 {
		t.Fatalf("re-order must reuse the promotional line, got %d lines", len(session.Lines))
	}
	if line.SequenceNumber != 2 {
		t.Fatalf("expected sequence 2, got %d", line.SequenceNumber)
	}
	if len(line.FlavorHistory) != 1 || line.FlavorHistory[0][0] != "BBQ" || line.FlavorHistory[0][1] != "Garlic" {
		t.Fatalf("unexpected history %v", line.FlavorHistory)
	}
	if len(line.SelectedFlavors) != 1 || line.SelectedFlavors[0] != "Teriyaki" {
		t.Fatalf("unexpected flavors %v", line.SelectedFlavors)
	}
	if *line.OriginalQuantity != 2 {
		t.Fatalf("original quantity must stay frozen, got %d", *line.OriginalQuantity)
	}
	if line.FlavorStatus != enums.FlavorStatusPending {
		t.Fatalf("re-order resets flavor status, got %s", line.FlavorStatus)
	}
	if reorder.Items[0].Quantity != 1 {
		t.Fatalf("re-order snapshot quantity must be 1, got %d", reorder.Items[0].Quantity)
	}
	if !reorder.SubmissionTotal.IsZero() {
		t.Fatalf("re-order must be free, got %s", reorder.SubmissionTotal)
	}
	if !session.GrandTotal.Equal(decimal.NewFromInt(598)) {
		t.Fatalf("grand total must not change on re-order, got %s", session.GrandTotal)
	}
}

func TestFlavorHistoryGrowsByOnePerReorder(t *testing.T) {
	session := &models.TableSession{TableNumber: 4}
	mustMerge(t, session, wings(1, "Original"))

	rounds := [][]string{{"BBQ"}, {"Garlic", "Buffalo"}, {"Salted Egg"}, {"Lemon Pepper"}}
	for i, flavors := range rounds {
		before := append([]string(nil), session.Lines[0].SelectedFlavors...)
		mustMerge(t, session, wings(1, flavors...))

		history := session.Lines[0].FlavorHistory
		if len(history) != i+1 {
			t.Fatalf("after %d re-orders expected history length %d, got %d", i+1, i+1, len(history))
		}
		last := history[len(history)-1]
		if len(last) != len(before) || last[0] != before[0] {
			t.Fatalf("history entry %v should equal previous selection %v", last, before)
		}
	}
	if session.Lines[0].SequenceNumber != len(rounds)+1 {
		t.Fatalf("unexpected sequence %d", session.Lines[0].SequenceNumber)
	}
}

func TestSubmissionNumbersAreContiguous(t *testing.T) {
	session := &models.TableSession{TableNumber: 1}
	for i := 0; i < 5; i++ {
		mustMerge(t, session, regular("Soda", "2.99", 1))
	}
	for i, sub := range session.Submissions {
		if sub.SubmissionNumber != i+1 {
			t.Fatalf("submission %d has number %d", i, sub.SubmissionNumber)
		}
		if sub.Status != enums.SubmissionStatusPreparing {
			t.Fatalf("new submissions start preparing, got %s", sub.Status)
		}
	}
}

func TestMergeRejections(t *testing.T) {
	receipt := "R123456789"
	cases := []struct {
		name    string
		session *models.TableSession
		items   []types.LineItem
		code    pkgerrors.Code
	}{
		{name: "paid session", session: &models.TableSession{IsPaid: true}, items: []types.LineItem{regular("Soda", "2.99", 1)}, code: pkgerrors.CodeConflict},
		{name: "receipt issued", session: &models.TableSession{ReceiptNumber: &receipt}, items: []types.LineItem{regular("Soda", "2.99", 1)}, code: pkgerrors.CodeConflict},
		{name: "empty batch", session: &models.TableSession{}, items: nil, code: pkgerrors.CodeValidation},
		{name: "zero quantity", session: &models.TableSession{}, items: []types.LineItem{regular("Soda", "2.99", 0)}, code: pkgerrors.CodeValidation},
		{name: "promo without flavors", session: &models.TableSession{}, items: []types.LineItem{wings(2)}, code: pkgerrors.CodeValidation},
		{name: "two promos", session: &models.TableSession{}, items: []types.LineItem{wings(2, "BBQ"), wings(1, "Garlic")}, code: pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MergeSubmission(tc.session, tc.items, MergeOptions{Now: mergeNow})
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if len(tc.session.Submissions) != 0 || len(tc.session.Lines) != 0 {
				t.Fatal("rejected merge must not mutate the session")
			}
		})
	}
}

func TestMergeRejectionLeavesExistingTabIntact(t *testing.T) {
	session := &models.TableSession{TableNumber: 1}
	mustMerge(t, session, regular("Fries", "4.99", 1))

	_, err := MergeSubmission(session, []types.LineItem{regular("Fries", "4.99", 2), wings(1)}, MergeOptions{Now: mergeNow})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if session.Lines[0].Quantity != 1 || len(session.Submissions) != 1 {
		t.Fatalf("session changed after failed merge: %+v", session.Lines)
	}
}
