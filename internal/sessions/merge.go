package sessions

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableorders-backend/internal/pricing"
	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
	"github.com/angelmondragon/tableorders-backend/pkg/types"
)

// MergeOptions controls how a batch is folded into the running tab.
type MergeOptions struct {
	MatchBy enums.MatchBy
	Now     time.Time
}

// MergeSubmission folds items into the session tab and appends the resulting submission.
// The session is left untouched when an error is returned.
func MergeSubmission(session *models.TableSession, items []types.LineItem, opts MergeOptions) (*types.OrderSubmission, error) {
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	if session.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "session already paid")
	}
	if session.HasReceipt() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "receipt already issued; charges are frozen")
	}
	if err := validateBatch(items); err != nil {
		return nil, err
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	matchBy := opts.MatchBy
	if !matchBy.IsValid() {
		matchBy = enums.MatchByName
	}

	tabIndex := map[string]int{}
	for i, line := range session.Lines {
		if line.IsPromotional {
			continue
		}
		if key := matchKey(line, matchBy); key != "" {
			if _, seen := tabIndex[key]; !seen {
				tabIndex[key] = i
			}
		}
	}

	snapshot := make([]types.LineItem, 0, len(items))
	snapIndex := map[string]int{}

	for _, item := range items {
		if item.IsPromotional {
			snapshot = append(snapshot, mergePromotional(session, item))
			continue
		}

		key := matchKey(item, matchBy)
		var lineID uuid.UUID
		if idx, ok := tabIndex[key]; ok && key != "" {
			session.Lines[idx].Quantity += item.Quantity
			lineID = session.Lines[idx].ID
		} else {
			line := regularLine(item)
			session.Lines = append(session.Lines, line)
			lineID = line.ID
			if key != "" {
				tabIndex[key] = len(session.Lines) - 1
			}
		}

		if idx, ok := snapIndex[key]; ok && key != "" {
			snapshot[idx].Quantity += item.Quantity
			continue
		}
		snap := regularLine(item)
		snap.ID = lineID
		snapshot = append(snapshot, snap)
		if key != "" {
			snapIndex[key] = len(snapshot) - 1
		}
	}

	submission := types.OrderSubmission{
		SubmissionNumber: len(session.Submissions) + 1,
		Items:            snapshot,
		Status:           enums.SubmissionStatusPreparing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	submission.SubmissionTotal = pricing.SubmissionTotal(submission.Items, session.HasPromotionalInitialOrder)

	session.Submissions = append(session.Submissions, submission)
	session.GrandTotal = pricing.GrandTotal(session.Submissions, session.HasPromotionalInitialOrder)
	session.IsOccupied = true

	out := session.Submissions[len(session.Submissions)-1]
	return &out, nil
}

func validateBatch(items []types.LineItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	promotional := 0
	for _, item := range items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be at least 1").
				WithDetails(map[string]any{"name": item.Name, "quantity": item.Quantity})
		}
		if item.UnitPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative").
				WithDetails(map[string]any{"name": item.Name})
		}
		if !item.IsPromotional {
			continue
		}
		promotional++
		if len(item.SelectedFlavors) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "promotional item requires at least one flavor").
				WithDetails(map[string]any{"name": item.Name})
		}
	}
	if promotional > 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "only one promotional item is allowed per order")
	}
	return nil
}

func matchKey(item types.LineItem, matchBy enums.MatchBy) string {
	if matchBy == enums.MatchByID {
		return strings.TrimSpace(item.MenuItemID)
	}
	return strings.ToLower(strings.TrimSpace(item.Name))
}

func regularLine(item types.LineItem) types.LineItem {
	line := item.Clone()
	line.ID = uuid.New()
	line.IsPromotional = false
	line.SelectedFlavors = nil
	line.FlavorHistory = nil
	line.OriginalQuantity = nil
	line.SequenceNumber = 0
	line.FlavorStatus = ""
	return line
}

// mergePromotional creates the promotional tab line on first order, or rolls the current
// flavor selection into history on a re-order, and returns the submission snapshot.
func mergePromotional(session *models.TableSession, item types.LineItem) types.LineItem {
	flavors := append([]string(nil), item.SelectedFlavors...)
	session.HasPromotionalItem = true

	idx := session.PromotionalLine()
	if idx < 0 {
		qty := item.Quantity
		line := item.Clone()
		line.ID = uuid.New()
		line.SelectedFlavors = flavors
		line.FlavorHistory = [][]string{}
		line.OriginalQuantity = &qty
		line.SequenceNumber = 1
		line.FlavorStatus = enums.FlavorStatusPending
		session.Lines = append(session.Lines, line)
		session.HasPromotionalInitialOrder = true
		return line.Clone()
	}

	line := &session.Lines[idx]
	if line.OriginalQuantity == nil {
		qty := line.Quantity
		line.OriginalQuantity = &qty
	}
	line.FlavorHistory = append(line.FlavorHistory, append([]string(nil), line.SelectedFlavors...))
	line.SelectedFlavors = flavors
	line.SequenceNumber++
	line.FlavorStatus = enums.FlavorStatusPending

	snap := line.Clone()
	snap.Quantity = 1
	return snap
}
