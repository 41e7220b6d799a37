package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
)

// StatusChange records a transition applied by the state machine.
type StatusChange[T ~string] struct {
	From T
	To   T
	// Settled is true when the change closed out the whole session.
	Settled bool
}

// AdvanceSubmissionStatus moves one submission forward. Any forward distance is allowed;
// reaching paid on the last open submission settles the session.
func AdvanceSubmissionStatus(session *models.TableSession, submissionNumber int, target enums.SubmissionStatus, now time.Time) (StatusChange[enums.SubmissionStatus], error) {
	var change StatusChange[enums.SubmissionStatus]
	if session == nil {
		return change, pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	if !target.IsValid() {
		return change, pkgerrors.New(pkgerrors.CodeValidation, "unknown submission status").
			WithDetails(map[string]any{"status": target})
	}
	if session.IsPaid {
		return change, pkgerrors.New(pkgerrors.CodeConflict, "session already paid")
	}

	idx := -1
	for i := range session.Submissions {
		if session.Submissions[i].SubmissionNumber == submissionNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return change, pkgerrors.New(pkgerrors.CodeNotFound, "submission not found").
			WithDetails(map[string]any{"submissionNumber": submissionNumber})
	}

	sub := &session.Submissions[idx]
	if target.Rank() <= sub.Status.Rank() {
		return change, invalidTransition(sub.Status, target)
	}
	if target == enums.SubmissionStatusPaid && !session.HasReceipt() {
		return change, pkgerrors.New(pkgerrors.CodeConflict, "receipt must be issued before payment")
	}

	now = orNow(now)
	change.From = sub.Status
	change.To = target
	sub.Status = target
	sub.UpdatedAt = now

	if target == enums.SubmissionStatusPaid && allSubmissionsPaid(session) {
		settle(session, now)
		change.Settled = true
	}
	return change, nil
}

// AdvanceFlavorStatus moves the flavor track of the promotional line forward.
func AdvanceFlavorStatus(session *models.TableSession, lineItemID uuid.UUID, target enums.FlavorStatus, now time.Time) (StatusChange[enums.FlavorStatus], error) {
	var change StatusChange[enums.FlavorStatus]
	if session == nil {
		return change, pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	if !target.IsValid() {
		return change, pkgerrors.New(pkgerrors.CodeValidation, "unknown flavor status").
			WithDetails(map[string]any{"status": target})
	}
	if session.IsPaid {
		return change, pkgerrors.New(pkgerrors.CodeConflict, "session already paid")
	}

	idx := -1
	for i := range session.Lines {
		if session.Lines[i].ID == lineItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return change, pkgerrors.New(pkgerrors.CodeNotFound, "line item not found").
			WithDetails(map[string]any{"lineItemId": lineItemID})
	}

	line := &session.Lines[idx]
	if !line.IsPromotional {
		return change, pkgerrors.New(pkgerrors.CodeValidation, "flavor status applies to promotional items only")
	}
	current := line.FlavorStatus
	if current == "" {
		current = enums.FlavorStatusPending
	}
	if target.Rank() <= current.Rank() {
		return change, invalidTransition(current, target)
	}

	change.From = current
	change.To = target
	line.FlavorStatus = target
	return change, nil
}

func invalidTransition[T ~string](from, to T) error {
	return pkgerrors.InvalidTransition(string(from), string(to))
}

func allSubmissionsPaid(session *models.TableSession) bool {
	for _, sub := range session.Submissions {
		if sub.Status != enums.SubmissionStatusPaid {
			return false
		}
	}
	return len(session.Submissions) > 0
}

func orNow(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}
