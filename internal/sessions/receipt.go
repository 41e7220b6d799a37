package sessions

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/angelmondragon/tableorders-backend/internal/pricing"
	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
)

// IssueReceipt freezes the session total under number and completes every open submission.
func IssueReceipt(session *models.TableSession, number string, now time.Time) error {
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	if session.IsPaid {
		return pkgerrors.New(pkgerrors.CodeConflict, "session already paid")
	}
	if session.HasReceipt() {
		return pkgerrors.New(pkgerrors.CodeConflict, "receipt already issued").
			WithDetails(map[string]any{"receiptNumber": *session.ReceiptNumber})
	}
	if number == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receipt number required")
	}

	open := 0
	for _, sub := range session.Submissions {
		if sub.IsOpen() {
			open++
		}
	}
	if open == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "no open submissions to bill")
	}

	now = orNow(now)
	session.GrandTotal = pricing.GrandTotal(session.Submissions, session.HasPromotionalInitialOrder)
	for i := range session.Submissions {
		sub := &session.Submissions[i]
		if sub.IsOpen() && sub.Status != enums.SubmissionStatusCompleted {
			sub.Status = enums.SubmissionStatusCompleted
			sub.UpdatedAt = now
		}
	}
	receipt := number
	session.ReceiptNumber = &receipt
	session.ReceiptIssuedAt = &now
	return nil
}

// MarkPaid settles a session that already has a receipt. It reports false without error
// when the session was already paid.
func MarkPaid(session *models.TableSession, now time.Time) (bool, error) {
	if session == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	if session.IsPaid {
		return false, nil
	}
	if !session.HasReceipt() {
		return false, pkgerrors.New(pkgerrors.CodeConflict, "receipt must be issued before payment")
	}
	settle(session, orNow(now))
	return true, nil
}

// settle marks the session paid and vacates the table. The grand total stays frozen.
func settle(session *models.TableSession, now time.Time) {
	for i := range session.Submissions {
		sub := &session.Submissions[i]
		if sub.Status != enums.SubmissionStatusPaid {
			sub.Status = enums.SubmissionStatusPaid
			sub.UpdatedAt = now
		}
	}
	session.IsPaid = true
	session.PaidAt = &now
	session.IsOccupied = false
	session.HasPromotionalInitialOrder = false
}

// ReceiptGenerator allocates receipt numbers. Uniqueness is enforced by the database.
type ReceiptGenerator interface {
	Next(ctx context.Context) (string, error)
}

// TimestampReceiptGenerator builds "R" + last six digits of the millisecond clock + three
// random digits.
type TimestampReceiptGenerator struct {
	now    func() time.Time
	random func(n int) int
}

func NewTimestampReceiptGenerator() *TimestampReceiptGenerator {
	return &TimestampReceiptGenerator{now: time.Now, random: rand.IntN}
}

func (g *TimestampReceiptGenerator) Next(ctx context.Context) (string, error) {
	ms := g.now().UnixMilli() % 1_000_000
	return fmt.Sprintf("R%06d%03d", ms, g.random(1000)), nil
}

type receiptCounter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(name string) string
}

const receiptCounterTTL = 48 * time.Hour

// CounterReceiptGenerator numbers receipts per day from a Redis counter: R<yyyymmdd><nnnn>.
type CounterReceiptGenerator struct {
	counter receiptCounter
	now     func() time.Time
}

func NewCounterReceiptGenerator(counter receiptCounter) (*CounterReceiptGenerator, error) {
	if counter == nil {
		return nil, fmt.Errorf("receipt counter required")
	}
	return &CounterReceiptGenerator{counter: counter, now: time.Now}, nil
}

func (g *CounterReceiptGenerator) Next(ctx context.Context) (string, error) {
	day := g.now().UTC().Format("20060102")
	n, err := g.counter.IncrWithTTL(ctx, g.counter.CounterKey("receipts:"+day), receiptCounterTTL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate receipt number")
	}
	return fmt.Sprintf("R%s%04d", day, n), nil
}
