package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/internal/menu"
	dbpkg "github.com/angelmondragon/tableorders-backend/pkg/db"
	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/metrics"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tableorders-backend/pkg/pagination"
	"github.com/angelmondragon/tableorders-backend/pkg/types"
)

const defaultMaxUpdateAttempts = 3

// Operation names used for retry metrics and logs.
const (
	opSubmitOrder     = "submit_order"
	opSubmissionState = "submission_status"
	opFlavorState     = "flavor_status"
	opIssueReceipt    = "issue_receipt"
	opMarkPaid        = "mark_paid"
)

var (
	openTableConstraint = dbpkg.UniqueConstraint{
		Name:    "ux_table_sessions_open_table",
		Table:   "table_sessions",
		Columns: []string{"table_number"},
	}
	receiptConstraint = dbpkg.UniqueConstraint{
		Name:    "ux_table_sessions_receipt_number",
		Table:   "table_sessions",
		Columns: []string{"receipt_number"},
	}
)

// Service exposes the table session operations used by the HTTP layer.
type Service interface {
	CreateOrUpdateSession(ctx context.Context, tableNumber int, items []ItemInput) (*SubmissionResult, error)
	GetSessionByTable(ctx context.Context, tableNumber int) (*SessionDTO, error)
	GetSession(ctx context.Context, id uuid.UUID) (*SessionDTO, error)
	ListSessions(ctx context.Context, params ListParams) (*SessionList, error)
	AdvanceSubmissionStatus(ctx context.Context, id uuid.UUID, submissionNumber int, status enums.SubmissionStatus) (*SessionDTO, error)
	AdvanceFlavorStatus(ctx context.Context, id uuid.UUID, lineItemID uuid.UUID, status enums.FlavorStatus) (*SessionDTO, error)
	IssueReceipt(ctx context.Context, tableNumber int) (*ReceiptResult, error)
	MarkTablePaid(ctx context.Context, tableNumber int) (*ReceiptResult, error)
	MarkSessionPaid(ctx context.Context, id uuid.UUID) (*ReceiptResult, error)
}

// ServiceParams wires the session service.
type ServiceParams struct {
	Repository        Repository
	TxRunner          txRunner
	Outbox            outboxPublisher
	Catalog           menuCatalog
	Receipts          ReceiptGenerator
	Metrics           sessionMetrics
	Logger            *logger.Logger
	Tables            []int
	MatchBy           enums.MatchBy
	MaxUpdateAttempts int
	Now               func() time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	catalog     menuCatalog
	receipts    ReceiptGenerator
	metrics     sessionMetrics
	logg        *logger.Logger
	tables      map[int]struct{}
	matchBy     enums.MatchBy
	maxAttempts int
	now         func() time.Time
}

// NewService validates dependencies and returns the session service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("sessions repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("menu catalog required")
	}
	if params.Receipts == nil {
		return nil, fmt.Errorf("receipt generator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Tables) == 0 {
		return nil, fmt.Errorf("at least one table number required")
	}
	matchBy := params.MatchBy
	if matchBy == "" {
		matchBy = enums.MatchByName
	}
	if !matchBy.IsValid() {
		return nil, fmt.Errorf("invalid match mode %q", matchBy)
	}
	attempts := params.MaxUpdateAttempts
	if attempts <= 0 {
		attempts = defaultMaxUpdateAttempts
	}
	tables := make(map[int]struct{}, len(params.Tables))
	for _, n := range params.Tables {
		tables[n] = struct{}{}
	}
	m := params.Metrics
	if m == nil {
		m = metrics.NewSessionMetrics(nil)
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:        params.Repository,
		tx:          params.TxRunner,
		outbox:      params.Outbox,
		catalog:     params.Catalog,
		receipts:    params.Receipts,
		metrics:     m,
		logg:        params.Logger,
		tables:      tables,
		matchBy:     matchBy,
		maxAttempts: attempts,
		now:         now,
	}, nil
}

func (s *service) CreateOrUpdateSession(ctx context.Context, tableNumber int, items []ItemInput) (*SubmissionResult, error) {
	if err := s.validateTable(tableNumber); err != nil {
		return nil, err
	}
	lines, err := s.resolveItems(items)
	if err != nil {
		s.metrics.IncMerge(metrics.MergeOutcomeRejected)
		return nil, err
	}

	var result *SubmissionResult
	err = s.mutate(ctx, opSubmitOrder, func(tx *gorm.DB, repo Repository) error {
		result = nil
		now := s.now()

		session, err := repo.FindOpenByTable(ctx, tableNumber)
		created := false
		if errors.Is(err, gorm.ErrRecordNotFound) {
			session = &models.TableSession{TableNumber: tableNumber, IsOccupied: true}
			created = true
		} else if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open session")
		}

		expected := session.Version
		submission, err := MergeSubmission(session, lines, MergeOptions{MatchBy: s.matchBy, Now: now})
		if err != nil {
			return err
		}

		if created {
			if err := repo.Create(ctx, session); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, session, enums.EventSessionOpened, outbox.ActorCustomer, payloads.SessionOpenedEvent{
				SessionRef: sessionRef(session),
				OpenedAt:   now,
			}); err != nil {
				return err
			}
		} else if err := repo.Update(ctx, session, expected); err != nil {
			return err
		}

		event := payloads.SubmissionCreatedEvent{
			SessionRef:       sessionRef(session),
			SubmissionNumber: submission.SubmissionNumber,
			ItemCount:        len(submission.Items),
			SubmissionTotal:  submission.SubmissionTotal,
			GrandTotal:       session.GrandTotal,
		}
		for _, item := range submission.Items {
			if item.IsPromotional {
				event.PromotionalRound = item.SequenceNumber
				event.Flavors = item.SelectedFlavors
			}
		}
		if err := s.emit(ctx, tx, session, enums.EventSubmissionCreated, outbox.ActorCustomer, event); err != nil {
			return err
		}

		result = &SubmissionResult{Session: FromModel(session), Submission: *submission, Created: created}
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) || pkgerrors.IsConflict(err) {
			s.metrics.IncMerge(metrics.MergeOutcomeRejected)
		}
		return nil, err
	}

	outcome := metrics.MergeOutcomeMerged
	if result.Created {
		outcome = metrics.MergeOutcomeOpened
	}
	s.metrics.IncMerge(outcome)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"table_number":      tableNumber,
		"session_id":        result.Session.ID.String(),
		"submission_number": result.Submission.SubmissionNumber,
		"outcome":           outcome,
	})
	s.logg.Info(logCtx, "order submission applied")
	return result, nil
}

func (s *service) GetSessionByTable(ctx context.Context, tableNumber int) (*SessionDTO, error) {
	if err := s.validateTable(tableNumber); err != nil {
		return nil, err
	}
	session, err := s.repo.FindOpenByTable(ctx, tableNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open session for table")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open session")
	}
	dto := FromModel(session)
	return &dto, nil
}

func (s *service) GetSession(ctx context.Context, id uuid.UUID) (*SessionDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	session, err := s.loadByID(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(session)
	return &dto, nil
}

func (s *service) ListSessions(ctx context.Context, params ListParams) (*SessionList, error) {
	filter := ListFilter{
		TableNumber: params.TableNumber,
		Limit:       pagination.LimitWithBuffer(params.Limit),
	}
	if raw := strings.TrimSpace(params.State); raw != "" {
		state, err := enums.ParseSessionState(strings.ToLower(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid state filter")
		}
		filter.State = &state
	}
	if params.TableNumber != nil {
		if err := s.validateTable(*params.TableNumber); err != nil {
			return nil, err
		}
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sessions")
	}
	page, next := pagination.Page(rows, params.Limit, func(m models.TableSession) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})

	out := &SessionList{Sessions: make([]SessionDTO, 0, len(page)), NextCursor: next}
	for i := range page {
		out.Sessions = append(out.Sessions, FromModel(&page[i]))
	}
	return out, nil
}

func (s *service) AdvanceSubmissionStatus(ctx context.Context, id uuid.UUID, submissionNumber int, status enums.SubmissionStatus) (*SessionDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if submissionNumber <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "submission number must be positive")
	}

	var (
		dto     *SessionDTO
		settled bool
	)
	err := s.mutate(ctx, opSubmissionState, func(tx *gorm.DB, repo Repository) error {
		session, err := s.loadByID(ctx, repo, id)
		if err != nil {
			return err
		}
		expected := session.Version
		change, err := AdvanceSubmissionStatus(session, submissionNumber, status, s.now())
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, session, expected); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, session, enums.EventSubmissionStatusChanged, outbox.ActorStaff, payloads.SubmissionStatusChangedEvent{
			SessionRef:       sessionRef(session),
			SubmissionNumber: submissionNumber,
			From:             change.From,
			To:               change.To,
		}); err != nil {
			return err
		}
		if change.Settled {
			if err := s.emitPaid(ctx, tx, session, outbox.ActorStaff); err != nil {
				return err
			}
		}
		settled = change.Settled
		out := FromModel(session)
		dto = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settled {
		s.metrics.IncPaid()
	}
	return dto, nil
}

func (s *service) AdvanceFlavorStatus(ctx context.Context, id uuid.UUID, lineItemID uuid.UUID, status enums.FlavorStatus) (*SessionDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if lineItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item id required")
	}

	var dto *SessionDTO
	err := s.mutate(ctx, opFlavorState, func(tx *gorm.DB, repo Repository) error {
		session, err := s.loadByID(ctx, repo, id)
		if err != nil {
			return err
		}
		expected := session.Version
		change, err := AdvanceFlavorStatus(session, lineItemID, status, s.now())
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, session, expected); err != nil {
			return err
		}
		seq := 0
		for _, line := range session.Lines {
			if line.ID == lineItemID {
				seq = line.SequenceNumber
			}
		}
		if err := s.emit(ctx, tx, session, enums.EventFlavorStatusChanged, outbox.ActorStaff, payloads.FlavorStatusChangedEvent{
			SessionRef:     sessionRef(session),
			LineItemID:     lineItemID,
			SequenceNumber: seq,
			From:           change.From,
			To:             change.To,
		}); err != nil {
			return err
		}
		out := FromModel(session)
		dto = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// IssueReceipt bills the open session of a table. Asking again before payment returns the
// receipt already issued.
func (s *service) IssueReceipt(ctx context.Context, tableNumber int) (*ReceiptResult, error) {
	if err := s.validateTable(tableNumber); err != nil {
		return nil, err
	}

	var (
		result *ReceiptResult
		issued bool
	)
	err := s.mutate(ctx, opIssueReceipt, func(tx *gorm.DB, repo Repository) error {
		issued = false
		session, err := repo.FindOpenByTable(ctx, tableNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return noOpenSessionToBill(ctx, repo, tableNumber)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open session")
		}
		if session.HasReceipt() {
			result = receiptResult(session)
			return nil
		}

		number, err := s.receipts.Next(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		expected := session.Version
		if err := IssueReceipt(session, number, now); err != nil {
			return err
		}
		if err := repo.Update(ctx, session, expected); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, session, enums.EventReceiptIssued, outbox.ActorCustomer, payloads.ReceiptIssuedEvent{
			SessionRef:    sessionRef(session),
			ReceiptNumber: number,
			GrandTotal:    session.GrandTotal,
			IssuedAt:      now,
		}); err != nil {
			return err
		}
		result = receiptResult(session)
		issued = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if issued {
		s.metrics.IncReceipt()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"table_number":   tableNumber,
			"session_id":     result.SessionID.String(),
			"receipt_number": result.ReceiptNumber,
		})
		s.logg.Info(logCtx, "receipt issued")
	}
	return result, nil
}

// noOpenSessionToBill tells a settled table apart from one that never ordered.
func noOpenSessionToBill(ctx context.Context, repo Repository, tableNumber int) error {
	_, err := repo.FindLatestPaidByTable(ctx, tableNumber)
	switch {
	case err == nil:
		return pkgerrors.New(pkgerrors.CodeConflict, "session already paid")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "no open session for table")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid session")
	}
}

// MarkTablePaid settles the open session of a table. When the table has no open session the
// latest paid one is returned so retried calls succeed.
func (s *service) MarkTablePaid(ctx context.Context, tableNumber int) (*ReceiptResult, error) {
	if err := s.validateTable(tableNumber); err != nil {
		return nil, err
	}
	return s.markPaid(ctx, func(repo Repository) (*models.TableSession, error) {
		session, err := repo.FindOpenByTable(ctx, tableNumber)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open session")
		}
		paid, err := repo.FindLatestPaidByTable(ctx, tableNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no session for table")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid session")
		}
		return paid, nil
	})
}

func (s *service) MarkSessionPaid(ctx context.Context, id uuid.UUID) (*ReceiptResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	return s.markPaid(ctx, func(repo Repository) (*models.TableSession, error) {
		return s.loadByID(ctx, repo, id)
	})
}

func (s *service) markPaid(ctx context.Context, load func(repo Repository) (*models.TableSession, error)) (*ReceiptResult, error) {
	var (
		result  *ReceiptResult
		changed bool
	)
	err := s.mutate(ctx, opMarkPaid, func(tx *gorm.DB, repo Repository) error {
		session, err := load(repo)
		if err != nil {
			return err
		}
		expected := session.Version
		changed, err = MarkPaid(session, s.now())
		if err != nil {
			return err
		}
		if changed {
			if err := repo.Update(ctx, session, expected); err != nil {
				return err
			}
			if err := s.emitPaid(ctx, tx, session, outbox.ActorStaff); err != nil {
				return err
			}
		}
		result = receiptResult(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.IncPaid()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"table_number":   result.TableNumber,
			"session_id":     result.SessionID.String(),
			"receipt_number": result.ReceiptNumber,
		})
		s.logg.Info(logCtx, "table session paid")
	}
	return result, nil
}

// mutate runs fn in a transaction and retries it on lost updates.
func (s *service) mutate(ctx context.Context, op string, fn func(tx *gorm.DB, repo Repository) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return fn(tx, s.repo.WithTx(tx))
		})
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			if typed := pkgerrors.As(err); typed != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist table session")
		}
		s.metrics.IncRetry(op)
		logCtx := s.logg.WithFields(ctx, map[string]any{"operation": op, "attempt": attempt})
		s.logg.Warn(logCtx, "table session update lost a race; retrying")
	}
	return pkgerrors.Wrap(pkgerrors.CodeConcurrentUpdate, err, "table session was modified concurrently; try again")
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		openTableConstraint.Matches(err) ||
		receiptConstraint.Matches(err)
}

func (s *service) resolveItems(inputs []ItemInput) ([]types.LineItem, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	lines := make([]types.LineItem, 0, len(inputs))
	for i, in := range inputs {
		item, ok := s.catalog.Lookup(menu.ItemRef{ID: in.MenuItemID, Name: in.Name})
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown menu item").
				WithDetails(map[string]any{"index": i, "menuItemId": in.MenuItemID, "name": in.Name})
		}
		line := types.LineItem{
			MenuItemID:    item.ID,
			Name:          item.Name,
			UnitPrice:     item.Price,
			Quantity:      in.Quantity,
			Category:      item.Category,
			Description:   item.Description,
			IsPromotional: item.IsPromotional,
		}
		if item.IsPromotional {
			flavors, err := canonicalFlavors(item, in.SelectedFlavors)
			if err != nil {
				return nil, err
			}
			line.SelectedFlavors = flavors
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func canonicalFlavors(item menu.Item, selected []string) ([]string, error) {
	out := make([]string, 0, len(selected))
	seen := map[string]struct{}{}
	for _, raw := range selected {
		flavor, ok := item.CanonicalFlavor(raw)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown flavor").
				WithDetails(map[string]any{"flavor": raw, "item": item.Name})
		}
		if _, dup := seen[flavor]; dup {
			continue
		}
		seen[flavor] = struct{}{}
		out = append(out, flavor)
	}
	if item.MaxFlavors > 0 && len(out) > item.MaxFlavors {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many flavors selected").
			WithDetails(map[string]any{"max": item.MaxFlavors, "selected": len(out)})
	}
	return out, nil
}

func (s *service) validateTable(tableNumber int) error {
	if _, ok := s.tables[tableNumber]; !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown table number").
			WithDetails(map[string]any{"tableNumber": tableNumber})
	}
	return nil
}

func (s *service) loadByID(ctx context.Context, repo Repository, id uuid.UUID) (*models.TableSession, error) {
	session, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	return session, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, session *models.TableSession, eventType enums.OutboxEventType, role string, data any) error {
	table := session.TableNumber
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateTableSession,
		AggregateID:   session.ID,
		Actor:         &outbox.ActorRef{Role: role, TableNumber: &table},
		Data:          data,
	})
}

func (s *service) emitPaid(ctx context.Context, tx *gorm.DB, session *models.TableSession, role string) error {
	event := payloads.SessionPaidEvent{
		SessionRef: sessionRef(session),
		GrandTotal: session.GrandTotal,
	}
	if session.ReceiptNumber != nil {
		event.ReceiptNumber = *session.ReceiptNumber
	}
	if session.PaidAt != nil {
		event.PaidAt = *session.PaidAt
	}
	return s.emit(ctx, tx, session, enums.EventSessionPaid, role, event)
}

func sessionRef(session *models.TableSession) payloads.SessionRef {
	return payloads.SessionRef{SessionID: session.ID, TableNumber: session.TableNumber}
}
