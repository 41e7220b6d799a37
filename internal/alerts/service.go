package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
	"github.com/angelmondragon/tableorders-backend/pkg/pagination"
)

// Service defines the staff alert feed operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, alertID uuid.UUID) error
	MarkAllRead(ctx context.Context) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination and filtering of the alert feed.
type ListParams struct {
	Limit       int
	Cursor      string
	UnreadOnly  bool
	TableNumber *int
}

// AlertDTO is the dashboard representation of a staff alert.
type AlertDTO struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"sessionId"`
	TableNumber int        `json:"tableNumber"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ListResult wraps returned alerts and the cursor for the next page.
type ListResult struct {
	Items  []AlertDTO `json:"items"`
	Cursor string     `json:"cursor"`
}

// NewService wires alert feed dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alerts repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listAlertsParams{
		Limit:       pagination.LimitWithBuffer(params.Limit),
		UnreadOnly:  params.UnreadOnly,
		TableNumber: params.TableNumber,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts")
	}
	page, next := pagination.Page(rows, params.Limit, func(a models.StaffAlert) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})

	items := make([]AlertDTO, 0, len(page))
	for _, row := range page {
		items = append(items, fromModel(row))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) MarkRead(ctx context.Context, alertID uuid.UUID) error {
	if alertID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}

	result, err := s.repo.MarkRead(ctx, alertID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark alert read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark alerts read")
	}
	return count, nil
}

func fromModel(m models.StaffAlert) AlertDTO {
	return AlertDTO{
		ID:          m.ID,
		SessionID:   m.SessionID,
		TableNumber: m.TableNumber,
		Type:        string(m.Type),
		Title:       m.Title,
		Message:     m.Message,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}
