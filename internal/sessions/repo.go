package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a table session repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.TableSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TableSession, error) {
	var session models.TableSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindOpenByTable(ctx context.Context, tableNumber int) (*models.TableSession, error) {
	var session models.TableSession
	err := r.db.WithContext(ctx).
		Where("table_number = ? AND is_paid = ?", tableNumber, false).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindLatestPaidByTable(ctx context.Context, tableNumber int) (*models.TableSession, error) {
	var session models.TableSession
	err := r.db.WithContext(ctx).
		Where("table_number = ? AND is_paid = ?", tableNumber, true).
		Order("paid_at DESC").
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.TableSession, error) {
	query := r.db.WithContext(ctx).Model(&models.TableSession{})

	if filter.State != nil {
		switch *filter.State {
		case enums.SessionStateOpen:
			query = query.Where("is_paid = ? AND receipt_number IS NULL", false)
		case enums.SessionStateAwaitingPayment:
			query = query.Where("is_paid = ? AND receipt_number IS NOT NULL", false)
		case enums.SessionStatePaid:
			query = query.Where("is_paid = ?", true)
		}
	}
	if filter.TableNumber != nil {
		query = query.Where("table_number = ?", *filter.TableNumber)
	}
	query = filter.Cursor.Apply(query)

	var rows []models.TableSession
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Update writes the mutable columns only when the stored version still equals
// expectedVersion, then bumps the version on the session.
func (r *repository) Update(ctx context.Context, session *models.TableSession, expectedVersion int) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.TableSession{}).
		Where("id = ? AND version = ?", session.ID, expectedVersion).
		Updates(map[string]any{
			"lines":                         session.Lines,
			"submissions":                   session.Submissions,
			"is_occupied":                   session.IsOccupied,
			"has_promotional_initial_order": session.HasPromotionalInitialOrder,
			"has_promotional_item":          session.HasPromotionalItem,
			"grand_total":                   session.GrandTotal,
			"is_paid":                       session.IsPaid,
			"receipt_number":                session.ReceiptNumber,
			"receipt_issued_at":             session.ReceiptIssuedAt,
			"paid_at":                       session.PaidAt,
			"version":                       expectedVersion + 1,
			"updated_at":                    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	session.Version = expectedVersion + 1
	session.UpdatedAt = now
	return nil
}

func (r *repository) FindAwaitingPaymentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error) {
	query := r.db.WithContext(ctx).
		Where("is_paid = ? AND receipt_number IS NOT NULL AND receipt_issued_at < ?", false, cutoff.UTC()).
		Order("receipt_issued_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.TableSession
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
