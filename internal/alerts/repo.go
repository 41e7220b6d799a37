package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/pagination"
)

// Repository exposes persistence helpers for staff alerts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alert *models.StaffAlert) (bool, error)
	List(ctx context.Context, params listAlertsParams) ([]models.StaffAlert, error)
	MarkRead(ctx context.Context, alertID uuid.UUID, now time.Time) (alertMarkResult, error)
	MarkAllRead(ctx context.Context, now time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an alerts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listAlertsParams struct {
	Limit       int
	Cursor      *pagination.Cursor
	UnreadOnly  bool
	TableNumber *int
}

type alertMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Create inserts the alert unless one already exists for the same event. The bool reports
// whether a row was written.
func (r *repositoryImpl) Create(ctx context.Context, alert *models.StaffAlert) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(alert)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listAlertsParams) ([]models.StaffAlert, error) {
	query := r.db.WithContext(ctx).Model(&models.StaffAlert{})
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.TableNumber != nil {
		query = query.Where("table_number = ?", *params.TableNumber)
	}
	query = params.Cursor.Apply(query)

	var rows []models.StaffAlert
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, alertID uuid.UUID, now time.Time) (alertMarkResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StaffAlert{}).
		Where("id = ? AND read_at IS NULL", alertID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return alertMarkResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return alertMarkResult{Updated: true, Found: true}, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StaffAlert{}).
		Where("id = ?", alertID).
		Count(&count).Error; err != nil {
		return alertMarkResult{}, err
	}
	return alertMarkResult{Found: count > 0}, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StaffAlert{}).
		Where("read_at IS NULL").
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteReadBefore drops alerts acknowledged before cutoff. Unread alerts are never pruned.
func (r *repositoryImpl) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.StaffAlert{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
