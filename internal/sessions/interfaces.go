package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/internal/menu"
	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
)

// ErrVersionConflict is returned by Update when the row changed since it was read.
var ErrVersionConflict = errors.New("table session version conflict")

// Repository persists table sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.TableSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TableSession, error)
	FindOpenByTable(ctx context.Context, tableNumber int) (*models.TableSession, error)
	FindLatestPaidByTable(ctx context.Context, tableNumber int) (*models.TableSession, error)
	List(ctx context.Context, filter ListFilter) ([]models.TableSession, error)
	Update(ctx context.Context, session *models.TableSession, expectedVersion int) error
	FindAwaitingPaymentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type menuCatalog interface {
	Lookup(ref menu.ItemRef) (menu.Item, bool)
}

type sessionMetrics interface {
	IncMerge(outcome string)
	IncRetry(operation string)
	IncReceipt()
	IncPaid()
}
