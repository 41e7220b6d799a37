package outbox

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
)

const maxDLQErrorLen = 1024

// ErrDLQEntryNotFound is returned by Requeue when no parked row exists for the event.
var ErrDLQEntryNotFound = errors.New("outbox dlq entry not found")

// DLQRepository stores outbox rows the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateUTF8(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// Requeue hands a parked event back to the publisher with a fresh attempt budget and
// removes it from the DLQ. When retention already deleted the outbox row, the row is
// rebuilt from the DLQ copy under the same event id so consumers still de-duplicate it.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.OutboxDLQ
		err := tx.Where("event_id = ?", eventID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDLQEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("load dlq entry %s: %w", eventID, err)
		}

		reset := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if reset.Error != nil {
			return fmt.Errorf("reset outbox event %s: %w", eventID, reset.Error)
		}
		if reset.RowsAffected == 0 {
			row := entry.Restore()
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("restore outbox event %s: %w", eventID, err)
			}
		}

		return tx.Delete(&models.OutboxDLQ{}, "id = ?", entry.ID).Error
	})
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
