package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
)

// The SQL migrations target Postgres. The embedded sqlite driver is bootstrapped from the
// models instead, plus the partial indexes the services rely on.
var sqliteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_table_sessions_open_table ON table_sessions (table_number) WHERE is_paid = 0`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_table_sessions_receipt_number ON table_sessions (receipt_number) WHERE receipt_number IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_table_sessions_table_paid ON table_sessions (table_number, is_paid)`,
	`CREATE INDEX IF NOT EXISTS idx_table_sessions_awaiting_payment ON table_sessions (is_paid, receipt_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate ON outbox_events (event_type, aggregate_type, aggregate_id) WHERE event_type = 'payment_overdue'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_dlq_event_id ON outbox_dlq (event_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_staff_alerts_event_id ON staff_alerts (event_id)`,
}

// SQLiteSchema creates every table and index on an embedded sqlite database.
func SQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	tx := conn.WithContext(ctx)
	if err := tx.AutoMigrate(
		&models.TableSession{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
		&models.StaffAlert{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range sqliteIndexes {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
