package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// UniqueConstraint describes a unique index so violations can be recognised across drivers.
// Postgres reports the constraint name; sqlite only reports "table.column".
type UniqueConstraint struct {
	Name    string
	Table   string
	Columns []string
}

// Matches reports whether err is a unique violation on this constraint.
func (c UniqueConstraint) Matches(err error) bool {
	if err == nil {
		return false
	}
	if code, constraint, ok := pgErrorFields(err); ok {
		return code == pgUniqueViolation && (c.Name == "" || constraint == c.Name)
	}
	msg := err.Error()
	if c.Name != "" && strings.Contains(msg, c.Name) {
		return true
	}
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if len(c.Columns) == 0 {
		return true
	}
	for _, col := range c.Columns {
		if !strings.Contains(msg, c.Table+"."+col) {
			return false
		}
	}
	return true
}

// IsUniqueViolation reports whether the provided error references a unique
// violation. When constraintName is provided, only that constraint matches.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if code, constraint, ok := pgErrorFields(err); ok {
		return code == pgUniqueViolation && (constraintName == "" || constraint == constraintName)
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

func pgErrorFields(err error) (code, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
