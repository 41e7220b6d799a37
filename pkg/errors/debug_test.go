package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPgxFields(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "ux_table_sessions_receipt_number",
		TableName:      "table_sessions",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("update session: %w", pgErr), "receipt collision")

	dump := Dump(err)
	if dump.Code != CodeConflict || dump.HTTPStatus != http.StatusConflict {
		t.Fatalf("unexpected code metadata %+v", dump)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_table_sessions_receipt_number" {
		t.Fatalf("pg fields not extracted: %+v", dump)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(dump.Chain))
	}
}

func TestDumpExtractsPQFields(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "ux_table_sessions_open_table", Table: "table_sessions"})
	dump := Dump(err)
	if dump.PGConstraint != "ux_table_sessions_open_table" || dump.PGTable != "table_sessions" {
		t.Fatalf("pq fields not extracted: %+v", dump)
	}
	if dump.Code != "" {
		t.Fatalf("untyped error should not carry a code, got %s", dump.Code)
	}
}

func TestDumpNil(t *testing.T) {
	if got := Dump(nil); got.TopMessage != "" || got.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", got)
	}
}

func TestDumpCapsChainDepth(t *testing.T) {
	err := fmt.Errorf("root")
	for i := 0; i < 12; i++ {
		err = fmt.Errorf("layer %d: %w", i, err)
	}
	if got := len(Dump(err).Chain); got != maxChainDepth {
		t.Fatalf("expected chain capped at %d, got %d", maxChainDepth, got)
	}
}
