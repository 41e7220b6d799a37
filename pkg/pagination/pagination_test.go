package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorSurvivesEncoding(t *testing.T) {
	local := time.FixedZone("UTC-6", -6*60*60)
	original := Cursor{CreatedAt: time.Date(2026, 10, 16, 12, 30, 0, 123, local), ID: uuid.New()}

	parsed, err := ParseCursor(original.Encode())
	require.NoError(t, err)
	assert.True(t, parsed.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, time.UTC, parsed.CreatedAt.Location())
	assert.Equal(t, original.ID, parsed.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	blank, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, blank)

	for name, token := range map[string]string{
		"not base64":   "not a cursor!",
		"not json":     base64.RawURLEncoding.EncodeToString([]byte("2026|abc")),
		"missing id":   base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2026-10-16T00:00:00Z"}`)),
		"missing time": base64.RawURLEncoding.EncodeToString([]byte(`{"id":"` + uuid.NewString() + `"}`)),
	} {
		_, err := ParseCursor(token)
		assert.ErrorIs(t, err, ErrMalformedCursor, name)
	}
}

func TestLimits(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-4))
	assert.Equal(t, MaxLimit, NormalizeLimit(500))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 11, LimitWithBuffer(10))
	assert.Equal(t, MaxLimit+1, LimitWithBuffer(1000))
}

type submissionRow struct {
	id      uuid.UUID
	created time.Time
}

func TestPageKeepsLimitAndPointsAtLastKeptRow(t *testing.T) {
	base := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	rows := []submissionRow{
		{id: uuid.New(), created: base.Add(3 * time.Minute)},
		{id: uuid.New(), created: base.Add(2 * time.Minute)},
		{id: uuid.New(), created: base.Add(time.Minute)},
	}
	cursorOf := func(r submissionRow) Cursor { return Cursor{CreatedAt: r.created, ID: r.id} }

	page, next := Page(rows, 2, cursorOf)
	require.Len(t, page, 2)
	decoded, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, decoded.ID)

	page, next = Page(rows, 5, cursorOf)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}

func TestNilCursorApplyIsNoop(t *testing.T) {
	var cursor *Cursor
	assert.Nil(t, cursor.Apply(nil))
}
