package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
)

// queryParam parses a single query value. ok is false when the parameter is absent
// or blank.
func queryParam[T any](r *http.Request, key, kind string, parse func(string) (T, error)) (value T, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return value, false, nil
	}
	value, err = parse(raw)
	if err != nil {
		return value, false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be "+kind).
			WithDetails(map[string]any{"field": key, "value": raw})
	}
	return value, true, nil
}

// ParseQueryInt reads an integer in [lo, hi], falling back to def when absent.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	n, ok, err := queryParam(r, key, "numeric", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case !ok:
		return def, nil
	}
	if n < lo || n > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return n, nil
}

// ParseQueryOptionalInt returns nil when the parameter is absent.
func ParseQueryOptionalInt(r *http.Request, key string) (*int, error) {
	n, ok, err := queryParam(r, key, "numeric", strconv.Atoi)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	b, _, err := queryParam(r, key, "a boolean", strconv.ParseBool)
	return b, err
}
