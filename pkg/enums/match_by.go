package enums

import (
	"slices"
	"strings"
)

// MatchBy selects the key used to fold regular items into an existing tab line.
type MatchBy string

const (
	MatchByName MatchBy = "name"
	MatchByID   MatchBy = "id"
)

var validMatchBy = []MatchBy{
	MatchByName,
	MatchByID,
}

func (m MatchBy) IsValid() bool { return slices.Contains(validMatchBy, m) }

// ParseMatchBy converts raw input into MatchBy, ignoring case and surrounding space.
func ParseMatchBy(value string) (MatchBy, error) {
	return parse(strings.ToLower(strings.TrimSpace(value)), validMatchBy, "match mode")
}
