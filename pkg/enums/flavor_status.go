package enums

import "slices"

// FlavorStatus tracks the kitchen progress of the current flavor round of a promotional line.
type FlavorStatus string

const (
	FlavorStatusPending   FlavorStatus = "flavor_pending"
	FlavorStatusAccepted  FlavorStatus = "flavor_accepted"
	FlavorStatusCompleted FlavorStatus = "flavor_completed"
)

var validFlavorStatuses = []FlavorStatus{
	FlavorStatusPending,
	FlavorStatusAccepted,
	FlavorStatusCompleted,
}

// String implements fmt.Stringer.
func (f FlavorStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FlavorStatus.
func (f FlavorStatus) IsValid() bool {
	return f.Rank() >= 0
}

// Rank returns the position of the status in the flavor track, or -1 when unknown.
func (f FlavorStatus) Rank() int { return slices.Index(validFlavorStatuses, f) }

// ParseFlavorStatus converts raw input into a FlavorStatus.
func ParseFlavorStatus(value string) (FlavorStatus, error) {
	return parse(value, validFlavorStatuses, "flavor status")
}
