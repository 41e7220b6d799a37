package enums

import "slices"

// SubmissionStatus tracks one order submission through the kitchen workflow.
type SubmissionStatus string

const (
	SubmissionStatusPreparing SubmissionStatus = "preparing"
	SubmissionStatusAccepted  SubmissionStatus = "accepted"
	SubmissionStatusCompleted SubmissionStatus = "completed"
	SubmissionStatusPaid      SubmissionStatus = "paid"
)

// ordered from first to last; Rank relies on the position.
var validSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusPreparing,
	SubmissionStatusAccepted,
	SubmissionStatusCompleted,
	SubmissionStatusPaid,
}

// String implements fmt.Stringer.
func (s SubmissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubmissionStatus.
func (s SubmissionStatus) IsValid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of the status in the workflow, or -1 when unknown.
func (s SubmissionStatus) Rank() int { return slices.Index(validSubmissionStatuses, s) }

// ParseSubmissionStatus converts raw input into a SubmissionStatus.
func ParseSubmissionStatus(value string) (SubmissionStatus, error) {
	return parse(value, validSubmissionStatuses, "submission status")
}
