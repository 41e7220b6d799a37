package enums

import (
	"slices"
)

// SessionState is the derived lifecycle stage of a table session.
type SessionState string

const (
	SessionStateOpen            SessionState = "open"
	SessionStateAwaitingPayment SessionState = "awaiting_payment"
	SessionStatePaid            SessionState = "paid"
)

var validSessionStates = []SessionState{
	SessionStateOpen,
	SessionStateAwaitingPayment,
	SessionStatePaid,
}

func (s SessionState) String() string {
	return string(s)
}

func (s SessionState) IsValid() bool { return slices.Contains(validSessionStates, s) }

// ParseSessionState converts raw input into a SessionState.
func ParseSessionState(value string) (SessionState, error) {
	return parse(value, validSessionStates, "session state")
}
