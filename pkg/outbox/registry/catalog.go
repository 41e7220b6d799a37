package registry

import (
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/payloads"
)

// PayloadVersion is the only envelope version produced today.
const PayloadVersion = 1

// catalog lists every session event and the Go type its payload decodes into. Producers,
// the publisher and consumers all read from this one table.
var catalog = map[enums.OutboxEventType]func() interface{}{
	enums.EventSessionOpened:           func() interface{} { return &payloads.SessionOpenedEvent{} },
	enums.EventSubmissionCreated:       func() interface{} { return &payloads.SubmissionCreatedEvent{} },
	enums.EventSubmissionStatusChanged: func() interface{} { return &payloads.SubmissionStatusChangedEvent{} },
	enums.EventFlavorStatusChanged:     func() interface{} { return &payloads.FlavorStatusChangedEvent{} },
	enums.EventReceiptIssued:           func() interface{} { return &payloads.ReceiptIssuedEvent{} },
	enums.EventSessionPaid:             func() interface{} { return &payloads.SessionPaidEvent{} },
	enums.EventPaymentOverdue:          func() interface{} { return &payloads.PaymentOverdueEvent{} },
}

// Known reports whether eventType has a payload type registered.
func Known(eventType enums.OutboxEventType) bool {
	_, ok := catalog[eventType]
	return ok
}
