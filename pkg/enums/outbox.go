package enums

import "slices"

// OutboxAggregateType is outbox_events.aggregate_type.
type OutboxAggregateType string

const AggregateTableSession OutboxAggregateType = "table_session"

var validAggregateTypes = []OutboxAggregateType{AggregateTableSession}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(validAggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType is outbox_events.event_type. Adding a value needs a migration that
// extends event_type_enum.
type OutboxEventType string

const (
	EventSessionOpened           OutboxEventType = "session_opened"
	EventSubmissionCreated       OutboxEventType = "submission_created"
	EventSubmissionStatusChanged OutboxEventType = "submission_status_changed"
	EventFlavorStatusChanged     OutboxEventType = "flavor_status_changed"
	EventReceiptIssued           OutboxEventType = "receipt_issued"
	EventSessionPaid             OutboxEventType = "session_paid"
	EventPaymentOverdue          OutboxEventType = "payment_overdue"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSessionOpened,
	EventSubmissionCreated,
	EventSubmissionStatusChanged,
	EventFlavorStatusChanged,
	EventReceiptIssued,
	EventSessionPaid,
	EventPaymentOverdue,
}

// OutboxEventTypes returns every event type in declaration order.
func OutboxEventTypes() []OutboxEventType { return slices.Clone(validOutboxEventTypes) }

func (e OutboxEventType) IsValid() bool { return slices.Contains(validOutboxEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}
