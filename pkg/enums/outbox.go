package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateRescueBag   OutboxAggregateType = "rescue_bag"
	AggregateUser        OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateReservation,
	AggregateRescueBag,
	AggregateUser,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf("aggregate type", validAggregateTypes, value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationConfirmed OutboxEventType = "reservation_confirmed"
	EventReservationReady     OutboxEventType = "reservation_ready"
	EventReservationPickedUp  OutboxEventType = "reservation_picked_up"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
	EventReservationExpired   OutboxEventType = "reservation_expired"
	EventRescueBagPaused      OutboxEventType = "rescue_bag_paused"
	EventRescueBagResumed     OutboxEventType = "rescue_bag_resumed"
	EventRescueBagExpired     OutboxEventType = "rescue_bag_expired"
	EventImpactCredited       OutboxEventType = "impact_credited"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationCreated,
	EventReservationConfirmed,
	EventReservationReady,
	EventReservationPickedUp,
	EventReservationCancelled,
	EventReservationExpired,
	EventRescueBagPaused,
	EventRescueBagResumed,
	EventRescueBagExpired,
	EventImpactCredited,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf("event type", validOutboxEventTypes, value)
}

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}

// OutboxEventTypes returns every known event type.
func OutboxEventTypes() []OutboxEventType {
	return slices.Clone(validOutboxEventTypes)
}
