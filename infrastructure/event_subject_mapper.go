package infrastructure

import (
	"fmt"

	"colorgame/domain/events"
)

// EventSubjectMapper handles mapping between domain events and message subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeRoundCreated:
		return "colorgame.rounds.created"
	case events.EventTypeRoundResolved:
		return "colorgame.rounds.resolved"
	case events.EventTypeBetPlaced:
		return "colorgame.bets.placed"
	case events.EventTypeBalanceChange:
		return "colorgame.users.balance_changed"
	default:
		return fmt.Sprintf("colorgame.unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "colorgame.rounds.created":
		return events.EventTypeRoundCreated
	case "colorgame.rounds.resolved":
		return events.EventTypeRoundResolved
	case "colorgame.bets.placed":
		return events.EventTypeBetPlaced
	case "colorgame.users.balance_changed":
		return events.EventTypeBalanceChange
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"colorgame.rounds.created",
		"colorgame.rounds.resolved",
		"colorgame.bets.placed",
		"colorgame.users.balance_changed",
	}
}
