package alert

import (
	"github.com/roomops/vcwatch/internal/domain"
)

// EventType is the alert lifecycle transition being announced.
type EventType string

const (
	EventOpened    EventType = "opened"
	EventEscalated EventType = "escalated"
	EventResolved  EventType = "resolved"
)

// Event is one finalized alert transition. The engine emits exactly one per
// transition, never one per sample.
type Event struct {
	Type   EventType           `json:"type"`
	Alert  domain.Alert        `json:"alert"`
	Room   domain.Room         `json:"room"`
	Status domain.HealthStatus `json:"status"`
}

// Key identifies a delivery for deduplication at the dispatcher boundary.
func (e Event) Key() string {
	return e.Alert.ID + ":" + string(e.Type)
}

// ActionFunc receives finalized transitions, e.g. the notification
// dispatcher's Dispatch method.
type ActionFunc func(Event)
