// Package events provides event types and publishing infrastructure for planview.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventViewChanged signals that derived views are stale and observers
	// should re-render. Published once per completed refresh cycle.
	EventViewChanged EventType = "view_changed"
	// EventItemChanged indicates a single item's record changed through the
	// engine (transition or propagation write).
	EventItemChanged EventType = "item_changed"
	// EventSpecChanged indicates an item's specification records changed.
	EventSpecChanged EventType = "spec_changed"
)

// Event represents a published event.
type Event struct {
	Type   EventType `json:"type"`
	ItemID string    `json:"item_id,omitempty"`
	Data   any       `json:"data,omitempty"`
	Time   time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, itemID string, data any) Event {
	return Event{
		Type:   eventType,
		ItemID: itemID,
		Data:   data,
		Time:   time.Now(),
	}
}
