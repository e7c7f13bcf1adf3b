package model

import (
	"time"

	"github.com/google/uuid"
)

// Event announces a freshly committed Record to subscribers.
type Event struct {
	ID          uuid.UUID
	Competition string
	Entries     []Entry
	LastUpdated time.Time
}

// NewEvent builds the update event for a committed record.
func NewEvent(rec Record) Event {
	return Event{
		ID:          uuid.New(),
		Competition: rec.Competition,
		Entries:     rec.Entries,
		LastUpdated: rec.LastUpdated,
	}
}
