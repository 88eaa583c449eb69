package event

import (
	"time"

	"github.com/google/uuid"

	"roomcast/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted is emitted after a message has been persisted. The payload
// carries the canonical stored form, censored words included only as a
// count for observability.
type MessagePosted struct {
	Message       domain.Message
	CensoredWords []string
}

func (e MessagePosted) RoomID() domain.RoomID {
	return e.Message.RoomID
}

// MessageEdited is emitted after an author updated their message.
type MessageEdited struct {
	Message domain.Message
}

func (e MessageEdited) RoomID() domain.RoomID {
	return e.Message.RoomID
}

// MessageRemoved is emitted after an author deleted their message.
type MessageRemoved struct {
	Room domain.RoomID
	ID   uuid.UUID
}

func (e MessageRemoved) RoomID() domain.RoomID {
	return e.Room
}

// RosterUpdated carries the full live-member snapshot of a room after a
// join, leave, or disconnect. Receivers replace their roster wholesale.
type RosterUpdated struct {
	Room    domain.RoomID
	Members []domain.Member
	At      time.Time
}

func (e RosterUpdated) RoomID() domain.RoomID {
	return e.Room
}
