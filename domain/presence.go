package domain

import (
	"time"
)

// ConnID identifies one live bidirectional transport session.
type ConnID string

// PresenceEntry records that a user's connection is currently inside a
// room. Live-only: entries are rebuilt from zero on process restart and a
// user connected from several devices holds several entries.
type PresenceEntry struct {
	RoomID   RoomID
	UserID   string
	ConnID   ConnID
	Name     string
	Email    string
	JoinedAt time.Time
}

func (e PresenceEntry) Member() Member {
	return Member{UserID: e.UserID, Name: e.Name, Email: e.Email}
}
