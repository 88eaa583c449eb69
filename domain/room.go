package domain

import (
	"time"
)

type RoomID string

// Room is the durable room entity. MemberIDs is the persisted membership
// list, independent of who currently holds a live connection; the volatile
// counterpart lives in the presence registry.
type Room struct {
	ID        RoomID
	Name      string
	OwnerID   string
	MemberIDs []string
	CreatedAt time.Time
}

func (r *Room) HasMember(userID string) bool {
	for _, id := range r.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddMember appends the user to the durable membership list.
// It reports whether the list changed, so a double join stays idempotent.
func (r *Room) AddMember(userID string) bool {
	if r.HasMember(userID) {
		return false
	}
	r.MemberIDs = append(r.MemberIDs, userID)
	return true
}

// RemoveMember drops the user from the durable membership list and reports
// whether the user was present.
func (r *Room) RemoveMember(userID string) bool {
	for i, id := range r.MemberIDs {
		if id == userID {
			r.MemberIDs = append(r.MemberIDs[:i], r.MemberIDs[i+1:]...)
			return true
		}
	}
	return false
}
