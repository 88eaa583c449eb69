// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

// Principal is an authenticated user identity plus its role set, valid for
// the scope of one connection or one HTTP request. Roles are resolved from
// storage at authentication time, not taken from the token payload, so a
// role change invalidates stale grants on the next connection.
type Principal struct {
	UserID    string
	Name      string
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Member is the Principal-lite representation used in room rosters.
type Member struct {
	UserID string
	Name   string
	Email  string
}

func (p Principal) Member() Member {
	return Member{UserID: p.UserID, Name: p.Name, Email: p.Email}
}
