// Package ws is the realtime surface: one websocket per client, JSON
// envelopes both ways. Requests on a connection are handled strictly in
// arrival order, so a client always observes its own operations in the
// order it issued them.
package ws

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"roomcast/domain"
	"roomcast/domain/event"
	"roomcast/errors"
)

// Client to server events.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventListUsers   = "list-users"
	EventGetMessages = "get-messages"
)

// Server to client events.
const (
	EventJoinedRoom     = "joined-room"
	EventLeftRoom       = "left-room"
	EventUsersInRoom    = "users-in-room"
	EventNewMessage     = "new-message"
	EventMessageEdited  = "message-edited"
	EventMessageRemoved = "message-removed"
	EventMessagesInRoom = "messages-in-room"
	EventError          = "error"
)

// Envelope is the frame every websocket message travels in.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(eventName string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: eventName, Payload: raw}, nil
}

type RoomRef struct {
	Room string `json:"room"`
}

type SendMessageIn struct {
	Room    string `json:"room"`
	Content string `json:"content"`
}

type GetMessagesIn struct {
	Room   string  `json:"room"`
	Cursor *string `json:"cursor,omitempty"`
}

type MemberOut struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type RosterOut struct {
	Room    string      `json:"room"`
	Members []MemberOut `json:"members"`
	At      time.Time   `json:"at"`
}

type MessageOut struct {
	ID        string     `json:"id"`
	Room      string     `json:"room"`
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	Lang      string     `json:"lang,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type MessageRemovedOut struct {
	Room string `json:"room"`
	ID   string `json:"id"`
}

type MessagesPageOut struct {
	Room       string       `json:"room"`
	Messages   []MessageOut `json:"messages"`
	NextCursor *string      `json:"next_cursor,omitempty"`
}

type ErrorOut struct {
	Code    errors.WireCode `json:"code"`
	Message string          `json:"message"`
}

func toMemberOut(m domain.Member) MemberOut {
	return MemberOut{UserID: m.UserID, Name: m.Name}
}

func toMessageOut(m domain.Message) MessageOut {
	out := MessageOut{
		ID:        m.ID.String(),
		Room:      string(m.RoomID),
		Author:    m.AuthorID,
		Content:   m.Content,
		Lang:      m.Lang,
		CreatedAt: m.CreatedAt,
	}
	// On persist UpdatedAt starts equal to CreatedAt; only a real edit
	// moves it forward.
	if m.UpdatedAt.After(m.CreatedAt) {
		out.UpdatedAt = lo.ToPtr(m.UpdatedAt)
	}
	return out
}

// toOutbound maps a domain event onto its wire envelope. Roster changes
// and message lifecycle events all reach the client through here.
func toOutbound(e event.DomainEvent) (Envelope, error) {
	switch evt := e.(type) {
	case event.RosterUpdated:
		return NewEnvelope(EventUsersInRoom, RosterOut{
			Room:    string(evt.Room),
			Members: lo.Map(evt.Members, func(m domain.Member, _ int) MemberOut { return toMemberOut(m) }),
			At:      evt.At,
		})
	case event.MessagePosted:
		return NewEnvelope(EventNewMessage, toMessageOut(evt.Message))
	case event.MessageEdited:
		return NewEnvelope(EventMessageEdited, toMessageOut(evt.Message))
	case event.MessageRemoved:
		return NewEnvelope(EventMessageRemoved, MessageRemovedOut{
			Room: string(evt.Room),
			ID:   evt.ID.String(),
		})
	default:
		return Envelope{}, nil
	}
}
