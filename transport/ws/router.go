package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/samber/lo"

	"roomcast/domain"
	"roomcast/errors"
	"roomcast/services"
)

// Router dispatches inbound envelopes to the services. One Router serves
// all connections; per-connection state stays on the Client.
type Router struct {
	rooms    services.IRoomService
	messages services.IMessageService
	log      *slog.Logger
}

func NewRouter(rooms services.IRoomService, messages services.IMessageService, log *slog.Logger) *Router {
	return &Router{rooms: rooms, messages: messages, log: log}
}

// Handle processes one envelope for one client. A panic in a handler is
// converted into an error frame; the connection survives.
func (r *Router) Handle(ctx context.Context, c *Client, env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Handler panic", "event", env.Event, "panic", rec)
			c.SendError(errors.CodeInternal, "internal error")
		}
	}()

	switch env.Event {
	case EventJoinRoom:
		r.joinRoom(ctx, c, env.Payload)
	case EventLeaveRoom:
		r.leaveRoom(ctx, c, env.Payload)
	case EventSendMessage:
		r.sendMessage(ctx, c, env.Payload)
	case EventListUsers:
		r.listUsers(ctx, c, env.Payload)
	case EventGetMessages:
		r.getMessages(ctx, c, env.Payload)
	default:
		c.SendError(errors.CodeValidation, "unknown event: "+env.Event)
	}
}

func (r *Router) joinRoom(ctx context.Context, c *Client, payload json.RawMessage) {
	var in RoomRef
	if !r.decode(c, payload, &in) {
		return
	}

	snapshot, err := r.rooms.JoinRoom(ctx, c.Principal(), domain.RoomID(in.Room), c.ConnID(), c)
	if err != nil {
		r.replyError(c, err)
		return
	}

	// The joiner's own confirmation; the roster broadcast reaches everyone
	// in the room, joiner included, through the registry.
	env, err := NewEnvelope(EventJoinedRoom, RoomRef{Room: string(snapshot.Room.ID)})
	if err != nil {
		r.replyError(c, err)
		return
	}
	c.Send(env)
}

func (r *Router) leaveRoom(ctx context.Context, c *Client, payload json.RawMessage) {
	var in RoomRef
	if !r.decode(c, payload, &in) {
		return
	}

	if err := r.rooms.LeaveRoom(ctx, c.Principal(), domain.RoomID(in.Room)); err != nil {
		r.replyError(c, err)
		return
	}

	env, err := NewEnvelope(EventLeftRoom, RoomRef{Room: in.Room})
	if err != nil {
		r.replyError(c, err)
		return
	}
	c.Send(env)
}

func (r *Router) sendMessage(ctx context.Context, c *Client, payload json.RawMessage) {
	var in SendMessageIn
	if !r.decode(c, payload, &in) {
		return
	}

	// The broadcast carries the message to every member, sender included;
	// no extra confirmation frame is sent.
	if _, err := r.messages.SendMessage(ctx, c.Principal(), c.ConnID(), domain.RoomID(in.Room), in.Content); err != nil {
		r.replyError(c, err)
	}
}

func (r *Router) listUsers(ctx context.Context, c *Client, payload json.RawMessage) {
	var in RoomRef
	if !r.decode(c, payload, &in) {
		return
	}

	members, err := r.rooms.LiveMembers(ctx, domain.RoomID(in.Room))
	if err != nil {
		r.replyError(c, err)
		return
	}

	env, err := NewEnvelope(EventUsersInRoom, RosterOut{
		Room:    in.Room,
		Members: lo.Map(members, func(m domain.Member, _ int) MemberOut { return toMemberOut(m) }),
	})
	if err != nil {
		r.replyError(c, err)
		return
	}
	c.Send(env)
}

func (r *Router) getMessages(ctx context.Context, c *Client, payload json.RawMessage) {
	var in GetMessagesIn
	if !r.decode(c, payload, &in) {
		return
	}

	messages, next, err := r.messages.History(ctx, c.Principal(), domain.RoomID(in.Room), in.Cursor)
	if err != nil {
		r.replyError(c, err)
		return
	}

	env, err := NewEnvelope(EventMessagesInRoom, MessagesPageOut{
		Room:       in.Room,
		Messages:   lo.Map(messages, func(m domain.Message, _ int) MessageOut { return toMessageOut(m) }),
		NextCursor: next,
	})
	if err != nil {
		r.replyError(c, err)
		return
	}
	c.Send(env)
}

func (r *Router) decode(c *Client, payload json.RawMessage, out any) bool {
	if err := json.Unmarshal(payload, out); err != nil {
		c.SendError(errors.CodeValidation, "malformed payload")
		return false
	}
	return true
}

func (r *Router) replyError(c *Client, err error) {
	code := errors.ToWireCode(err)
	if code == errors.CodeInternal {
		r.log.Error("Request failed", "conn_id", c.ConnID(), "err", err)
		c.SendError(code, "internal error")
		return
	}
	c.SendError(code, err.Error())
}
