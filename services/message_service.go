//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/domain/event"
	"roomcast/errors"
	"roomcast/moderation"
	"roomcast/repositories"
	"roomcast/search"
)

type IMessageService interface {
	SendMessage(ctx context.Context, principal domain.Principal, connID domain.ConnID, room domain.RoomID, content string) (domain.Message, error)
	History(ctx context.Context, principal domain.Principal, room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	Search(ctx context.Context, principal domain.Principal, room domain.RoomID, terms string, limit int) ([]search.Hit, uint64, error)
	EditMessage(ctx context.Context, principal domain.Principal, id string, content string) (domain.Message, error)
	RemoveMessage(ctx context.Context, principal domain.Principal, id string) error
}

// ISearcher is the read side of the message index.
type ISearcher interface {
	Search(ctx context.Context, room domain.RoomID, terms string, limit int) ([]search.Hit, uint64, error)
}

type MessageService struct {
	messages   repositories.IMessageRepository
	rooms      repositories.IRoomRepository
	registry   contract.IRegistry
	moderator  moderation.Moderator
	index      ISearcher
	events     chan<- event.DomainEvent
	maxContent int
	log        *slog.Logger
}

func NewMessageService(
	messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository,
	registry contract.IRegistry,
	moderator moderation.Moderator,
	index ISearcher,
	events chan<- event.DomainEvent,
	maxContent int,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		messages:   messages,
		rooms:      rooms,
		registry:   registry,
		moderator:  moderator,
		index:      index,
		events:     events,
		maxContent: maxContent,
		log:        log,
	}
}

// SendMessage runs the full send pipeline in order: validate, check
// presence, censor, persist, broadcast. Nothing is visible to anyone until
// the message is durable, and a rejected message leaves no trace.
func (s *MessageService) SendMessage(
	ctx context.Context,
	principal domain.Principal,
	connID domain.ConnID,
	room domain.RoomID,
	content string,
) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return domain.Message{}, errors.ErrContentTooLong
	}

	// A presence entry alone is not proof the room still exists; it may
	// have been deleted out of band since the join.
	if _, err := s.rooms.GetRoom(ctx, room); err != nil {
		return domain.Message{}, err
	}
	if !s.registry.Contains(room, connID) {
		return domain.Message{}, errors.ErrNotInRoom
	}

	sanitized, foundWords := s.moderator.Censor(content)
	info := whatlanggo.Detect(sanitized)

	msg, err := s.messages.StoreMessage(ctx, repositories.MessageDraft{
		Room:    room,
		Author:  principal.UserID,
		Content: sanitized,
		Lang:    info.Lang.Iso6391(),
	})
	if err != nil {
		return domain.Message{}, err
	}

	evt := event.MessagePosted{Message: msg, CensoredWords: foundWords}
	s.registry.Broadcast(room, evt)
	s.publish(evt)

	if len(foundWords) > 0 {
		s.log.Info("Message censored",
			"room", room,
			"author", principal.UserID,
			"words", len(foundWords))
	}
	return msg, nil
}

// History pages through a room's messages, newest first. Durable
// membership is enough; the caller does not need a live presence entry.
func (s *MessageService) History(
	ctx context.Context,
	principal domain.Principal,
	room domain.RoomID,
	cursor *string,
) ([]domain.Message, *string, error) {
	stored, err := s.rooms.GetRoom(ctx, room)
	if err != nil {
		return nil, nil, err
	}
	if !stored.HasMember(principal.UserID) && !principal.HasRole("admin") {
		return nil, nil, errors.ErrMembershipRequired
	}
	return s.messages.ListMessages(ctx, room, cursor)
}

// Search runs full-text search over a room's messages. Access follows the
// same rule as History: reading room content takes durable membership.
func (s *MessageService) Search(
	ctx context.Context,
	principal domain.Principal,
	room domain.RoomID,
	terms string,
	limit int,
) ([]search.Hit, uint64, error) {
	stored, err := s.rooms.GetRoom(ctx, room)
	if err != nil {
		return nil, 0, err
	}
	if !stored.HasMember(principal.UserID) && !principal.HasRole("admin") {
		return nil, 0, errors.ErrMembershipRequired
	}
	return s.index.Search(ctx, room, terms, limit)
}

// EditMessage rewrites a message's content. Author only; the edit runs
// through the same censoring as a fresh send and fans out as an edit event.
func (s *MessageService) EditMessage(
	ctx context.Context,
	principal domain.Principal,
	id string,
	content string,
) (domain.Message, error) {
	msgID, err := parseMessageID(id)
	if err != nil {
		return domain.Message{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return domain.Message{}, errors.ErrContentTooLong
	}

	current, err := s.messages.GetMessage(ctx, msgID)
	if err != nil {
		return domain.Message{}, err
	}
	if current.AuthorID != principal.UserID {
		return domain.Message{}, errors.ErrNotAuthor
	}

	sanitized, _ := s.moderator.Censor(content)
	updated, err := s.messages.UpdateMessage(ctx, msgID, sanitized)
	if err != nil {
		return domain.Message{}, err
	}

	evt := event.MessageEdited{Message: updated}
	s.registry.Broadcast(updated.RoomID, evt)
	s.publish(evt)
	return updated, nil
}

// RemoveMessage deletes a message for its author, or for an admin.
func (s *MessageService) RemoveMessage(ctx context.Context, principal domain.Principal, id string) error {
	msgID, err := parseMessageID(id)
	if err != nil {
		return err
	}

	current, err := s.messages.GetMessage(ctx, msgID)
	if err != nil {
		return err
	}
	if current.AuthorID != principal.UserID && !principal.HasRole("admin") {
		return errors.ErrNotAuthor
	}

	if err := s.messages.DeleteMessage(ctx, msgID); err != nil {
		return err
	}

	evt := event.MessageRemoved{Room: current.RoomID, ID: current.ID}
	s.registry.Broadcast(current.RoomID, evt)
	s.publish(evt)
	return nil
}

// A malformed id cannot name any stored message.
func parseMessageID(id string) (uuid.UUID, error) {
	msgID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errors.ErrMessageNotFound
	}
	return msgID, nil
}

// publish hands the event to the permanent sinks via the fanout channel.
// The channel is buffered; under pressure the projection lags rather than
// the send path.
func (s *MessageService) publish(e event.DomainEvent) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("Event channel full, dropping event for projections", "room", e.RoomID())
	}
}
