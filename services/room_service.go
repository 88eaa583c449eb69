//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/errors"
	"roomcast/repositories"
)

// RoomSnapshot is what a joiner gets back: the durable room and the live
// roster as of the join, which already includes the joiner.
type RoomSnapshot struct {
	Room    domain.Room
	Members []domain.Member
}

type IRoomService interface {
	CreateRoom(ctx context.Context, principal domain.Principal, name string) (domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	DeleteRoom(ctx context.Context, principal domain.Principal, id domain.RoomID) error
	JoinRoom(ctx context.Context, principal domain.Principal, id domain.RoomID, connID domain.ConnID, sink contract.EventSink) (RoomSnapshot, error)
	LeaveRoom(ctx context.Context, principal domain.Principal, id domain.RoomID) error
	Disconnect(connID domain.ConnID) []domain.RoomID
	LiveMembers(ctx context.Context, id domain.RoomID) ([]domain.Member, error)
}

type RoomService struct {
	rooms    repositories.IRoomRepository
	registry contract.IRegistry
	log      *slog.Logger
}

func NewRoomService(rooms repositories.IRoomRepository, registry contract.IRegistry, log *slog.Logger) *RoomService {
	return &RoomService{rooms: rooms, registry: registry, log: log}
}

func (s *RoomService) CreateRoom(ctx context.Context, principal domain.Principal, name string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return domain.Room{}, errors.ErrInvalidRoomName
	}

	room, err := s.rooms.CreateRoom(ctx, name, principal.UserID)
	if err != nil {
		return domain.Room{}, err
	}
	s.log.Info("Room created", "room", room.ID, "owner", principal.UserID)
	return room, nil
}

func (s *RoomService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.rooms.ListRooms(ctx)
}

// DeleteRoom removes the durable room. Only the owner may do this; live
// members keep their sockets and simply stop resolving the room.
func (s *RoomService) DeleteRoom(ctx context.Context, principal domain.Principal, id domain.RoomID) error {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if room.OwnerID != principal.UserID && !principal.HasRole("admin") {
		return errors.ErrNotRoomOwner
	}
	return s.rooms.DeleteRoom(ctx, id)
}

// JoinRoom makes the caller a durable member of the room and registers the
// connection in the room's broadcast group. Joining a room the connection
// is already in refreshes nothing and returns the current roster; the
// operation is idempotent end to end.
func (s *RoomService) JoinRoom(
	ctx context.Context,
	principal domain.Principal,
	id domain.RoomID,
	connID domain.ConnID,
	sink contract.EventSink,
) (RoomSnapshot, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return RoomSnapshot{}, err
	}

	added, err := s.rooms.AddMember(ctx, id, principal.UserID)
	if err != nil {
		return RoomSnapshot{}, err
	}
	if added {
		room.MemberIDs = append(room.MemberIDs, principal.UserID)
	}

	members := s.registry.Join(domain.PresenceEntry{
		RoomID:   id,
		UserID:   principal.UserID,
		ConnID:   connID,
		Name:     principal.Name,
		Email:    principal.Email,
		JoinedAt: time.Now().UTC(),
	}, sink)

	s.log.Info("User joined room", "room", id, "user_id", principal.UserID, "live_members", len(members))
	return RoomSnapshot{Room: room, Members: members}, nil
}

// LeaveRoom ends the membership: the durable record is removed and every
// connection the user holds in the room drops out of the broadcast group,
// so a multi-device user cannot keep a live entry without a membership.
// Leaving a room the user is not a member of is an error. An abrupt
// disconnect is different, it only clears presence and keeps the
// membership (see Disconnect).
func (s *RoomService) LeaveRoom(ctx context.Context, principal domain.Principal, id domain.RoomID) error {
	removed, err := s.rooms.RemoveMember(ctx, id, principal.UserID)
	if err != nil {
		return err
	}
	if !removed {
		return errors.ErrNotAMember
	}

	dropped := s.registry.LeaveUser(id, principal.UserID)
	s.log.Info("User left room", "room", id, "user_id", principal.UserID, "connections", dropped)
	return nil
}

// Disconnect clears every presence entry the connection held and returns
// the rooms that saw it go. Called on socket close, however it happened.
// Durable memberships survive; reconnecting and rejoining restores
// presence.
func (s *RoomService) Disconnect(connID domain.ConnID) []domain.RoomID {
	return s.registry.Drop(connID)
}

func (s *RoomService) LiveMembers(ctx context.Context, id domain.RoomID) ([]domain.Member, error) {
	if _, err := s.rooms.GetRoom(ctx, id); err != nil {
		return nil, err
	}
	return s.registry.Members(id), nil
}
