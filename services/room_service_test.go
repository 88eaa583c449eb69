package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/domain/event"
	"roomcast/errors"
	"roomcast/mocks"
	"roomcast/services"
)

var alice = domain.Principal{UserID: "user-1", Name: "Alice", Email: "alice@example.com", Roles: []string{"user"}}

// nullSink satisfies the sink contract where the test does not care about
// delivered events.
type nullSink struct{}

func (nullSink) Consume(context.Context, event.DomainEvent) error { return nil }

func newRoomService(t *testing.T) (*services.RoomService, *mocks.MockIRoomRepository, *mocks.MockIRegistry) {
	t.Helper()
	ctrl := gomock.NewController(t)
	rooms := mocks.NewMockIRoomRepository(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	return services.NewRoomService(rooms, registry, testLogger()), rooms, registry
}

func TestRoomService_CreateRoom(t *testing.T) {
	req := require.New(t)
	service, rooms, _ := newRoomService(t)

	rooms.EXPECT().
		CreateRoom(gomock.Any(), "general", "user-1").
		Return(domain.Room{ID: "room-1", Name: "general", OwnerID: "user-1"}, nil)

	room, err := service.CreateRoom(context.Background(), alice, "  general  ")

	req.NoError(err)
	req.Equal(domain.RoomID("room-1"), room.ID)
}

func TestRoomService_CreateRoom_InvalidName(t *testing.T) {
	req := require.New(t)
	service, _, _ := newRoomService(t)

	_, err := service.CreateRoom(context.Background(), alice, "   ")
	req.ErrorIs(err, errors.ErrInvalidRoomName)

	_, err = service.CreateRoom(context.Background(), alice, strings.Repeat("x", 65))
	req.ErrorIs(err, errors.ErrInvalidRoomName)
}

func TestRoomService_DeleteRoom_OwnerOnly(t *testing.T) {
	req := require.New(t)
	service, rooms, _ := newRoomService(t)
	stored := domain.Room{ID: "room-1", OwnerID: "someone-else"}

	rooms.EXPECT().GetRoom(gomock.Any(), domain.RoomID("room-1")).Return(stored, nil)

	err := service.DeleteRoom(context.Background(), alice, "room-1")
	req.ErrorIs(err, errors.ErrNotRoomOwner)
}

func TestRoomService_DeleteRoom_AdminOverride(t *testing.T) {
	req := require.New(t)
	service, rooms, _ := newRoomService(t)
	admin := domain.Principal{UserID: "user-9", Roles: []string{"user", "admin"}}
	stored := domain.Room{ID: "room-1", OwnerID: "someone-else"}

	rooms.EXPECT().GetRoom(gomock.Any(), domain.RoomID("room-1")).Return(stored, nil)
	rooms.EXPECT().DeleteRoom(gomock.Any(), domain.RoomID("room-1")).Return(nil)

	req.NoError(service.DeleteRoom(context.Background(), admin, "room-1"))
}

func TestRoomService_JoinRoom(t *testing.T) {
	req := require.New(t)
	service, rooms, registry := newRoomService(t)
	sink := nullSink{}

	rooms.EXPECT().
		GetRoom(gomock.Any(), domain.RoomID("room-1")).
		Return(domain.Room{ID: "room-1", Name: "general", OwnerID: "owner", MemberIDs: []string{"owner"}}, nil)
	rooms.EXPECT().
		AddMember(gomock.Any(), domain.RoomID("room-1"), "user-1").
		Return(true, nil)
	registry.EXPECT().
		Join(gomock.Any(), sink).
		DoAndReturn(func(entry domain.PresenceEntry, _ contract.EventSink) []domain.Member {
			req.Equal(domain.RoomID("room-1"), entry.RoomID)
			req.Equal("user-1", entry.UserID)
			req.Equal(domain.ConnID("conn-1"), entry.ConnID)
			req.False(entry.JoinedAt.IsZero())
			return []domain.Member{{UserID: "owner"}, {UserID: "user-1", Name: "Alice"}}
		})

	snapshot, err := service.JoinRoom(context.Background(), alice, "room-1", "conn-1", sink)

	req.NoError(err)
	req.ElementsMatch([]string{"owner", "user-1"}, snapshot.Room.MemberIDs)
	req.Len(snapshot.Members, 2)
}

func TestRoomService_JoinRoom_UnknownRoom(t *testing.T) {
	req := require.New(t)
	service, rooms, _ := newRoomService(t)

	rooms.EXPECT().
		GetRoom(gomock.Any(), domain.RoomID("missing")).
		Return(domain.Room{}, errors.ErrRoomNotFound)

	_, err := service.JoinRoom(context.Background(), alice, "missing", "conn-1", nullSink{})
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomService_LeaveRoom(t *testing.T) {
	req := require.New(t)
	service, rooms, registry := newRoomService(t)

	// Every device the user has in the room loses presence, not just the
	// one that sent the leave.
	rooms.EXPECT().RemoveMember(gomock.Any(), domain.RoomID("room-1"), "user-1").Return(true, nil)
	registry.EXPECT().LeaveUser(domain.RoomID("room-1"), "user-1").Return(2)

	req.NoError(service.LeaveRoom(context.Background(), alice, "room-1"))
}

func TestRoomService_LeaveRoom_NotAMember(t *testing.T) {
	req := require.New(t)
	service, rooms, _ := newRoomService(t)

	// No presence removal happens when the durable membership check fails
	rooms.EXPECT().RemoveMember(gomock.Any(), domain.RoomID("room-1"), "user-1").Return(false, nil)

	req.ErrorIs(service.LeaveRoom(context.Background(), alice, "room-1"), errors.ErrNotAMember)
}

func TestRoomService_LeaveRoom_UnknownRoom(t *testing.T) {
	req := require.New(t)
	service, rooms, _ := newRoomService(t)

	rooms.EXPECT().RemoveMember(gomock.Any(), domain.RoomID("missing"), "user-1").Return(false, errors.ErrRoomNotFound)

	req.ErrorIs(service.LeaveRoom(context.Background(), alice, "missing"), errors.ErrRoomNotFound)
}

func TestRoomService_Disconnect(t *testing.T) {
	req := require.New(t)
	service, _, registry := newRoomService(t)

	registry.EXPECT().
		Drop(domain.ConnID("conn-1")).
		Return([]domain.RoomID{"room-1", "room-2"})

	req.ElementsMatch([]domain.RoomID{"room-1", "room-2"}, service.Disconnect("conn-1"))
}

func TestRoomService_LiveMembers(t *testing.T) {
	req := require.New(t)
	service, rooms, registry := newRoomService(t)

	rooms.EXPECT().GetRoom(gomock.Any(), domain.RoomID("room-1")).Return(domain.Room{ID: "room-1"}, nil)
	registry.EXPECT().Members(domain.RoomID("room-1")).Return([]domain.Member{{UserID: "user-1"}})

	members, err := service.LiveMembers(context.Background(), "room-1")
	req.NoError(err)
	req.Len(members, 1)
}
