package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"roomcast/domain"
	"roomcast/domain/event"
)

type captureSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *captureSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) rosters() []event.RosterUpdated {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []event.RosterUpdated
	for _, e := range s.events {
		if r, ok := e.(event.RosterUpdated); ok {
			res = append(res, r)
		}
	}
	return res
}

func newEntry(roomID domain.RoomID, userID string) domain.PresenceEntry {
	return domain.PresenceEntry{
		RoomID:   roomID,
		UserID:   userID,
		ConnID:   domain.ConnID(uuid.NewString()),
		Name:     "user-" + userID,
		JoinedAt: time.Now().UTC(),
	}
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

func TestRegistry_Join_One_Room_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")
	sink := &captureSink{}
	entry := newEntry(roomID, "u1")

	// When a participant joins an empty room
	members := registry.Join(entry, sink)

	// Then the returned roster already contains the joiner
	req.Len(members, 1)
	req.Equal("u1", members[0].UserID)

	// And the joiner received the roster broadcast
	rosters := sink.rosters()
	req.Len(rosters, 1)
	req.Len(rosters[0].Members, 1)

	req.True(registry.Contains(roomID, entry.ConnID))
	req.Equal([]domain.RoomID{roomID}, registry.Rooms(entry.ConnID))
}

func TestRegistry_Join_Broadcasts_Roster_To_Existing_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")
	sink1 := &captureSink{}
	sink2 := &captureSink{}
	entry1 := newEntry(roomID, "u1")
	entry2 := newEntry(roomID, "u2")
	entry2.JoinedAt = entry1.JoinedAt.Add(time.Millisecond)

	registry.Join(entry1, sink1)

	// When a second participant joins
	members := registry.Join(entry2, sink2)

	// Then the roster keeps join order
	req.Len(members, 2)
	req.Equal("u1", members[0].UserID)
	req.Equal("u2", members[1].UserID)

	// And the first participant saw both rosters
	rosters := sink1.rosters()
	req.Len(rosters, 2)
	req.Len(rosters[0].Members, 1)
	req.Len(rosters[1].Members, 2)
}

func TestRegistry_Join_Same_Connection_Twice_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")
	sink := &captureSink{}
	entry := newEntry(roomID, "u1")

	registry.Join(entry, sink)
	members := registry.Join(entry, sink)

	// Then the roster still holds a single entry
	req.Len(members, 1)
	req.Len(registry.Members(roomID), 1)
}

func TestRegistry_Roster_Dedupes_Multi_Device_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")

	// Given the same user joining from two connections
	registry.Join(newEntry(roomID, "u1"), &captureSink{})
	members := registry.Join(newEntry(roomID, "u1"), &captureSink{})

	// Then the roster lists the user once
	req.Len(members, 1)
	req.Equal("u1", members[0].UserID)
}

func TestRegistry_Leave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")
	sink1 := &captureSink{}
	sink2 := &captureSink{}
	entry1 := newEntry(roomID, "u1")
	entry2 := newEntry(roomID, "u2")

	registry.Join(entry1, sink1)
	registry.Join(entry2, sink2)

	// When the first participant leaves
	req.True(registry.Leave(roomID, entry1.ConnID))

	// Then it is gone and the survivor saw the shrunk roster
	req.False(registry.Contains(roomID, entry1.ConnID))
	rosters := sink2.rosters()
	last := rosters[len(rosters)-1]
	req.Len(last.Members, 1)
	req.Equal("u2", last.Members[0].UserID)

	// And leaving again is a no-op reported as such
	req.False(registry.Leave(roomID, entry1.ConnID))
}

func TestRegistry_Leave_Last_Member_Removes_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")
	entry := newEntry(roomID, "u1")

	registry.Join(entry, &captureSink{})
	req.True(registry.Leave(roomID, entry.ConnID))

	req.Empty(registry.Members(roomID))
	rooms, conns := registry.Size()
	req.Zero(rooms)
	req.Zero(conns)
}

func TestRegistry_LeaveUser_Clears_Every_Device(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")
	sink := &captureSink{}

	// Given a user present from two devices and a second user watching
	entry1 := newEntry(roomID, "u1")
	entry2 := newEntry(roomID, "u1")
	registry.Join(entry1, &captureSink{})
	registry.Join(entry2, &captureSink{})
	registry.Join(newEntry(roomID, "u2"), sink)

	// When the user leaves, both device entries go at once
	req.Equal(2, registry.LeaveUser(roomID, "u1"))
	req.False(registry.Contains(roomID, entry1.ConnID))
	req.False(registry.Contains(roomID, entry2.ConnID))

	// Then the survivor saw a single shrunk roster
	rosters := sink.rosters()
	last := rosters[len(rosters)-1]
	req.Len(last.Members, 1)
	req.Equal("u2", last.Members[0].UserID)

	// And a user with no presence is a no-op
	req.Zero(registry.LeaveUser(roomID, "u1"))
}

func TestRegistry_LeaveUser_Last_Member_Removes_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")

	registry.Join(newEntry(roomID, "u1"), &captureSink{})
	req.Equal(1, registry.LeaveUser(roomID, "u1"))

	req.Empty(registry.Members(roomID))
	rooms, conns := registry.Size()
	req.Zero(rooms)
	req.Zero(conns)
}

func TestRegistry_Drop_Clears_Every_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	connID := domain.ConnID(uuid.NewString())
	roomA := domain.RoomID("room-a")
	roomB := domain.RoomID("room-b")

	entryA := newEntry(roomA, "u1")
	entryA.ConnID = connID
	entryB := newEntry(roomB, "u1")
	entryB.ConnID = connID
	registry.Join(entryA, &captureSink{})
	registry.Join(entryB, &captureSink{})

	// Witness in room A to observe the roster change
	witness := &captureSink{}
	witnessEntry := newEntry(roomA, "u2")
	registry.Join(witnessEntry, witness)

	// When the connection drops without leaving
	affected := registry.Drop(connID)

	// Then both rooms are affected and presence is gone
	req.ElementsMatch([]domain.RoomID{roomA, roomB}, affected)
	req.False(registry.Contains(roomA, connID))
	req.False(registry.Contains(roomB, connID))
	req.Empty(registry.Rooms(connID))

	rosters := witness.rosters()
	last := rosters[len(rosters)-1]
	req.Len(last.Members, 1)
	req.Equal("u2", last.Members[0].UserID)

	// And a second drop is harmless
	req.Empty(registry.Drop(connID))
}

func TestRegistry_Broadcast_Reaches_All_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	roomID := domain.RoomID("general")
	sink1 := &captureSink{}
	sink2 := &captureSink{}

	registry.Join(newEntry(roomID, "u1"), sink1)
	registry.Join(newEntry(roomID, "u2"), sink2)

	msg := domain.Message{ID: uuid.New(), RoomID: roomID, AuthorID: "u1", Content: "hello"}
	registry.Broadcast(roomID, event.MessagePosted{Message: msg})

	for _, sink := range []*captureSink{sink1, sink2} {
		sink.mu.Lock()
		last := sink.events[len(sink.events)-1]
		sink.mu.Unlock()
		posted, ok := last.(event.MessagePosted)
		req.True(ok)
		req.Equal("hello", posted.Message.Content)
	}
}

func TestRegistry_Broadcast_Unknown_Room_Is_Noop(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.Broadcast(domain.RoomID("nowhere"), event.MessagePosted{})
}

func TestRegistry_Concurrent_Join_Leave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			roomID := domain.RoomID(fmt.Sprintf("room-%d", n%5))
			entry := newEntry(roomID, fmt.Sprintf("user-%d", n))
			registry.Join(entry, &captureSink{})
			registry.Broadcast(roomID, event.MessagePosted{
				Message: domain.Message{ID: uuid.New(), RoomID: roomID},
			})
			req.True(registry.Leave(roomID, entry.ConnID))
		}(i)
	}
	wg.Wait()

	rooms, conns := registry.Size()
	req.Zero(rooms)
	req.Zero(conns)
}
