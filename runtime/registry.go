// Package runtime owns the live, in-memory side of the chat service:
// presence tracking, per-room broadcast groups, and the supervised
// background workers. Nothing in here survives a restart by design;
// connections do not either.
package runtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/domain/event"
)

type entrySink struct {
	entry domain.PresenceEntry
	sink  contract.EventSink
}

// roomState is one room's broadcast group. Its mutex serializes every
// mutation and the roster broadcast it triggers, so no member can observe
// a roster that is stale relative to a join it caused. Rooms never share a
// lock: traffic in one room cannot block another.
type roomState struct {
	mu      sync.Mutex
	gone    bool
	entries map[domain.ConnID]entrySink
}

type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[domain.RoomID]*roomState
	conns map[domain.ConnID]map[domain.RoomID]struct{}
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		rooms: make(map[domain.RoomID]*roomState),
		conns: make(map[domain.ConnID]map[domain.RoomID]struct{}),
	}
}

// Join adds the entry and its sink to the room's broadcast group, creating
// the group on the fly, and publishes the updated roster to every live
// member including the joiner. A second join from the same connection just
// refreshes the entry: one presence entry per (room, connection).
func (r *Registry) Join(entry domain.PresenceEntry, sink contract.EventSink) []domain.Member {
	for {
		r.mu.Lock()
		state, ok := r.rooms[entry.RoomID]
		if !ok {
			state = &roomState{entries: make(map[domain.ConnID]entrySink)}
			r.rooms[entry.RoomID] = state
		}
		if _, ok := r.conns[entry.ConnID]; !ok {
			r.conns[entry.ConnID] = make(map[domain.RoomID]struct{})
		}
		r.conns[entry.ConnID][entry.RoomID] = struct{}{}
		r.mu.Unlock()

		state.mu.Lock()
		if state.gone {
			// Lost a race with the last leaver removing the group; retry
			// against a fresh one.
			state.mu.Unlock()
			continue
		}
		state.entries[entry.ConnID] = entrySink{entry: entry, sink: sink}
		members := state.membersLocked()
		state.publishLocked(r.log, event.RosterUpdated{
			Room:    entry.RoomID,
			Members: members,
			At:      time.Now().UTC(),
		})
		state.mu.Unlock()
		return members
	}
}

// Leave removes the connection from the room's broadcast group and
// publishes the shrunk roster to the remaining members. It reports whether
// a presence entry actually existed, and is safe to call repeatedly.
func (r *Registry) Leave(roomID domain.RoomID, connID domain.ConnID) bool {
	r.mu.Lock()
	state, ok := r.rooms[roomID]
	if rooms, indexed := r.conns[connID]; indexed {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.conns, connID)
		}
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.removeFromRoom(roomID, state, connID)
}

// LeaveUser removes every presence entry the user holds in the room, over
// any number of devices, publishing the shrunk roster once. It returns the
// number of connections removed.
func (r *Registry) LeaveUser(roomID domain.RoomID, userID string) int {
	r.mu.Lock()
	state, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	state.mu.Lock()
	var dropped []domain.ConnID
	for connID, es := range state.entries {
		if es.entry.UserID == userID {
			delete(state.entries, connID)
			dropped = append(dropped, connID)
		}
	}
	if len(dropped) > 0 && len(state.entries) > 0 {
		state.publishLocked(r.log, event.RosterUpdated{
			Room:    roomID,
			Members: state.membersLocked(),
			At:      time.Now().UTC(),
		})
	}
	empty := len(state.entries) == 0
	if empty {
		state.gone = true
	}
	state.mu.Unlock()

	r.mu.Lock()
	for _, connID := range dropped {
		if rooms, indexed := r.conns[connID]; indexed {
			delete(rooms, roomID)
			if len(rooms) == 0 {
				delete(r.conns, connID)
			}
		}
	}
	if empty && r.rooms[roomID] == state {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()
	return len(dropped)
}

// Drop removes the connection from every room it is present in, publishing
// a roster update per room, and returns the affected rooms. This is the
// abrupt-disconnect path: it needs no cooperation from the client and is
// idempotent.
func (r *Registry) Drop(connID domain.ConnID) []domain.RoomID {
	r.mu.Lock()
	var affected []domain.RoomID
	states := make(map[domain.RoomID]*roomState)
	for roomID := range r.conns[connID] {
		if state, ok := r.rooms[roomID]; ok {
			states[roomID] = state
		}
	}
	delete(r.conns, connID)
	r.mu.Unlock()

	for roomID, state := range states {
		if r.removeFromRoom(roomID, state, connID) {
			affected = append(affected, roomID)
		}
	}
	return affected
}

// Broadcast delivers an event to every live member of the room. It takes
// the same per-room lock as Join/Leave, so a broadcast can never interleave
// with a membership change.
func (r *Registry) Broadcast(roomID domain.RoomID, e event.DomainEvent) {
	r.mu.RLock()
	state, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	state.mu.Lock()
	state.publishLocked(r.log, e)
	state.mu.Unlock()
}

// Members returns the deduplicated live roster of a room, ordered by join
// time. A durable member without an open connection does not appear.
func (r *Registry) Members(roomID domain.RoomID) []domain.Member {
	r.mu.RLock()
	state, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.membersLocked()
}

func (r *Registry) Contains(roomID domain.RoomID, connID domain.ConnID) bool {
	r.mu.RLock()
	state, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	_, present := state.entries[connID]
	return present
}

// Rooms lists the rooms a connection currently holds presence entries in.
func (r *Registry) Rooms(connID domain.ConnID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]domain.RoomID, 0, len(r.conns[connID]))
	for roomID := range r.conns[connID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// Size reports the number of rooms with at least one live member and the
// number of open connections holding presence somewhere.
func (r *Registry) Size() (rooms int, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.conns)
}

func (r *Registry) removeFromRoom(roomID domain.RoomID, state *roomState, connID domain.ConnID) bool {
	state.mu.Lock()
	_, present := state.entries[connID]
	if present {
		delete(state.entries, connID)
		if len(state.entries) > 0 {
			state.publishLocked(r.log, event.RosterUpdated{
				Room:    roomID,
				Members: state.membersLocked(),
				At:      time.Now().UTC(),
			})
		}
	}
	empty := len(state.entries) == 0
	if empty {
		state.gone = true
	}
	state.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.rooms[roomID] == state {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
	}
	return present
}

// membersLocked builds the roster snapshot: entries ordered by join time,
// one Member per user regardless of how many devices they connect from.
func (s *roomState) membersLocked() []domain.Member {
	entries := make([]domain.PresenceEntry, 0, len(s.entries))
	for _, es := range s.entries {
		entries = append(entries, es.entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].ConnID < entries[j].ConnID
		}
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})

	members := lo.Map(entries, func(e domain.PresenceEntry, _ int) domain.Member {
		return e.Member()
	})
	return lo.UniqBy(members, func(m domain.Member) string { return m.UserID })
}

// publishLocked pushes the event into every member's sink. Sinks are
// expected to be non-blocking (buffered channel behind each connection);
// a full sink loses the event for that member only.
func (s *roomState) publishLocked(log *slog.Logger, e event.DomainEvent) {
	for _, es := range s.entries {
		if err := es.sink.Consume(context.Background(), e); err != nil {
			log.Debug("Sink rejected event",
				"room", es.entry.RoomID,
				"user_id", es.entry.UserID,
				"err", err)
		}
	}
}
