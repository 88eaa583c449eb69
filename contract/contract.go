//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"roomcast/domain"
	"roomcast/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one delivery target for domain events. A connection exposes
// itself as a sink; permanent sinks (search index, telemetry) consume the
// same events off the critical path.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the presence registry plus per-room broadcast group. All
// mutation methods publish the resulting roster to the room's live members
// atomically with the mutation.
type IRegistry interface {
	Join(entry domain.PresenceEntry, sink EventSink) []domain.Member
	Leave(roomID domain.RoomID, connID domain.ConnID) bool
	LeaveUser(roomID domain.RoomID, userID string) int
	Drop(connID domain.ConnID) []domain.RoomID
	Broadcast(roomID domain.RoomID, e event.DomainEvent)
	Members(roomID domain.RoomID) []domain.Member
	Contains(roomID domain.RoomID, connID domain.ConnID) bool
	Rooms(connID domain.ConnID) []domain.RoomID
}
