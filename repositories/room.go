//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"roomcast/domain"
	"roomcast/errors"
)

type IRoomRepository interface {
	CreateRoom(ctx context.Context, name, ownerID string) (domain.Room, error)
	GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	DeleteRoom(ctx context.Context, id domain.RoomID) error
	AddMember(ctx context.Context, id domain.RoomID, userID string) (bool, error)
	RemoveMember(ctx context.Context, id domain.RoomID, userID string) (bool, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

// storedRoom is the JSON document shape; the owner is always part of the
// member list.
type storedRoom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	MemberIDs []string  `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
}

func roomKey(id domain.RoomID) []byte { return []byte("room:" + string(id)) }

func (r *RoomRepository) CreateRoom(_ context.Context, name, ownerID string) (domain.Room, error) {
	room := storedRoom{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		MemberIDs: []string{ownerID},
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(room)
	if err != nil {
		return domain.Room{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(domain.RoomID(room.ID)), data)
	})
	if err != nil {
		return domain.Room{}, wrapStoreErr(err)
	}
	return toDomainRoom(room), nil
}

func (r *RoomRepository) GetRoom(_ context.Context, id domain.RoomID) (domain.Room, error) {
	var stored storedRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return readRoom(txn, id, &stored)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return toDomainRoom(stored), nil
}

func (r *RoomRepository) ListRooms(_ context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var stored storedRoom
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				rooms = append(rooms, toDomainRoom(stored))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

func (r *RoomRepository) DeleteRoom(_ context.Context, id domain.RoomID) error {
	return wrapStoreErr(r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(id)); err != nil {
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrRoomNotFound
			}
			return err
		}
		return txn.Delete(roomKey(id))
	}))
}

// AddMember appends the user to the durable membership list. It reports
// false without error when the user is already a member, so a double join
// never produces a duplicate write.
func (r *RoomRepository) AddMember(_ context.Context, id domain.RoomID, userID string) (bool, error) {
	added := false
	err := r.db.Update(func(txn *badger.Txn) error {
		var stored storedRoom
		if err := readRoom(txn, id, &stored); err != nil {
			return err
		}
		room := toDomainRoom(stored)
		if !room.AddMember(userID) {
			return nil
		}
		added = true
		return writeRoom(txn, room)
	})
	return added, wrapStoreErr(err)
}

// RemoveMember drops the user from the durable membership list, reporting
// false when no membership existed.
func (r *RoomRepository) RemoveMember(_ context.Context, id domain.RoomID, userID string) (bool, error) {
	removed := false
	err := r.db.Update(func(txn *badger.Txn) error {
		var stored storedRoom
		if err := readRoom(txn, id, &stored); err != nil {
			return err
		}
		room := toDomainRoom(stored)
		if !room.RemoveMember(userID) {
			return nil
		}
		removed = true
		return writeRoom(txn, room)
	})
	return removed, wrapStoreErr(err)
}

func readRoom(txn *badger.Txn, id domain.RoomID, out *storedRoom) error {
	item, err := txn.Get(roomKey(id))
	if err != nil {
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrRoomNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func writeRoom(txn *badger.Txn, room domain.Room) error {
	data, err := json.Marshal(fromDomainRoom(room))
	if err != nil {
		return err
	}
	return txn.Set(roomKey(room.ID), data)
}

func toDomainRoom(s storedRoom) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(s.ID),
		Name:      s.Name,
		OwnerID:   s.OwnerID,
		MemberIDs: s.MemberIDs,
		CreatedAt: s.CreatedAt,
	}
}

func fromDomainRoom(r domain.Room) storedRoom {
	return storedRoom{
		ID:        string(r.ID),
		Name:      r.Name,
		OwnerID:   r.OwnerID,
		MemberIDs: r.MemberIDs,
		CreatedAt: r.CreatedAt,
	}
}
