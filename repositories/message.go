//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"roomcast/domain"
	"roomcast/errors"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, draft MessageDraft) (domain.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error)
	UpdateMessage(ctx context.Context, id uuid.UUID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	ListMessages(ctx context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

// MessageDraft is the pre-persistence form of a message: the durable id and
// the timestamps are assigned here, on persist.
type MessageDraft struct {
	Room    domain.RoomID
	Author  string
	Content string
	Lang    string
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) IMessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type storedMessage struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// messageKey formats the primary key as "msg:{room}:{timestamp}:{uuid}":
//  1. 19-digit zero padding keeps chronological order under the
//     lexicographical iteration badger provides.
//  2. The trailing UUID disambiguates two messages persisted in the same
//     nanosecond.
func messageKey(room domain.RoomID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", room, at.UnixNano(), id))
}

// refKey is the id index: "msgref:{uuid}" -> primary key, so author-side
// edit and delete can reach a message without knowing its timestamp.
func refKey(id uuid.UUID) []byte {
	return []byte("msgref:" + id.String())
}

// StoreMessage assigns the durable id and timestamps, then persists the
// document and its id index entry in one transaction.
func (m *MessageRepository) StoreMessage(_ context.Context, draft MessageDraft) (domain.Message, error) {
	now := time.Now().UTC()
	msg := domain.Message{
		ID:        uuid.New(),
		RoomID:    draft.Room,
		AuthorID:  draft.Author,
		Content:   draft.Content,
		Lang:      draft.Lang,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(fromDomainMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}

	key := messageKey(msg.RoomID, msg.CreatedAt, msg.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(refKey(msg.ID), key)
	})
	if err != nil {
		return domain.Message{}, wrapStoreErr(err)
	}
	return msg, nil
}

func (m *MessageRepository) GetMessage(_ context.Context, id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		stored, _, err := readMessageByRef(txn, id)
		if err != nil {
			return err
		}
		msg, err = toDomainMessage(stored)
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// UpdateMessage rewrites the content in place. The primary key embeds the
// creation timestamp, so history order is unaffected; only UpdatedAt moves.
func (m *MessageRepository) UpdateMessage(_ context.Context, id uuid.UUID, content string) (domain.Message, error) {
	var msg domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		stored, key, err := readMessageByRef(txn, id)
		if err != nil {
			return err
		}
		stored.Content = content
		stored.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		msg, err = toDomainMessage(stored)
		return err
	})
	if err != nil {
		return domain.Message{}, wrapStoreErr(err)
	}
	return msg, nil
}

func (m *MessageRepository) DeleteMessage(_ context.Context, id uuid.UUID) error {
	return wrapStoreErr(m.db.Update(func(txn *badger.Txn) error {
		_, key, err := readMessageByRef(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(refKey(id))
	}))
}

// ListMessages retrieves a newest-first page for a room using a reverse
// prefix scan. The padded timestamp in the key makes the scan naturally
// time-ordered; the returned cursor is the key suffix of the last message,
// fed back verbatim to fetch the next page.
func (m *MessageRepository) ListMessages(_ context.Context, room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var byteMessages [][]byte
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", room)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(byteMessages) == 0 {
		return nil, nil, nil
	}

	var messages []domain.Message
	for _, b := range byteMessages {
		var stored storedMessage
		if err = json.Unmarshal(b, &stored); err != nil {
			return nil, nil, err
		}
		msg, err := toDomainMessage(stored)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, msg)
	}
	return messages, &lastKey, nil
}

func readMessageByRef(txn *badger.Txn, id uuid.UUID) (storedMessage, []byte, error) {
	var key []byte
	item, err := txn.Get(refKey(id))
	if err != nil {
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return storedMessage{}, nil, errors.ErrMessageNotFound
		}
		return storedMessage{}, nil, err
	}
	if err := item.Value(func(val []byte) error {
		key = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return storedMessage{}, nil, err
	}

	var stored storedMessage
	item, err = txn.Get(key)
	if err != nil {
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return storedMessage{}, nil, errors.ErrMessageNotFound
		}
		return storedMessage{}, nil, err
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &stored)
	}); err != nil {
		return storedMessage{}, nil, err
	}
	return stored, key, nil
}

func fromDomainMessage(msg domain.Message) storedMessage {
	return storedMessage{
		ID:        msg.ID.String(),
		Room:      string(msg.RoomID),
		Author:    msg.AuthorID,
		Content:   msg.Content,
		Lang:      msg.Lang,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
}

func toDomainMessage(stored storedMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		RoomID:    domain.RoomID(stored.Room),
		AuthorID:  stored.Author,
		Content:   stored.Content,
		Lang:      stored.Lang,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}
