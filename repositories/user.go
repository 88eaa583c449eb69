//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"roomcast/errors"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, name, email, hashedPassword string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

// User is the storage representation of an account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// Two keys per account: the document under its id and an email index
// pointing at the id, so both login (by email) and token resolution (by id)
// are single lookups.
func userKey(id string) []byte     { return []byte("user:id:" + id) }
func emailKey(email string) []byte { return []byte("user:email:" + email) }

// CreateUser persists the account and returns the generated user ID.
// The email index is checked inside the same transaction, so a duplicate
// registration cannot slip in between check and write.
func (u *UserRepository) CreateUser(_ context.Context, name, email, hashedPassword string) (string, error) {
	user := User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(user.ID), data); err != nil {
			return err
		}
		return txn.Set(emailKey(email), []byte(user.ID))
	})
	if err != nil {
		return "", wrapStoreErr(err)
	}
	return user.ID, nil
}

func (u *UserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var id string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return User{}, errors.ErrUserNotFound
		}
		return User{}, err
	}
	return u.GetUserByID(ctx, id)
}

func (u *UserRepository) GetUserByID(_ context.Context, id string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return User{}, errors.ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}
