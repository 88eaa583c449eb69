package repositories

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"roomcast/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository_CreateAndFetch(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))

	id, err := repository.CreateUser(ctx, "Alice", "alice@example.com", "$argon2id$fake")
	req.NoError(err)
	req.NotEmpty(id)

	byID, err := repository.GetUserByID(ctx, id)
	req.NoError(err)
	req.Equal("Alice", byID.Name)
	req.Equal([]string{"user"}, byID.Roles)

	byEmail, err := repository.GetUserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(id, byEmail.ID)
	req.Equal("$argon2id$fake", byEmail.PasswordHash)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser(ctx, "Alice", "alice@example.com", "hash-1")
	req.NoError(err)

	_, err = repository.CreateUser(ctx, "Impostor", "alice@example.com", "hash-2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_UnknownUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByID(ctx, "nope")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByEmail(ctx, "nobody@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
