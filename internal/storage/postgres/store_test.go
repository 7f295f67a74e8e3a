package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/task-manager-be/internal/models"
	"github.com/hongminglow/task-manager-be/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("RUN_POSTGRES_INTEGRATION") != "true" {
		t.Skip("set RUN_POSTGRES_INTEGRATION=true to run postgres store tests")
	}
	for _, path := range []string{".env", "../.env", "../../.env", "../../../.env"} {
		_ = godotenv.Overload(path)
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	s, err := NewUserStore(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func createTestUser(t *testing.T, s *Store) models.User {
	t.Helper()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Name:         "store test",
		Email:        fmt.Sprintf("store_%d@example.com", time.Now().UnixNano()),
		Age:          20,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteUser(ctx, u.ID) })
	return u
}

func TestStore_CreateAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	byEmail, err := s.FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Empty(t, byEmail.Tokens)

	_, err = s.CreateUser(ctx, models.User{ID: uuid.NewString(), Name: "dup", Email: u.Email, PasswordHash: "h"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = s.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_TokenLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	require.NoError(t, s.AppendToken(ctx, u.ID, "d1"))
	require.NoError(t, s.AppendToken(ctx, u.ID, "d2"))

	_, err := s.FindByToken(ctx, u.ID, "d1")
	require.NoError(t, err)

	require.NoError(t, s.RemoveToken(ctx, u.ID, "d1"))
	require.NoError(t, s.RemoveToken(ctx, u.ID, "d1"))
	_, err = s.FindByToken(ctx, u.ID, "d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.FindByToken(ctx, u.ID, "d2")
	require.NoError(t, err)

	require.NoError(t, s.ClearTokens(ctx, u.ID))
	_, err = s.FindByToken(ctx, u.ID, "d2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ConcurrentAppendsAreKept(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendToken(ctx, u.ID, fmt.Sprintf("digest-%d", i)))
		}(i)
	}
	wg.Wait()

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tokens, 20)
}

func TestStore_UpdateProfileAndAvatar(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s)
	other := createTestUser(t, s)

	name := "renamed"
	updated, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, u.Email, updated.Email)

	_, err = s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Email: &other.Email})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = s.GetAvatar(ctx, u.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s.PutAvatar(ctx, u.ID, []byte{1, 2, 3}))
	data, err := s.GetAvatar(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	require.NoError(t, s.DeleteAvatar(ctx, u.ID))
	_, err = s.GetAvatar(ctx, u.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
