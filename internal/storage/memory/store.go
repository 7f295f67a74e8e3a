package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hongminglow/task-manager-be/internal/models"
	"github.com/hongminglow/task-manager-be/internal/storage"
)

var (
	_ storage.UserStore   = (*Store)(nil)
	_ storage.AvatarStore = (*Store)(nil)
)

// Store keeps users in process memory. Every mutation runs under one lock,
// which makes token list updates atomic per user.
type Store struct {
	mu      sync.RWMutex
	users   map[string]models.User
	byEmail map[string]string
	avatars map[string][]byte
	now     func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
		avatars: make(map[string][]byte),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Tokens = nil
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return clone(user), nil
}

func (s *Store) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return clone(user), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return clone(s.users[id]), nil
}

func (s *Store) FindByToken(_ context.Context, id, digest string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok || !user.HasToken(digest) {
		return models.User{}, storage.ErrNotFound
	}
	return clone(user), nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if update.Email != nil && *update.Email != user.Email {
		if _, taken := s.byEmail[*update.Email]; taken {
			return models.User{}, storage.ErrAlreadyExists
		}
		delete(s.byEmail, user.Email)
		user.Email = *update.Email
		s.byEmail[user.Email] = id
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Age != nil {
		user.Age = *update.Age
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return clone(user), nil
}

func (s *Store) AppendToken(_ context.Context, id, digest string) error {
	return s.mutate(id, func(u *models.User) {
		u.Tokens = append(u.Tokens, models.Token{Hash: digest})
	})
}

func (s *Store) RemoveToken(_ context.Context, id, digest string) error {
	return s.mutate(id, func(u *models.User) {
		u.Tokens = slices.DeleteFunc(u.Tokens, func(t models.Token) bool { return t.Hash == digest })
	})
}

func (s *Store) ClearTokens(_ context.Context, id string) error {
	return s.mutate(id, func(u *models.User) {
		u.Tokens = nil
	})
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byEmail, user.Email)
	delete(s.avatars, id)
	return nil
}

func (s *Store) PutAvatar(_ context.Context, userID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return storage.ErrNotFound
	}
	s.avatars[userID] = slices.Clone(data)
	return nil
}

func (s *Store) GetAvatar(_ context.Context, userID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.avatars[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(data), nil
}

func (s *Store) DeleteAvatar(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.avatars, userID)
	return nil
}

func (s *Store) mutate(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.Tokens = slices.Clone(user.Tokens)
	fn(&user)
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return nil
}

// clone detaches the returned user from the stored slices.
func clone(u models.User) models.User {
	u.Tokens = slices.Clone(u.Tokens)
	return u
}
