package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/task-manager-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures persistence operations needed by the credential store.
//
// Token list mutations must be atomic per user: concurrent AppendToken and
// RemoveToken calls for the same user never lose each other's effect.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// FindByToken returns the user only while digest is in its token list.
	FindByToken(ctx context.Context, id, digest string) (models.User, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (models.User, error)
	AppendToken(ctx context.Context, id, digest string) error
	// RemoveToken is a no-op when digest is absent.
	RemoveToken(ctx context.Context, id, digest string) error
	ClearTokens(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}

// AvatarStore keeps the normalized avatar image of a user.
type AvatarStore interface {
	PutAvatar(ctx context.Context, userID string, data []byte) error
	// GetAvatar returns ErrNotFound when the user has no avatar.
	GetAvatar(ctx context.Context, userID string) ([]byte, error)
	// DeleteAvatar is a no-op when the user has no avatar.
	DeleteAvatar(ctx context.Context, userID string) error
}
