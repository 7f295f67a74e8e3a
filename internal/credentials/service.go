// Package credentials owns user identity: secret verification, profile
// changes and the list of live session tokens. It is the single source of
// truth for whether a (user, token) pair is currently valid.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hongminglow/task-manager-be/internal/auth"
	"github.com/hongminglow/task-manager-be/internal/models"
	"github.com/hongminglow/task-manager-be/internal/models/dto"
	"github.com/hongminglow/task-manager-be/internal/storage"
)

// Authentication failure reasons, exposed for metrics and logs only.
const (
	ReasonMissing     = "missing"
	ReasonInvalid     = "invalid"
	ReasonExpired     = "expired"
	ReasonRevoked     = "revoked"
	ReasonCredentials = "credentials"
)

// allowedUpdates is the fixed set of profile fields a user may change.
var allowedUpdates = map[string]bool{"name": true, "age": true, "email": true, "password": true}

// Session is the identity resolved from a bearer token, together with the
// exact token that was presented so it can be revoked on its own.
type Session struct {
	User  models.User
	Token string
}

// Service implements the credential store on top of a UserStore and an AvatarStore.
type Service struct {
	users      storage.UserStore
	avatars    storage.AvatarStore
	tokens     *auth.TokenManager
	log        *slog.Logger
	bcryptCost int
	newID      func() string
}

// NewService wires the credential store. bcryptCost <= 0 selects bcrypt's default.
func NewService(users storage.UserStore, avatars storage.AvatarStore, tokens *auth.TokenManager, log *slog.Logger, bcryptCost int) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:      users,
		avatars:    avatars,
		tokens:     tokens,
		log:        log,
		bcryptCost: bcryptCost,
		newID:      uuid.NewString,
	}
}

// Register validates the profile, hashes the secret and persists a new user.
func (s *Service) Register(ctx context.Context, req dto.RegisterRequest) (models.User, error) {
	const op = "credentials.Register"

	email := normalizeEmail(req.Email)
	for _, msg := range []string{
		validateName(req.Name),
		validateEmail(email),
		validateAge(req.Age),
		validatePassword(req.Password),
	} {
		if msg != "" {
			return models.User{}, validationError(op, msg)
		}
	}

	hash, err := auth.HashPassword(strings.TrimSpace(req.Password), s.bcryptCost)
	if err != nil {
		return models.User{}, internalError(op, err)
	}

	created, err := s.users.CreateUser(ctx, models.User{
		ID:           s.newID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Age:          req.Age,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, validationError(op, "email is already registered")
		}
		return models.User{}, internalError(op, err)
	}
	return created, nil
}

// VerifyCredentials returns the user owning email when secret matches. Unknown
// email and wrong secret produce the same error.
func (s *Service) VerifyCredentials(ctx context.Context, email, secret string) (models.User, error) {
	const op = "credentials.VerifyCredentials"

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, s.loginFailed(op)
		}
		return models.User{}, internalError(op, err)
	}

	ok, err := auth.ComparePassword(user.PasswordHash, strings.TrimSpace(secret))
	if err != nil {
		return models.User{}, internalError(op, err)
	}
	if !ok {
		return models.User{}, s.loginFailed(op)
	}
	return user, nil
}

func (s *Service) loginFailed(op string) error {
	return &Error{Op: op, Kind: ErrAuthentication, Msg: "unable to login", Err: reasonError(ReasonCredentials)}
}

// IssueToken signs a new session token for user and records its digest.
// Earlier tokens stay valid.
func (s *Service) IssueToken(ctx context.Context, user models.User) (string, error) {
	const op = "credentials.IssueToken"

	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", internalError(op, err)
	}
	if err := s.users.AppendToken(ctx, user.ID, auth.Digest(token)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", notFoundError(op)
		}
		return "", internalError(op, err)
	}
	return token, nil
}

// RevokeToken ends one session. Revoking an unknown token is a no-op.
func (s *Service) RevokeToken(ctx context.Context, user models.User, token string) error {
	const op = "credentials.RevokeToken"

	if err := s.users.RemoveToken(ctx, user.ID, auth.Digest(token)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return internalError(op, err)
	}
	return nil
}

// RevokeAllTokens ends every session of user.
func (s *Service) RevokeAllTokens(ctx context.Context, user models.User) error {
	const op = "credentials.RevokeAllTokens"

	if err := s.users.ClearTokens(ctx, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return internalError(op, err)
	}
	return nil
}

// Authenticate resolves a bearer token into a Session. Signature and expiry
// are checked first, then the token must still be in the owner's token list.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	const op = "credentials.Authenticate"

	if token == "" {
		return Session{}, authFailure(op, ReasonMissing)
	}
	userID, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return Session{}, authFailure(op, ReasonExpired)
		}
		return Session{}, authFailure(op, ReasonInvalid)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return Session{}, authFailure(op, ReasonInvalid)
	}

	user, err := s.users.FindByToken(ctx, userID, auth.Digest(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, authFailure(op, ReasonRevoked)
		}
		return Session{}, internalError(op, err)
	}
	return Session{User: user, Token: token}, nil
}

// UpdateProfile applies fields to user. Any key outside the allow-list rejects
// the whole update before anything is written.
func (s *Service) UpdateProfile(ctx context.Context, user models.User, fields map[string]json.RawMessage) (models.User, error) {
	const op = "credentials.UpdateProfile"

	for key := range fields {
		if !allowedUpdates[key] {
			return models.User{}, validationError(op, "invalid updates")
		}
	}

	var update models.ProfileUpdate
	if raw, ok := fields["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return models.User{}, validationError(op, "name must be a string")
		}
		if msg := validateName(name); msg != "" {
			return models.User{}, validationError(op, msg)
		}
		name = strings.TrimSpace(name)
		update.Name = &name
	}
	if raw, ok := fields["age"]; ok {
		var age *int
		if err := json.Unmarshal(raw, &age); err != nil || age == nil {
			return models.User{}, validationError(op, "age must be a number")
		}
		if msg := validateAge(*age); msg != "" {
			return models.User{}, validationError(op, msg)
		}
		update.Age = age
	}
	if raw, ok := fields["email"]; ok {
		var email string
		if err := json.Unmarshal(raw, &email); err != nil {
			return models.User{}, validationError(op, "email must be a string")
		}
		email = normalizeEmail(email)
		if msg := validateEmail(email); msg != "" {
			return models.User{}, validationError(op, msg)
		}
		update.Email = &email
	}
	if raw, ok := fields["password"]; ok {
		var password string
		if err := json.Unmarshal(raw, &password); err != nil {
			return models.User{}, validationError(op, "password must be a string")
		}
		if msg := validatePassword(password); msg != "" {
			return models.User{}, validationError(op, msg)
		}
		hash, err := auth.HashPassword(strings.TrimSpace(password), s.bcryptCost)
		if err != nil {
			return models.User{}, internalError(op, err)
		}
		update.PasswordHash = &hash
	}

	if update.Empty() {
		return user, nil
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, update)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return models.User{}, validationError(op, "email is already registered")
		case errors.Is(err, storage.ErrNotFound):
			return models.User{}, notFoundError(op)
		default:
			return models.User{}, internalError(op, err)
		}
	}
	return updated, nil
}

// DeleteUser removes the user permanently, then drops its avatar.
func (s *Service) DeleteUser(ctx context.Context, user models.User) error {
	const op = "credentials.DeleteUser"

	if err := s.users.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundError(op)
		}
		return internalError(op, err)
	}
	if err := s.avatars.DeleteAvatar(ctx, user.ID); err != nil {
		s.log.WarnContext(ctx, "avatar cleanup failed", "user_id", user.ID, "err", err)
	}
	return nil
}

// SetAvatar stores an already normalized image for user.
func (s *Service) SetAvatar(ctx context.Context, user models.User, png []byte) error {
	const op = "credentials.SetAvatar"

	if err := s.avatars.PutAvatar(ctx, user.ID, png); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundError(op)
		}
		return internalError(op, err)
	}
	return nil
}

// ClearAvatar removes the avatar of user, if any.
func (s *Service) ClearAvatar(ctx context.Context, user models.User) error {
	const op = "credentials.ClearAvatar"

	if err := s.avatars.DeleteAvatar(ctx, user.ID); err != nil {
		return internalError(op, err)
	}
	return nil
}

// Avatar returns the stored avatar of the user with the given id.
func (s *Service) Avatar(ctx context.Context, userID string) ([]byte, error) {
	const op = "credentials.Avatar"

	if _, err := uuid.Parse(userID); err != nil {
		return nil, notFoundError(op)
	}
	data, err := s.avatars.GetAvatar(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError(op)
		}
		return nil, internalError(op, err)
	}
	return data, nil
}

type reasonError string

func (r reasonError) Error() string { return string(r) }

func authFailure(op, reason string) error {
	msg := "please authenticate"
	if reason == ReasonExpired {
		msg = "token expired"
	}
	return &Error{Op: op, Kind: ErrAuthentication, Msg: msg, Err: reasonError(reason)}
}

// FailureReason extracts the authentication failure reason from err, or "" if none.
func FailureReason(err error) string {
	var r reasonError
	if errors.As(err, &r) {
		return string(r)
	}
	return ""
}
