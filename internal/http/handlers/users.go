package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/task-manager-be/internal/avatar"
	"github.com/hongminglow/task-manager-be/internal/credentials"
	"github.com/hongminglow/task-manager-be/internal/http/respond"
	"github.com/hongminglow/task-manager-be/internal/middleware"
	"github.com/hongminglow/task-manager-be/internal/models"
	"github.com/hongminglow/task-manager-be/internal/models/dto"
)

// maxAvatarRequestBytes caps the whole multipart body, headers and boundaries included.
const maxAvatarRequestBytes = 4 << 20

// CredentialStore is what the user routes need from the credentials package.
type CredentialStore interface {
	Register(ctx context.Context, req dto.RegisterRequest) (models.User, error)
	VerifyCredentials(ctx context.Context, email, secret string) (models.User, error)
	IssueToken(ctx context.Context, user models.User) (string, error)
	RevokeToken(ctx context.Context, user models.User, token string) error
	RevokeAllTokens(ctx context.Context, user models.User) error
	UpdateProfile(ctx context.Context, user models.User, fields map[string]json.RawMessage) (models.User, error)
	DeleteUser(ctx context.Context, user models.User) error
	SetAvatar(ctx context.Context, user models.User, png []byte) error
	ClearAvatar(ctx context.Context, user models.User) error
	Avatar(ctx context.Context, userID string) ([]byte, error)
}

// UserHandler owns the /users routes.
type UserHandler struct {
	store CredentialStore
	auth  *middleware.Authenticator
	log   *slog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(store CredentialStore, auth *middleware.Authenticator, log *slog.Logger) *UserHandler {
	return &UserHandler{store: store, auth: auth, log: log}
}

// Register attaches user routes to the router.
func (h *UserHandler) Register(r chi.Router) {
	r.Post("/users", h.handleRegister)
	r.Post("/users/login", h.handleLogin)
	r.Post("/users/logout", h.auth.Require(h.handleLogout))
	r.Post("/users/logoutAll", h.auth.Require(h.handleLogoutAll))
	r.Get("/users/me", h.auth.Require(h.handleMe))
	r.Patch("/users/me", h.auth.Require(h.handleUpdateMe))
	r.Delete("/users/me", h.auth.Require(h.handleDeleteMe))
	r.Post("/users/me/avatar", h.auth.Require(h.handleUploadAvatar))
	r.Delete("/users/me/avatar", h.auth.Require(h.handleDeleteAvatar))
	r.Get("/users/{id}/avatar", h.handleGetAvatar)
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	user, err := h.store.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	token, err := h.store.IssueToken(r.Context(), user)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	respond.JSON(w, http.StatusCreated, dto.AuthResponse{User: user, Token: token})
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	user, err := h.store.VerifyCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	token, err := h.store.IssueToken(r.Context(), user)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	respond.JSON(w, http.StatusOK, dto.AuthResponse{User: user, Token: token})
}

func (h *UserHandler) handleLogout(w http.ResponseWriter, r *http.Request, s credentials.Session) {
	if err := h.store.RevokeToken(r.Context(), s.User, s.Token); err != nil {
		h.internal(w, r, "logout", err)
		return
	}
	respond.Empty(w, http.StatusOK)
}

func (h *UserHandler) handleLogoutAll(w http.ResponseWriter, r *http.Request, s credentials.Session) {
	if err := h.store.RevokeAllTokens(r.Context(), s.User); err != nil {
		h.internal(w, r, "logout all", err)
		return
	}
	respond.Empty(w, http.StatusOK)
}

func (h *UserHandler) handleMe(w http.ResponseWriter, _ *http.Request, s credentials.Session) {
	respond.JSON(w, http.StatusOK, s.User)
}

func (h *UserHandler) handleUpdateMe(w http.ResponseWriter, r *http.Request, s credentials.Session) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	updated, err := h.store.UpdateProfile(r.Context(), s.User, fields)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

func (h *UserHandler) handleDeleteMe(w http.ResponseWriter, r *http.Request, s credentials.Session) {
	if err := h.store.DeleteUser(r.Context(), s.User); err != nil {
		h.internal(w, r, "delete user", err)
		return
	}
	respond.JSON(w, http.StatusOK, s.User)
}

func (h *UserHandler) handleUploadAvatar(w http.ResponseWriter, r *http.Request, s credentials.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarRequestBytes)

	data, err := readAvatarPart(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	png, err := avatar.Normalize(data)
	if err != nil {
		h.log.DebugContext(r.Context(), "avatar rejected", "user_id", s.User.ID, "err", err)
		msg := avatar.ErrUndecodable.Error()
		for _, known := range []error{avatar.ErrDimensions, avatar.ErrUnsupported} {
			if errors.Is(err, known) {
				msg = known.Error()
			}
		}
		respond.Error(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.SetAvatar(r.Context(), s.User, png); err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	respond.Empty(w, http.StatusOK)
}

// readAvatarPart streams the multipart body and returns the bytes of the
// "avatar" file field, enforcing the extension and size limits.
func readAvatarPart(r *http.Request) ([]byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, avatar.ErrUnsupported
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, avatar.ErrTooLarge
			}
			return nil, avatar.ErrUnsupported
		}
		if part.FormName() != "avatar" {
			_ = part.Close()
			continue
		}
		defer part.Close()

		if err := avatar.ValidateUpload(part.FileName(), 0); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(part, avatar.MaxUploadBytes+1))
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, avatar.ErrTooLarge
			}
			return nil, avatar.ErrUndecodable
		}
		if err := avatar.ValidateUpload(part.FileName(), int64(len(data))); err != nil {
			return nil, err
		}
		return data, nil
	}
}

func (h *UserHandler) handleDeleteAvatar(w http.ResponseWriter, r *http.Request, s credentials.Session) {
	if err := h.store.ClearAvatar(r.Context(), s.User); err != nil {
		h.internal(w, r, "clear avatar", err)
		return
	}
	respond.Empty(w, http.StatusOK)
}

func (h *UserHandler) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Avatar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if credentials.IsNotFound(err) {
			respond.Empty(w, http.StatusBadRequest)
			return
		}
		h.internal(w, r, "get avatar", err)
		return
	}
	respond.Bytes(w, http.StatusOK, "image/png", data)
}

// fail maps a credential store error to a response. authStatus is the code
// used for authentication failures on this route.
func (h *UserHandler) fail(w http.ResponseWriter, r *http.Request, err error, authStatus int) {
	switch {
	case credentials.IsValidation(err):
		respond.Error(w, http.StatusBadRequest, credentials.Message(err, "invalid request"))
	case credentials.IsAuthentication(err):
		respond.Error(w, authStatus, credentials.Message(err, "unable to login"))
	case credentials.IsNotFound(err):
		respond.Error(w, http.StatusBadRequest, credentials.Message(err, "not found"))
	default:
		h.internal(w, r, r.Method+" "+r.URL.Path, err)
	}
}

func (h *UserHandler) internal(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.log.ErrorContext(r.Context(), "request failed", "action", action, "err", err)
	respond.Error(w, http.StatusInternalServerError, "internal error")
}
