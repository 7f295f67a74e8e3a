package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/hongminglow/task-manager-be/internal/models"
	"github.com/hongminglow/task-manager-be/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.UserStore   = (*Store)(nil)
	_ storage.AvatarStore = (*Store)(nil)
)

const uniqueViolation = "23505"

const userColumns = `id::text, name, email, age, password_hash, token_hashes, created_at, updated_at`

// Store provides Postgres-backed persistence for users and their avatars.
type Store struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new Store and runs migrations.
func NewUserStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that a connection can be acquired within timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
		INSERT INTO users (id, name, email, age, password_hash)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING ` + userColumns
	return scanUser(s.pool.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.Age, user.PasswordHash))
}

// FindByID fetches a user by primary key.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1::uuid`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.pool.QueryRow(ctx, query, email))
}

// FindByToken fetches a user whose token list still contains digest.
func (s *Store) FindByToken(ctx context.Context, id, digest string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1::uuid AND $2 = ANY(token_hashes)`
	return scanUser(s.pool.QueryRow(ctx, query, id, digest))
}

// UpdateProfile applies the non-nil fields of update in a single statement.
func (s *Store) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (models.User, error) {
	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			age = COALESCE($3, age),
			email = COALESCE($4, email),
			password_hash = COALESCE($5, password_hash),
			updated_at = NOW()
		WHERE id = $1::uuid
		RETURNING ` + userColumns
	return scanUser(s.pool.QueryRow(ctx, query, id, update.Name, update.Age, update.Email, update.PasswordHash))
}

// AppendToken adds digest to the user's token list atomically.
func (s *Store) AppendToken(ctx context.Context, id, digest string) error {
	return s.execOne(ctx, `
		UPDATE users SET token_hashes = array_append(token_hashes, $2), updated_at = NOW()
		WHERE id = $1::uuid`, id, digest)
}

// RemoveToken drops digest from the user's token list atomically.
func (s *Store) RemoveToken(ctx context.Context, id, digest string) error {
	return s.execOne(ctx, `
		UPDATE users SET token_hashes = array_remove(token_hashes, $2), updated_at = NOW()
		WHERE id = $1::uuid`, id, digest)
}

// ClearTokens empties the user's token list.
func (s *Store) ClearTokens(ctx context.Context, id string) error {
	return s.execOne(ctx, `
		UPDATE users SET token_hashes = '{}', updated_at = NOW()
		WHERE id = $1::uuid`, id)
}

// DeleteUser removes the user row.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM users WHERE id = $1::uuid`, id)
}

// PutAvatar stores the avatar bytes on the user row.
func (s *Store) PutAvatar(ctx context.Context, userID string, data []byte) error {
	return s.execOne(ctx, `UPDATE users SET avatar = $2, updated_at = NOW() WHERE id = $1::uuid`, userID, data)
}

// GetAvatar returns the avatar bytes stored on the user row.
func (s *Store) GetAvatar(ctx context.Context, userID string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT avatar FROM users WHERE id = $1::uuid`, userID).Scan(&data)
	if err != nil {
		return nil, translate(err)
	}
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

// DeleteAvatar clears the avatar column. Missing users are ignored.
func (s *Store) DeleteAvatar(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET avatar = NULL, updated_at = NOW() WHERE id = $1::uuid`, userID)
	return err
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	var digests []string
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Age, &user.PasswordHash, &digests, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, translate(err)
	}
	user.Tokens = make([]models.Token, 0, len(digests))
	for _, d := range digests {
		user.Tokens = append(user.Tokens, models.Token{Hash: d})
	}
	return user, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrAlreadyExists
	}
	return err
}
