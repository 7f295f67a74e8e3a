package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/task-manager-be/internal/models"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("super-secret", "tests", time.Hour)
	tok, err := tm.Generate(models.User{ID: "user-123"})
	require.NoError(t, err)

	id, err := tm.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)
}

func TestGenerate_TokensAreDistinct(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("k", "tests", time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tok, err := tm.Generate(models.User{ID: "u1"})
		require.NoError(t, err)
		require.False(t, seen[tok], "duplicate token issued")
		seen[tok] = true
	}
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("k", "tests", time.Minute)
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := tm.Generate(models.User{ID: "u1"})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.Parse(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParse_NoExpiryWhenTTLDisabled(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("k", "tests", 0)
	tm.now = func() time.Time { return time.Now().Add(-24 * 365 * time.Hour) }
	tok, err := tm.Generate(models.User{ID: "u1"})
	require.NoError(t, err)

	tm.now = time.Now
	id, err := tm.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenManager("right", "tests", time.Hour).Generate(models.User{ID: "u2"})
	require.NoError(t, err)

	_, err = NewTokenManager("wrong", "tests", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_WrongIssuer(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenManager("k", "other", time.Hour).Generate(models.User{ID: "u2"})
	require.NoError(t, err)

	_, err = NewTokenManager("k", "tests", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("k", "tests", time.Hour).Parse("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDigest(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Digest("abc"), Digest("abc"))
	assert.NotEqual(t, Digest("abc"), Digest("abd"))
	assert.Len(t, Digest("abc"), 64)
}
