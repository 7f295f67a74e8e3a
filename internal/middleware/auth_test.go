package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/task-manager-be/internal/credentials"
	"github.com/hongminglow/task-manager-be/internal/models"
)

type fakeResolver struct {
	sessions map[string]credentials.Session
	err      error
	got      string
}

func (f *fakeResolver) Authenticate(_ context.Context, token string) (credentials.Session, error) {
	f.got = token
	if f.err != nil {
		return credentials.Session{}, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return credentials.Session{}, &credentials.Error{Op: "test", Kind: credentials.ErrAuthentication}
	}
	return s, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer"},
		{header: "Bearer   "},
		{header: ""},
	}
	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := BearerToken(r)
		assert.Equal(t, tc.want, got, "header %q", tc.header)
		assert.Equal(t, tc.ok, ok, "header %q", tc.header)
	}
}

func TestRequire_PassesSessionExplicitly(t *testing.T) {
	want := credentials.Session{User: models.User{ID: "u1", Email: "a@x.com"}, Token: "tok"}
	resolver := &fakeResolver{sessions: map[string]credentials.Session{"tok": want}}
	a := NewAuthenticator(resolver, discardLogger(), nil)

	var got credentials.Session
	h := a.Require(func(w http.ResponseWriter, _ *http.Request, s credentials.Session) {
		got = s
		w.WriteHeader(http.StatusNoContent)
	})

	r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, want, got)
}

func TestRequire_RejectsWithoutDetail(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	resolver := &fakeResolver{}
	a := NewAuthenticator(resolver, discardLogger(), metrics)

	called := false
	h := a.Require(func(http.ResponseWriter, *http.Request, credentials.Session) { called = true })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"please authenticate"}`, w.Body.String())
	assert.False(t, called)
	assert.Equal(t, "", resolver.got)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.authFailures.WithLabelValues("unknown")))
}

func TestRequire_StorageFailureIs500(t *testing.T) {
	resolver := &fakeResolver{err: &credentials.Error{Op: "test", Kind: credentials.ErrInternal, Err: errors.New("db down")}}
	a := NewAuthenticator(resolver, discardLogger(), nil)

	h := a.Require(func(http.ResponseWriter, *http.Request, credentials.Session) {
		t.Fatal("handler must not run")
	})
	r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
