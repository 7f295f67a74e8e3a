package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(metrics.Instrument)
	r.Get("/users/{id}/avatar", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+id+"/avatar", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	got := testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, "/users/{id}/avatar", "400"))
	assert.Equal(t, 2.0, got)
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.AuthFailure("expired") })
}

func TestLogging_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logging(log, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hi"))
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", nil))

	out := buf.String()
	assert.Contains(t, out, "msg=http.request")
	assert.Contains(t, out, "status=201")
	assert.Contains(t, out, "bytes=2")
	assert.Contains(t, out, "path=/users")
}
