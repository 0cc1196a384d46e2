package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	serve := func(checks ...func(context.Context) error) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		Health(checks...)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec
	}

	t.Run("no checks reports ok", func(t *testing.T) {
		rec := serve()
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok", rec.Body.String())
	})

	t.Run("all checks passing reports ok", func(t *testing.T) {
		pass := func(context.Context) error { return nil }
		rec := serve(pass, pass)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("failing dependency reports unavailable", func(t *testing.T) {
		pass := func(context.Context) error { return nil }
		fail := func(context.Context) error { return errors.New("connection refused") }
		rec := serve(pass, fail)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "unavailable", rec.Body.String())
	})
}
