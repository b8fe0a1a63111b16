package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/helpers"
	"level-observer/src/logger"
	"level-observer/src/models"
)

func newTestManager(retries int) *AsyncNetworkManager {
	cfg := &models.MConfig{Network: models.MNetworkConfig{MaxRetries: retries, RequestTimeout: 5, UserAgent: "level-observer-test"}}
	nm := NewAsyncNetworkManager(cfg, logger.NewLogger("ERROR", "test"))
	nm.BackoffUnit = time.Millisecond
	return nm
}

func TestGetRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "level-observer-test", r.Header.Get("User-Agent"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := newTestManager(3).Get(context.Background(), srv.URL, map[string]string{"interval": "1h"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestManager(1).Get(context.Background(), srv.URL, nil)

	var netErr *helpers.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Contains(t, err.Error(), "bad status: 500")
}
