package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-assistant/internal/common/logger"
)

func newTestClient(t *testing.T, retries int, breaker uint32) *Client {
	return New(Options{
		Name:            "test",
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		BaseDelay:       time.Millisecond,
		Logger:          logger.NewTestLogger(t),
		BreakerFailures: breaker,
		BreakerCooldown: time.Hour,
	})
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	c := newTestClient(t, 2, 0)
	var out map[string]string
	err := c.PostJSON(context.Background(), server.URL, map[string]string{"Idempotency-Key": "key-1"}, map[string]string{"a": "b"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPostJSON_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(t, 3, 0)
	err := c.PostJSON(context.Background(), server.URL, nil, map[string]string{}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadResponse))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.PostJSON(ctx, server.URL, nil, map[string]string{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestPostJSON_BreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, 0, 2)
	for i := 0; i < 2; i++ {
		err := c.PostJSON(context.Background(), server.URL, nil, map[string]string{}, nil)
		assert.True(t, errors.Is(err, ErrUnavailable))
	}

	err := c.PostJSON(context.Background(), server.URL, nil, map[string]string{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
