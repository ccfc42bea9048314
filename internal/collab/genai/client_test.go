package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-assistant/internal/common/logger"
)

func newTestClient(t *testing.T, url string) *Client {
	return NewClient(Config{BaseURL: url, APIKey: "secret", Timeout: time.Second}, logger.NewTestLogger(t))
}

func TestClassifyIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, classifyPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req ClassifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "awaiting_confirmation", req.Phase)

		_, _ = w.Write([]byte(`{"intent":"booking_complete","confidence":0.93}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server.URL).ClassifyIntent(context.Background(), ClassifyRequest{
		Utterance: "yes please",
		Phase:     "awaiting_confirmation",
	})
	require.NoError(t, err)
	assert.Equal(t, "booking_complete", resp.Intent)
	assert.InDelta(t, 0.93, resp.Confidence, 0.001)
}

func TestClassifyIntent_SchemaRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"intent":"weather"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ClassifyIntent(context.Background(), ClassifyRequest{Utterance: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestExtractBookingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, extractPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"name":"John","email":"john@x.com"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server.URL).ExtractBookingFields(context.Background(), ExtractRequest{Utterance: "I'm John, john@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "John", resp.Name)
	assert.Equal(t, "john@x.com", resp.Email)
	assert.Empty(t, resp.Phone)
}

func TestCall_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server.URL).ClassifyIntent(ctx, ClassifyRequest{Utterance: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestCall_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ExtractBookingFields(context.Background(), ExtractRequest{Utterance: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
