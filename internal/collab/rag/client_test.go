package rag

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

func TestAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, answerPath, r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))

		var req answerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is covered?", req.Question)
		assert.Equal(t, "conv-1", req.ConversationID)
		require.Len(t, req.Context, 2)

		_, _ = w.Write([]byte(`{"answer":"Water damage is covered.","confidence":0.82,"citations":[{"source":"policy.pdf","page":3}]}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "k", Timeout: time.Second}, logger.NewTestLogger(t))
	ans, err := c.Answer(context.Background(), "conv-1", "what is covered?", []ContextMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello!"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Water damage is covered.", ans.Answer)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, 3, ans.Citations[0].Page)
}

func TestAnswer_EmptyCitations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"No idea.","confidence":0.1}`))
	}))
	defer server.Close()

	ans, err := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, nil).Answer(context.Background(), "c", "q", nil)
	require.NoError(t, err)
	assert.NotNil(t, ans.Citations)
}

func TestAnswer_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, nil).Answer(context.Background(), "c", "q", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRAGUnavailable))
}
