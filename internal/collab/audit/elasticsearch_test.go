package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-assistant/internal/booking/slots"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

func newESServer(t *testing.T, status int, onIndex func(r *http.Request)) *elasticsearch.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if onIndex != nil {
			onIndex(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

var transition = slots.Transition{
	ConversationID: "conv-1",
	From:           models.PhaseCollecting,
	To:             models.PhaseAwaitingConfirmation,
	Action:         "merge",
	Generation:     1,
	At:             time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
}

func TestWrite(t *testing.T) {
	var calls int32
	client := newESServer(t, http.StatusCreated, func(r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/"+DefaultIndex+"/_doc/"))

		var doc map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, "conv-1", doc["conversationId"])
		assert.Equal(t, "awaiting_confirmation", doc["to"])
	})

	sink := NewElasticsearchSink(client, "", logger.NewTestLogger(t))
	require.NoError(t, sink.Write(context.Background(), transition))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWrite_ErrorStatus(t *testing.T) {
	client := newESServer(t, http.StatusBadRequest, nil)

	err := NewElasticsearchSink(client, "audit", nil).Write(context.Background(), transition)
	assert.True(t, errors.Is(err, ErrAuditWrite))
}

func TestOnTransition_SwallowsErrors(t *testing.T) {
	client := newESServer(t, http.StatusInternalServerError, nil)
	sink := NewElasticsearchSink(client, "audit", logger.NewTestLogger(t))

	assert.NotPanics(t, func() { sink.OnTransition(context.Background(), transition) })
}
