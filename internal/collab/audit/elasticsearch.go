// Package audit writes phase transitions to Elasticsearch.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"booking-assistant/internal/booking/slots"
	"booking-assistant/internal/common/logger"
)

var ErrAuditWrite = errors.New("AUDIT_WRITE_FAILED")

const (
	DefaultIndex   = "booking-transitions"
	defaultTimeout = 2 * time.Second
)

// ElasticsearchSink indexes one document per transition. Writes are best
// effort and never block the turn that produced them for longer than the
// configured timeout.
type ElasticsearchSink struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration
	logger  logger.Logger
}

func NewElasticsearchSink(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchSink {
	if index == "" {
		index = DefaultIndex
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ElasticsearchSink{client: client, index: index, timeout: defaultTimeout, logger: log}
}

func (s *ElasticsearchSink) OnTransition(ctx context.Context, t slots.Transition) {
	if err := s.Write(ctx, t); err != nil {
		s.logger.Warn("transition audit failed", map[string]interface{}{
			"conversationId": t.ConversationID,
			"from":           string(t.From),
			"to":             string(t.To),
			"error":          err.Error(),
		})
	}
}

func (s *ElasticsearchSink) Write(ctx context.Context, t slots.Transition) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: fmt.Sprintf("%s:%d:%s:%d", t.ConversationID, t.Generation, t.To, t.At.UnixNano()),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%w: %s: %s", ErrAuditWrite, res.Status(), msg)
	}
	return nil
}
