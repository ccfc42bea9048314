// Package rag asks the document answer engine for replies to questions.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	commonhttp "booking-assistant/internal/common/http"
	"booking-assistant/internal/common/logger"
)

var (
	ErrRAGTimeout     = errors.New("RAG_TIMEOUT")
	ErrRAGUnavailable = errors.New("RAG_UNAVAILABLE")
)

const answerPath = "/api/rag/answer"

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Citation struct {
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

type Answer struct {
	Answer     string     `json:"answer"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
}

type answerRequest struct {
	Question       string           `json:"question"`
	ConversationID string           `json:"conversation_id"`
	Context        []ContextMessage `json:"context"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *commonhttp.Client
	logger  logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: commonhttp.New(commonhttp.Options{
			Name:            "rag",
			Timeout:         cfg.Timeout,
			MaxRetries:      cfg.MaxRetries,
			Logger:          log,
			BreakerFailures: 5,
		}),
		logger: log,
	}
}

func (c *Client) Answer(ctx context.Context, conversationID, question string, history []ContextMessage) (*Answer, error) {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["X-API-Key"] = c.apiKey
	}

	var out Answer
	err := c.http.PostJSON(ctx, c.baseURL+answerPath, headers, answerRequest{
		Question:       question,
		ConversationID: conversationID,
		Context:        history,
	}, &out)
	switch {
	case errors.Is(err, commonhttp.ErrTimeout):
		return nil, fmt.Errorf("%w: %v", ErrRAGTimeout, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrRAGUnavailable, err)
	}

	if out.Citations == nil {
		out.Citations = []Citation{}
	}
	return &out, nil
}
