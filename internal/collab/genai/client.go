// Package genai talks to the language model gateway used for intent
// classification and booking field extraction.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	commonhttp "booking-assistant/internal/common/http"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/common/validation"
)

var (
	ErrTimeout         = errors.New("GENAI_TIMEOUT")
	ErrUnavailable     = errors.New("GENAI_UNAVAILABLE")
	ErrInvalidResponse = errors.New("GENAI_INVALID_RESPONSE")
)

const (
	classifyPath = "/api/ai/classify-intent"
	extractPath  = "/api/ai/extract-booking-fields"
)

var classifySchema = validation.MustCompileSchema(`{
	"type": "object",
	"required": ["intent"],
	"properties": {
		"intent": {"type": "string", "enum": ["rag", "booking", "booking_complete", "chitchat"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

var extractSchema = validation.MustCompileSchema(`{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"phone": {"type": "string"},
		"email": {"type": "string"},
		"when": {"type": "string"}
	},
	"additionalProperties": true
}`)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

type ClassifyRequest struct {
	Utterance    string   `json:"utterance"`
	Phase        string   `json:"phase"`
	Labels       []string `json:"labels"`
	Instructions string   `json:"instructions"`
}

type ClassifyResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type ExtractRequest struct {
	Utterance string   `json:"utterance"`
	Fields    []string `json:"fields"`
}

// ExtractResponse holds the raw text the model attributed to each field
type ExtractResponse struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	When  string `json:"when,omitempty"`
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
			Name:            "genai",
			Timeout:         cfg.Timeout,
			MaxRetries:      cfg.MaxRetries,
			Logger:          log,
			BreakerFailures: 5,
		}),
		logger: log,
	}
}

func (c *Client) ClassifyIntent(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	var out ClassifyResponse
	if err := c.call(ctx, classifyPath, req, classifySchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExtractBookingFields(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	var out ExtractResponse
	if err := c.call(ctx, extractPath, req, extractSchema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, path string, body interface{}, schema *validation.Schema, out interface{}) error {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var raw json.RawMessage
	err := c.http.PostJSON(ctx, c.baseURL+path, headers, body, &raw)
	switch {
	case errors.Is(err, commonhttp.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res, err := schema.ValidateBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !res.Valid {
		c.logger.Warn("model response rejected by schema", map[string]interface{}{
			"path":   path,
			"errors": res.GetErrorMessages(),
		})
		return fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(res.GetErrorMessages(), "; "))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
