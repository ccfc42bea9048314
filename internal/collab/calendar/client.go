// Package calendar creates meeting events through the calendar gateway.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	commonhttp "booking-assistant/internal/common/http"
	"booking-assistant/internal/common/logger"
)

var ErrCalendar = errors.New("CALENDAR_FAILURE")

const eventsPath = "/v1/events"

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Event struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Timezone    string     `json:"timezone"`
	Attendees   []Attendee `json:"attendees"`
}

type EventResult struct {
	ExternalEventID string `json:"id"`
	MeetingLink     string `json:"meeting_link"`
	HTMLLink        string `json:"html_link,omitempty"`
}

// NewEvent builds the meeting for one booking; {{name}} in titleTemplate is
// replaced with the attendee name.
func NewEvent(name, email, phone string, when time.Time, duration time.Duration, titleTemplate string) Event {
	if titleTemplate == "" {
		titleTemplate = "Call with {{name}}"
	}
	return Event{
		Title:       strings.ReplaceAll(titleTemplate, "{{name}}", name),
		Description: fmt.Sprintf("Booked by %s. Phone: %s. Email: %s.", name, phone, email),
		Start:       when,
		End:         when.Add(duration),
		Timezone:    when.Location().String(),
		Attendees:   []Attendee{{Name: name, Email: email}},
	}
}

type Client struct {
	baseURL string
	http    *commonhttp.Client
	logger  logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: commonhttp.New(commonhttp.Options{
			Name:            "calendar",
			Timeout:         cfg.Timeout,
			MaxRetries:      cfg.MaxRetries,
			Logger:          log,
			BreakerFailures: 5,
		}),
		logger: log,
	}
}

// CreateEvent posts the event with an Idempotency-Key header so a retried
// attempt for the same booking returns the original event.
func (c *Client) CreateEvent(ctx context.Context, idempotencyKey string, ev Event) (*EventResult, error) {
	var out EventResult
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	if err := c.http.PostJSON(ctx, c.baseURL+eventsPath, headers, ev, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendar, err)
	}
	if out.ExternalEventID == "" {
		return nil, fmt.Errorf("%w: response without event id", ErrCalendar)
	}
	if out.MeetingLink == "" {
		out.MeetingLink = out.HTMLLink
	}

	c.logger.Info("calendar event created", map[string]interface{}{
		"eventId":        out.ExternalEventID,
		"idempotencyKey": idempotencyKey,
	})
	return &out, nil
}
