// Package booking finalizes a confirmed conversation: it creates the calendar
// event, stores the booking and sends the confirmation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-assistant/internal/collab/calendar"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

var ErrBookingFailed = errors.New("COLLABORATOR_FAILURE")

type EventCreator interface {
	CreateEvent(ctx context.Context, idempotencyKey string, ev calendar.Event) (*calendar.EventResult, error)
}

type RecordSaver interface {
	Save(ctx context.Context, rec *models.BookingRecord) (string, error)
}

type Notifier interface {
	BookingConfirmed(ctx context.Context, rec models.BookingRecord) error
}

type Config struct {
	MeetingDuration time.Duration
	TitleTemplate   string
}

type Request struct {
	ConversationID string
	IdempotencyKey string
	Slots          models.BookingSlots
}

type Service struct {
	cfg      Config
	calendar EventCreator
	store    RecordSaver
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time
}

// NewService wires the collaborators. notifier may be nil.
func NewService(cfg Config, cal EventCreator, store RecordSaver, notifier Notifier, log logger.Logger) *Service {
	if cfg.MeetingDuration <= 0 {
		cfg.MeetingDuration = 30 * time.Minute
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		cfg:      cfg,
		calendar: cal,
		store:    store,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// CreateBooking is safe to retry with the same idempotency key: the calendar
// and the store both return what they produced the first time.
func (s *Service) CreateBooking(ctx context.Context, req Request) (*models.BookingRecord, error) {
	b := req.Slots
	if !b.Complete() {
		return nil, fmt.Errorf("%w: missing %v", ErrBookingFailed, b.Missing())
	}
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key required", ErrBookingFailed)
	}

	when := *b.When
	if b.Timezone != "" {
		if loc, err := time.LoadLocation(b.Timezone); err == nil {
			when = when.In(loc)
		}
	}

	ev := calendar.NewEvent(b.Name, b.Email, b.Phone, when, s.cfg.MeetingDuration, s.cfg.TitleTemplate)
	created, err := s.calendar.CreateEvent(ctx, req.IdempotencyKey, ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	now := s.now().UTC()
	rec := &models.BookingRecord{
		ConversationID:  req.ConversationID,
		Name:            b.Name,
		Email:           b.Email,
		Phone:           b.Phone,
		MeetingAt:       when.UTC(),
		MeetingTitle:    ev.Title,
		Status:          models.BookingStatusConfirmed,
		CalendarEventID: created.ExternalEventID,
		MeetingLink:     created.MeetingLink,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	s.logger.Info("booking created", map[string]interface{}{
		"bookingId":      rec.BookingID,
		"conversationId": req.ConversationID,
		"eventId":        rec.CalendarEventID,
	})

	if s.notifier != nil {
		if err := s.notifier.BookingConfirmed(ctx, *rec); err != nil {
			s.logger.Warn("booking confirmation not delivered", map[string]interface{}{
				"bookingId": rec.BookingID,
				"error":     err.Error(),
			})
		}
	}
	return rec, nil
}
