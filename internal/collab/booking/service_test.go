package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"booking-assistant/internal/collab/calendar"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

type MockEventCreator struct {
	mock.Mock
}

func (m *MockEventCreator) CreateEvent(ctx context.Context, key string, ev calendar.Event) (*calendar.EventResult, error) {
	args := m.Called(ctx, key, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendar.EventResult), args.Error(1)
}

type MockRecordSaver struct {
	mock.Mock
}

func (m *MockRecordSaver) Save(ctx context.Context, rec *models.BookingRecord) (string, error) {
	args := m.Called(ctx, rec)
	id := args.String(0)
	if id != "" {
		rec.BookingID = id
	}
	return id, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) BookingConfirmed(ctx context.Context, rec models.BookingRecord) error {
	return m.Called(ctx, rec).Error(0)
}

var meetingAt = time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC)

func request() Request {
	when := meetingAt
	return Request{
		ConversationID: "conv-1",
		IdempotencyKey: "conv-1:1",
		Slots: models.BookingSlots{
			Name:      "John",
			Phone:     "+15551234567",
			Email:     "john@x.com",
			When:      &when,
			Confirmed: true,
		},
	}
}

func TestCreateBooking(t *testing.T) {
	cal := new(MockEventCreator)
	store := new(MockRecordSaver)
	notifier := new(MockNotifier)

	cal.On("CreateEvent", mock.Anything, "conv-1:1", mock.MatchedBy(func(ev calendar.Event) bool {
		return ev.Title == "Call with John" && ev.End.Sub(ev.Start) == 45*time.Minute
	})).Return(&calendar.EventResult{ExternalEventID: "evt-1", MeetingLink: "https://meet/1"}, nil)
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec *models.BookingRecord) bool {
		return rec.CalendarEventID == "evt-1" && rec.IdempotencyKey == "conv-1:1" && rec.MeetingAt.Equal(meetingAt)
	})).Return("bk-1", nil)
	notifier.On("BookingConfirmed", mock.Anything, mock.Anything).Return(errors.New("ses down"))

	svc := NewService(Config{MeetingDuration: 45 * time.Minute}, cal, store, notifier, logger.NewTestLogger(t))
	rec, err := svc.CreateBooking(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "bk-1", rec.BookingID)
	assert.Equal(t, "https://meet/1", rec.MeetingLink)
	cal.AssertExpectations(t)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestCreateBooking_CalendarFailure(t *testing.T) {
	cal := new(MockEventCreator)
	store := new(MockRecordSaver)
	cal.On("CreateEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil, calendar.ErrCalendar)

	_, err := NewService(Config{}, cal, store, nil, nil).CreateBooking(context.Background(), request())

	assert.True(t, errors.Is(err, ErrBookingFailed))
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateBooking_StoreFailure(t *testing.T) {
	cal := new(MockEventCreator)
	store := new(MockRecordSaver)
	cal.On("CreateEvent", mock.Anything, mock.Anything, mock.Anything).Return(&calendar.EventResult{ExternalEventID: "evt-1"}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return("", errors.New("DATABASE_INSERT_FAILED"))

	_, err := NewService(Config{}, cal, store, nil, nil).CreateBooking(context.Background(), request())
	assert.True(t, errors.Is(err, ErrBookingFailed))
}

func TestCreateBooking_RejectsIncompleteSlots(t *testing.T) {
	req := request()
	req.Slots.Email = ""

	_, err := NewService(Config{}, new(MockEventCreator), new(MockRecordSaver), nil, nil).CreateBooking(context.Background(), req)
	assert.True(t, errors.Is(err, ErrBookingFailed))
}

func TestCreateBooking_UsesSlotTimezone(t *testing.T) {
	cal := new(MockEventCreator)
	store := new(MockRecordSaver)
	cal.On("CreateEvent", mock.Anything, mock.Anything, mock.MatchedBy(func(ev calendar.Event) bool {
		return ev.Timezone == "Asia/Kathmandu"
	})).Return(&calendar.EventResult{ExternalEventID: "evt-1"}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return("bk-1", nil)

	req := request()
	req.Slots.Timezone = "Asia/Kathmandu"
	_, err := NewService(Config{}, cal, store, nil, nil).CreateBooking(context.Background(), req)
	require.NoError(t, err)
	cal.AssertExpectations(t)
}
