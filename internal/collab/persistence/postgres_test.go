package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

var (
	meetingAt = time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC)
	savedAt   = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
)

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewPostgresStore(db, logger.NewTestLogger(t))
	s.now = func() time.Time { return savedAt }
	return s, mock
}

func record() *models.BookingRecord {
	return &models.BookingRecord{
		ConversationID:  "conv-1",
		Name:            "John",
		Email:           "john@x.com",
		Phone:           "+15551234567",
		MeetingAt:       meetingAt,
		MeetingTitle:    "Call with John",
		CalendarEventID: "evt-1",
		IdempotencyKey:  "conv-1:1",
	}
}

func TestSave_ReturnsBookingID(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(
			sqlmock.AnyArg(), // booking id
			"conv-1", "John", "john@x.com", "+15551234567", meetingAt, "Call with John",
			models.BookingStatusConfirmed, "evt-1", nil, "conv-1:1", savedAt,
		).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}).AddRow("bk-1"))

	rec := record()
	rec.BookingID = "bk-1"
	id, err := s.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "bk-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_ExistingIdempotencyKeyReturnsOriginal(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`ON CONFLICT \(idempotency_key\)`).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}).AddRow("bk-original"))

	rec := record()
	id, err := s.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "bk-original", id)
	assert.Equal(t, "bk-original", rec.BookingID)
}

func TestSave_Failures(t *testing.T) {
	s, mock := newTestStore(t)

	rec := record()
	rec.IdempotencyKey = ""
	_, err := s.Save(context.Background(), rec)
	assert.True(t, errors.Is(err, ErrDatabaseInsertFailed))

	mock.ExpectQuery(`INSERT INTO bookings`).WillReturnError(errors.New("connection reset"))
	_, err = s.Save(context.Background(), record())
	assert.True(t, errors.Is(err, ErrDatabaseInsertFailed))
}

var columns = []string{
	"booking_id", "conversation_id", "name", "email", "phone", "meeting_at", "meeting_title", "status",
	"calendar_event_id", "meeting_link", "idempotency_key", "created_at", "updated_at",
}

func TestList(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .* FROM bookings ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(DefaultListLimit).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("bk-2", "conv-2", "Jane", "jane@x.com", "+15550000000", meetingAt, "Call with Jane", "confirmed", "", "", "conv-2:1", savedAt, savedAt).
			AddRow("bk-1", "conv-1", "John", "john@x.com", "+15551234567", meetingAt, "Call with John", "confirmed", "evt-1", "https://meet/1", "conv-1:1", savedAt, savedAt))

	out, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "bk-2", out[0].BookingID)
	assert.Equal(t, "https://meet/1", out[1].MeetingLink)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`WHERE booking_id = \$1`).
		WithArgs("bk-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("bk-1", "conv-1", "John", "john@x.com", "+15551234567", meetingAt, "Call with John", "confirmed", "evt-1", "", "conv-1:1", savedAt, savedAt))
	mock.ExpectQuery(`WHERE booking_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	rec, err := s.Get(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "John", rec.Name)

	_, err = s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMigrate(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS bookings`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
