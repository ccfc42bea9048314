// Package persistence stores confirmed bookings in Postgres.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

var (
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrDatabaseQueryFailed  = errors.New("DATABASE_QUERY_FAILED")
	ErrNotFound             = errors.New("BOOKING_NOT_FOUND")
)

const DefaultListLimit = 100

const Schema = `
CREATE TABLE IF NOT EXISTS bookings (
	booking_id        TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL,
	name              TEXT NOT NULL,
	email             TEXT NOT NULL,
	phone             TEXT NOT NULL,
	meeting_at        TIMESTAMPTZ NOT NULL,
	meeting_title     TEXT NOT NULL,
	status            TEXT NOT NULL,
	calendar_event_id TEXT,
	meeting_link      TEXT,
	idempotency_key   TEXT NOT NULL UNIQUE,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bookings_conversation_idx ON bookings (conversation_id);
`

const selectColumns = `booking_id, conversation_id, name, email, phone, meeting_at, meeting_title, status,
	COALESCE(calendar_event_id, ''), COALESCE(meeting_link, ''), idempotency_key, created_at, updated_at`

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &PostgresStore{db: db, logger: log, now: time.Now}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrDatabaseQueryFailed, err)
	}
	return nil
}

// Save inserts the record and returns its booking id. Saving again with the
// same idempotency key returns the id stored the first time.
func (s *PostgresStore) Save(ctx context.Context, rec *models.BookingRecord) (string, error) {
	if rec.IdempotencyKey == "" {
		return "", fmt.Errorf("%w: idempotency key required", ErrDatabaseInsertFailed)
	}
	if rec.BookingID == "" {
		rec.BookingID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.BookingStatusConfirmed
	}
	now := s.now().UTC()

	var bookingID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bookings (
			booking_id, conversation_id, name, email, phone, meeting_at, meeting_title,
			status, calendar_event_id, meeting_link, idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (idempotency_key) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING booking_id`,
		rec.BookingID,
		rec.ConversationID,
		rec.Name,
		rec.Email,
		rec.Phone,
		rec.MeetingAt,
		rec.MeetingTitle,
		rec.Status,
		nullable(rec.CalendarEventID),
		nullable(rec.MeetingLink),
		rec.IdempotencyKey,
		now,
	).Scan(&bookingID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
	}

	if bookingID != rec.BookingID {
		s.logger.Info("booking already stored for idempotency key", map[string]interface{}{
			"bookingId":      bookingID,
			"idempotencyKey": rec.IdempotencyKey,
		})
	}
	rec.BookingID = bookingID
	return bookingID, nil
}

// List returns the newest bookings first
func (s *PostgresStore) List(ctx context.Context, limit int) ([]models.BookingRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM bookings ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseQueryFailed, err)
	}
	defer rows.Close()

	var out []models.BookingRecord
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseQueryFailed, err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, bookingID string) (*models.BookingRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM bookings WHERE booking_id = $1`, bookingID)
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, bookingID)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(r scanner) (*models.BookingRecord, error) {
	var rec models.BookingRecord
	err := r.Scan(
		&rec.BookingID,
		&rec.ConversationID,
		&rec.Name,
		&rec.Email,
		&rec.Phone,
		&rec.MeetingAt,
		&rec.MeetingTitle,
		&rec.Status,
		&rec.CalendarEventID,
		&rec.MeetingLink,
		&rec.IdempotencyKey,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", ErrDatabaseQueryFailed, err)
	}
	return &rec, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
