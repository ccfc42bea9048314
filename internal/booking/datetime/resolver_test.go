package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday
var tuesdayMorning = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestResolver() *Resolver {
	return NewResolver(Options{DefaultLocation: time.UTC, DefaultHour: 10})
}

func at(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2025, month, day, hour, minute, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		phrase string
		ref    time.Time
		want   time.Time
	}{
		{"bare clock later today", "3pm", tuesdayMorning, at(3, 4, 15, 0)},
		{"bare clock already passed", "3pm", at(3, 4, 16, 0), at(3, 5, 15, 0)},
		{"tomorrow with clock", "tomorrow at 3pm", tuesdayMorning, at(3, 5, 15, 0)},
		{"iso date uses default clock", "2025-03-10", tuesdayMorning, at(3, 10, 10, 0)},
		{"iso date with time", "2025-03-10T09:30", tuesdayMorning, at(3, 10, 9, 30)},
		{"month day in the past rolls over", "March 3rd", tuesdayMorning, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
		{"month day with clock", "march 10 at 2:30pm", tuesdayMorning, at(3, 10, 14, 30)},
		{"day month", "the 12th of march at 11am", tuesdayMorning, at(3, 12, 11, 0)},
		{"numeric date", "3/12", tuesdayMorning, at(3, 12, 10, 0)},
		{"next weekday on the same weekday", "next tuesday", tuesdayMorning, at(3, 11, 10, 0)},
		{"same weekday already passed", "tuesday at 9am", tuesdayMorning, at(3, 11, 9, 0)},
		{"bare weekday", "monday", tuesdayMorning, at(3, 10, 10, 0)},
		{"weekday with o'clock", "friday 3 o'clock", tuesdayMorning, at(3, 7, 15, 0)},
		{"hour offset", "in two hours", tuesdayMorning, at(3, 4, 12, 0)},
		{"half hour offset", "can we talk in half an hour", tuesdayMorning, at(3, 4, 10, 30)},
		{"day offset", "in 3 days", tuesdayMorning, at(3, 7, 10, 0)},
		{"day after tomorrow with daypart", "day after tomorrow in the evening", tuesdayMorning, at(3, 6, 18, 0)},
		{"tonight", "tonight", tuesdayMorning, at(3, 4, 19, 0)},
		{"noon", "noon tomorrow", tuesdayMorning, at(3, 5, 12, 0)},
		{"a.m. suffix", "tomorrow 9 a.m.", tuesdayMorning, at(3, 5, 9, 0)},
		{"24h clock", "Thursday 14:45", tuesdayMorning, at(3, 6, 14, 45)},
	}

	r := newTestResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.phrase, tt.ref, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestResolve_NextMondayFromMonday(t *testing.T) {
	monday := at(3, 3, 10, 0)
	got, err := newTestResolver().Resolve("next Monday", monday, nil)
	require.NoError(t, err)
	assert.True(t, at(3, 10, 10, 0).Equal(got))
}

func TestResolve_Unresolved(t *testing.T) {
	r := newTestResolver()
	for _, phrase := range []string{"", "whenever works for you", "soon", "at 3"} {
		_, err := r.Resolve(phrase, tuesdayMorning, nil)
		assert.ErrorIs(t, err, ErrUnresolved, phrase)
	}
}

func TestResolve_InvalidCalendarDate(t *testing.T) {
	_, err := newTestResolver().Resolve("2025-02-30", tuesdayMorning, nil)
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolve_DefaultLocation(t *testing.T) {
	npt := time.FixedZone("NPT", 5*3600+45*60)
	r := NewResolver(Options{DefaultLocation: npt, DefaultHour: 10})

	got, err := r.Resolve("tomorrow at 9am", tuesdayMorning, nil)
	require.NoError(t, err)
	assert.Equal(t, "NPT", got.Location().String())
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 5, got.Day())
}

func TestResolveWithAnchor(t *testing.T) {
	r := newTestResolver()
	anchor := at(3, 7, 15, 0)

	got, err := r.ResolveWithAnchor("actually make it 4pm", tuesdayMorning, nil, &anchor)
	require.NoError(t, err)
	assert.True(t, at(3, 7, 16, 0).Equal(got))

	got, err = r.ResolveWithAnchor("move it to monday", tuesdayMorning, nil, &anchor)
	require.NoError(t, err)
	assert.True(t, at(3, 10, 15, 0).Equal(got))
}

func TestFind(t *testing.T) {
	text := "Call me at 5551234567 Tomorrow at 3pm"
	spans := newTestResolver().Find(text)

	require.Len(t, spans, 2)
	assert.Equal(t, "Tomorrow", text[spans[0].Start:spans[0].End])
	assert.Equal(t, "3pm", text[spans[1].Start:spans[1].End])
}
