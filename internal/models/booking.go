package models

import "time"

// Intent labels a single conversation turn
type Intent string

const (
	IntentRAG             Intent = "rag"
	IntentBooking         Intent = "booking"
	IntentBookingComplete Intent = "booking_complete"
	IntentChitchat        Intent = "chitchat"
)

// Valid reports whether the intent is one of the known tags
func (i Intent) Valid() bool {
	switch i {
	case IntentRAG, IntentBooking, IntentBookingComplete, IntentChitchat:
		return true
	}
	return false
}

// Phase is the booking phase of a conversation
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCollecting           Phase = "collecting"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseCompleted            Phase = "completed"
	PhaseAbandoned            Phase = "abandoned"
)

// Terminal reports whether no further transitions are allowed for the current slots
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned
}

// Active reports whether a booking is in progress
func (p Phase) Active() bool {
	return p == PhaseCollecting || p == PhaseAwaitingConfirmation
}

// Slot identifies one of the four booking fields
type Slot string

const (
	SlotName  Slot = "name"
	SlotPhone Slot = "phone"
	SlotEmail Slot = "email"
	SlotWhen  Slot = "when"
)

// RequiredSlots lists the booking fields in prompting order
var RequiredSlots = []Slot{SlotName, SlotPhone, SlotEmail, SlotWhen}

// BookingSlots is the collected state for one booking attempt
type BookingSlots struct {
	Name      string     `json:"name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Email     string     `json:"email,omitempty"`
	When      *time.Time `json:"when,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
	Confirmed bool       `json:"confirmed"`
	BookingID string     `json:"bookingId,omitempty"`

	MeetingLink     string `json:"meetingLink,omitempty"`
	ExternalEventID string `json:"externalEventId,omitempty"`
}

// Has reports whether the given slot holds a value
func (b *BookingSlots) Has(slot Slot) bool {
	switch slot {
	case SlotName:
		return b.Name != ""
	case SlotPhone:
		return b.Phone != ""
	case SlotEmail:
		return b.Email != ""
	case SlotWhen:
		return b.When != nil
	}
	return false
}

// Complete reports whether all four slots are set
func (b *BookingSlots) Complete() bool {
	for _, s := range RequiredSlots {
		if !b.Has(s) {
			return false
		}
	}
	return true
}

// Missing returns unset slots in prompting order
func (b *BookingSlots) Missing() []Slot {
	var out []Slot
	for _, s := range RequiredSlots {
		if !b.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Equal compares two slot sets field by field
func (b BookingSlots) Equal(o BookingSlots) bool {
	if b.Name != o.Name || b.Phone != o.Phone || b.Email != o.Email ||
		b.Timezone != o.Timezone || b.Confirmed != o.Confirmed || b.BookingID != o.BookingID ||
		b.MeetingLink != o.MeetingLink || b.ExternalEventID != o.ExternalEventID {
		return false
	}
	if (b.When == nil) != (o.When == nil) {
		return false
	}
	return b.When == nil || b.When.Equal(*o.When)
}

// Span is a half-open byte range into the source utterance
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Candidate is one extracted value for a slot
type Candidate struct {
	Value string     `json:"value"`
	Raw   string     `json:"raw"`
	Valid bool       `json:"valid"`
	Span  Span       `json:"span"`
	Time  *time.Time `json:"time,omitempty"`
}

// ExtractionResult maps slots to the candidates found in one utterance
type ExtractionResult struct {
	Utterance  string             `json:"utterance"`
	Candidates map[Slot]Candidate `json:"candidates"`
}

// NewExtractionResult creates an empty result for the utterance
func NewExtractionResult(utterance string) *ExtractionResult {
	return &ExtractionResult{
		Utterance:  utterance,
		Candidates: make(map[Slot]Candidate),
	}
}

// Get returns the candidate for a slot if one was found
func (e *ExtractionResult) Get(slot Slot) (Candidate, bool) {
	if e == nil {
		return Candidate{}, false
	}
	c, ok := e.Candidates[slot]
	return c, ok
}

// HasValid reports whether any candidate is valid
func (e *ExtractionResult) HasValid() bool {
	if e == nil {
		return false
	}
	for _, c := range e.Candidates {
		if c.Valid {
			return true
		}
	}
	return false
}

// BookingState is the snapshot of slots and phase returned to callers
type BookingState struct {
	ConversationID string       `json:"conversationId"`
	Phase          Phase        `json:"phase"`
	Slots          BookingSlots `json:"slots"`
	Missing        []Slot       `json:"missing,omitempty"`
}

// BookingRecord is the persisted form of a completed booking
type BookingRecord struct {
	BookingID       string    `json:"bookingId" db:"booking_id"`
	ConversationID  string    `json:"conversationId" db:"conversation_id"`
	Name            string    `json:"name" db:"name"`
	Email           string    `json:"email" db:"email"`
	Phone           string    `json:"phone" db:"phone"`
	MeetingAt       time.Time `json:"meetingAt" db:"meeting_at"`
	MeetingTitle    string    `json:"meetingTitle" db:"meeting_title"`
	Status          string    `json:"status" db:"status"`
	CalendarEventID string    `json:"calendarEventId,omitempty" db:"calendar_event_id"`
	MeetingLink     string    `json:"meetingLink,omitempty" db:"meeting_link"`
	IdempotencyKey  string    `json:"idempotencyKey" db:"idempotency_key"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

const BookingStatusConfirmed = "confirmed"
