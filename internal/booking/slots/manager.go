// Package slots owns per-conversation booking state: merging extracted
// fields, tracking completeness and driving the phase transitions.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-assistant/internal/booking/cues"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

var ErrInvalidTransition = errors.New("INVALID_TRANSITION")

// Transition is reported whenever a conversation changes phase
type Transition struct {
	ConversationID string       `json:"conversationId"`
	From           models.Phase `json:"from"`
	To             models.Phase `json:"to"`
	Action         string       `json:"action"`
	Generation     int          `json:"generation"`
	At             time.Time    `json:"at"`
}

type TransitionObserver interface {
	OnTransition(ctx context.Context, t Transition)
}

// MergeOutcome reports what a merge did with each candidate
type MergeOutcome struct {
	State *State
	// Applied slots were written, Rejected ones were invalid and Kept ones
	// were valid but not allowed to overwrite an established value.
	Applied  []models.Slot
	Rejected []models.Slot
	Kept     []models.Slot
}

func (o *MergeOutcome) Changed() bool {
	return len(o.Applied) > 0
}

type Options struct {
	Store     Store
	Logger    logger.Logger
	Observers []TransitionObserver
	Clock     func() time.Time
}

type Manager struct {
	store     Store
	logger    logger.Logger
	observers []TransitionObserver
	now       func() time.Time
}

func NewManager(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		store:     opts.Store,
		logger:    opts.Logger,
		observers: opts.Observers,
		now:       opts.Clock,
	}
}

// Get returns the conversation state, creating it idle on first reference
func (m *Manager) Get(ctx context.Context, conversationID string) (*State, error) {
	s, ok, err := m.store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if ok {
		return s, nil
	}

	s = &State{ConversationID: conversationID, Phase: models.PhaseIdle, UpdatedAt: m.now()}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Begin starts a fresh booking attempt from idle or a terminal phase
func (m *Manager) Begin(ctx context.Context, conversationID string) (*State, error) {
	return m.transition(ctx, conversationID, "begin", func(s *State) error {
		if s.Phase.Active() {
			return invalid(s, "begin")
		}
		s.Slots = models.BookingSlots{}
		s.Generation++
		s.Phase = models.PhaseCollecting
		return nil
	})
}

// Merge folds an extraction into the active booking. Only valid candidates
// are written; an established value changes only on a booking turn that
// corrects or names that field. A merge that writes nothing changes nothing.
func (m *Manager) Merge(ctx context.Context, conversationID string, turn models.Intent, extraction *models.ExtractionResult) (*MergeOutcome, error) {
	s, err := m.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := &MergeOutcome{State: s}
	if !s.Phase.Active() || extraction == nil {
		return out, nil
	}

	next := s.Slots
	for _, slot := range models.RequiredSlots {
		c, ok := extraction.Get(slot)
		if !ok {
			continue
		}
		if !c.Valid || (slot == models.SlotWhen && c.Time == nil) {
			out.Rejected = append(out.Rejected, slot)
			continue
		}
		if sameValue(&next, slot, c) {
			continue
		}
		if next.Has(slot) && !corrects(turn, slot, extraction.Utterance) {
			out.Kept = append(out.Kept, slot)
			continue
		}
		assign(&next, slot, c)
		out.Applied = append(out.Applied, slot)
	}

	if !out.Changed() {
		return out, nil
	}

	s, err = m.transition(ctx, conversationID, "merge", func(st *State) error {
		st.Slots = next
		switch st.Phase {
		case models.PhaseCollecting:
			if next.Complete() {
				st.Phase = models.PhaseAwaitingConfirmation
			}
		case models.PhaseAwaitingConfirmation:
			st.Slots.Confirmed = false
			st.Phase = models.PhaseCollecting
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.State = s
	return out, nil
}

// AwaitConfirmation moves a complete collecting booking to confirmation
func (m *Manager) AwaitConfirmation(ctx context.Context, conversationID string) (*State, error) {
	return m.transition(ctx, conversationID, "await_confirmation", func(s *State) error {
		if s.Phase != models.PhaseCollecting || !s.Slots.Complete() {
			return invalid(s, "await_confirmation")
		}
		s.Phase = models.PhaseAwaitingConfirmation
		return nil
	})
}

func (m *Manager) Confirm(ctx context.Context, conversationID string) (*State, error) {
	return m.transition(ctx, conversationID, "confirm", func(s *State) error {
		if s.Phase != models.PhaseAwaitingConfirmation || !s.Slots.Complete() {
			return invalid(s, "confirm")
		}
		s.Slots.Confirmed = true
		s.Phase = models.PhaseCompleted
		return nil
	})
}

// Reopen returns a booking under confirmation to collecting, slots kept
func (m *Manager) Reopen(ctx context.Context, conversationID string) (*State, error) {
	return m.transition(ctx, conversationID, "reopen", func(s *State) error {
		if s.Phase != models.PhaseAwaitingConfirmation {
			return invalid(s, "reopen")
		}
		s.Slots.Confirmed = false
		s.Phase = models.PhaseCollecting
		return nil
	})
}

func (m *Manager) Cancel(ctx context.Context, conversationID string) (*State, error) {
	return m.transition(ctx, conversationID, "cancel", func(s *State) error {
		if !s.Phase.Active() {
			return invalid(s, "cancel")
		}
		s.Phase = models.PhaseAbandoned
		return nil
	})
}

// BookingResult is what the booking collaborator hands back
type BookingResult struct {
	BookingID       string
	ExternalEventID string
	MeetingLink     string
}

// AssignBookingID records the collaborator result for the given attempt.
// It refuses unless the booking is confirmed and has no id yet.
func (m *Manager) AssignBookingID(ctx context.Context, conversationID string, generation int, res BookingResult) (*State, error) {
	return m.transition(ctx, conversationID, "assign_booking_id", func(s *State) error {
		if s.Phase != models.PhaseCompleted || !s.Slots.Confirmed || s.Slots.BookingID != "" ||
			s.Generation != generation || res.BookingID == "" {
			return invalid(s, "assign_booking_id")
		}
		s.Slots.BookingID = res.BookingID
		s.Slots.ExternalEventID = res.ExternalEventID
		s.Slots.MeetingLink = res.MeetingLink
		return nil
	})
}

// RevertConfirmation undoes Confirm after the collaborator failed
func (m *Manager) RevertConfirmation(ctx context.Context, conversationID string) (*State, error) {
	return m.transition(ctx, conversationID, "revert_confirmation", func(s *State) error {
		if s.Phase != models.PhaseCompleted || s.Slots.BookingID != "" {
			return invalid(s, "revert_confirmation")
		}
		s.Slots.Confirmed = false
		s.Phase = models.PhaseAwaitingConfirmation
		return nil
	})
}

func (m *Manager) transition(ctx context.Context, conversationID, action string, apply func(*State) error) (*State, error) {
	s, err := m.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	next := s.clone()
	if err := apply(next); err != nil {
		m.logger.Error("rejected state transition", map[string]interface{}{
			"conversationId": conversationID,
			"action":         action,
			"phase":          s.Phase,
		})
		return nil, err
	}
	next.UpdatedAt = m.now()

	if err := m.store.Save(ctx, next); err != nil {
		return nil, err
	}

	if next.Phase != s.Phase {
		t := Transition{
			ConversationID: conversationID,
			From:           s.Phase,
			To:             next.Phase,
			Action:         action,
			Generation:     next.Generation,
			At:             next.UpdatedAt,
		}
		m.logger.Debug("phase transition", map[string]interface{}{
			"conversationId": conversationID,
			"from":           t.From,
			"to":             t.To,
			"action":         action,
		})
		for _, o := range m.observers {
			o.OnTransition(ctx, t)
		}
	}
	return next, nil
}

func invalid(s *State, action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, s.Phase)
}

// corrects decides whether a turn may overwrite an established slot. A
// time phrase names the when slot by itself.
func corrects(turn models.Intent, slot models.Slot, utterance string) bool {
	if turn != models.IntentBooking {
		return false
	}
	return slot == models.SlotWhen || cues.Correction(utterance) || cues.MentionsField(slot, utterance)
}

func sameValue(b *models.BookingSlots, slot models.Slot, c models.Candidate) bool {
	switch slot {
	case models.SlotName:
		return b.Name == c.Value
	case models.SlotPhone:
		return b.Phone == c.Value
	case models.SlotEmail:
		return b.Email == c.Value
	case models.SlotWhen:
		return b.When != nil && c.Time != nil && b.When.Equal(*c.Time)
	}
	return false
}

func assign(b *models.BookingSlots, slot models.Slot, c models.Candidate) {
	switch slot {
	case models.SlotName:
		b.Name = c.Value
	case models.SlotPhone:
		b.Phone = c.Value
	case models.SlotEmail:
		b.Email = c.Value
	case models.SlotWhen:
		t := *c.Time
		b.When = &t
		b.Timezone = t.Location().String()
	}
}
