// Package intent labels each turn as a document question, a booking
// utterance, a completion trigger or chitchat.
package intent

import (
	"context"
	"errors"
	"fmt"

	"booking-assistant/internal/booking/cues"
	"booking-assistant/internal/models"
)

var (
	ErrClassifierTimeout     = errors.New("CLASSIFIER_TIMEOUT")
	ErrClassifierUnavailable = errors.New("CLASSIFIER_UNAVAILABLE")
)

// Classifier must not touch booking state
type Classifier interface {
	Classify(ctx context.Context, utterance string, phase models.Phase) (models.Intent, error)
}

type SpanFinder interface {
	Find(text string) []models.Span
}

// RuleClassifier decides from closed cue lists and the conversation phase
type RuleClassifier struct {
	spans SpanFinder
}

func NewRuleClassifier(spans SpanFinder) *RuleClassifier {
	return &RuleClassifier{spans: spans}
}

func (c *RuleClassifier) Classify(ctx context.Context, utterance string, phase models.Phase) (models.Intent, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassifierTimeout, err)
	}

	slotBearing := c.slotBearing(utterance)

	switch phase {
	case models.PhaseAwaitingConfirmation:
		changing := cues.Negative(utterance) || cues.Correction(utterance) || cues.Cancel(utterance)
		if cues.Affirmative(utterance) && !changing && !slotBearing {
			return models.IntentBookingComplete, nil
		}
		if changing || slotBearing {
			return models.IntentBooking, nil
		}

	case models.PhaseCollecting:
		if slotBearing || cues.Cancel(utterance) || cues.Negative(utterance) || cues.Affirmative(utterance) {
			return models.IntentBooking, nil
		}
		if cues.Greeting(utterance) {
			return models.IntentChitchat, nil
		}
		if cues.Question(utterance) {
			return models.IntentRAG, nil
		}
		// a bare reply to a field prompt
		return models.IntentBooking, nil

	case models.PhaseCompleted:
		if cues.Affirmative(utterance) && !slotBearing && !cues.BookingTrigger(utterance) {
			return models.IntentBookingComplete, nil
		}
	}

	return idle(utterance), nil
}

func idle(utterance string) models.Intent {
	switch {
	case cues.BookingTrigger(utterance):
		return models.IntentBooking
	case cues.Greeting(utterance):
		return models.IntentChitchat
	}
	return models.IntentRAG
}

func (c *RuleClassifier) slotBearing(utterance string) bool {
	if cues.ContactShaped(utterance) {
		return true
	}
	for _, slot := range models.RequiredSlots {
		if cues.MentionsField(slot, utterance) {
			return true
		}
	}
	return c.spans != nil && len(c.spans.Find(utterance)) > 0
}
