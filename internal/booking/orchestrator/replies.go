package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"booking-assistant/internal/booking/cues"
	"booking-assistant/internal/booking/slots"
	"booking-assistant/internal/models"
)

const (
	beginReply           = "Sure, I can help you book a call."
	cancelledReply       = "No problem, I've cancelled this booking. Just say so if you'd like to book another call."
	extractionRetryReply = "Sorry, I couldn't read that. Could you send those details again?"
	whatToChangeReply    = "No problem. What would you like to change?"
	bookedTimeLayout     = "Monday, January 2 at 3:04 PM MST"
)

func fieldPrompt(slot models.Slot) string {
	switch slot {
	case models.SlotName:
		return "May I have your name?"
	case models.SlotPhone:
		return "What's the best phone number to reach you on?"
	case models.SlotEmail:
		return "Which email address should I send the invite to?"
	case models.SlotWhen:
		return "When would you like the call? For example \"tomorrow at 3pm\"."
	}
	return ""
}

func rejectedPrompt(slot models.Slot) string {
	switch slot {
	case models.SlotName:
		return "Sorry, I didn't catch your name. What should I call you?"
	case models.SlotPhone:
		return "That phone number doesn't look right. Could you send it again with the area code?"
	case models.SlotEmail:
		return "That email address doesn't look right. Could you check it and send it again?"
	case models.SlotWhen:
		return "That time has already passed. When in the future would suit you?"
	}
	return ""
}

func resumePrompt(slot models.Slot) string {
	return "Back to your booking: " + fieldPrompt(slot)
}

func acknowledge(out *slots.MergeOutcome, b models.BookingSlots) string {
	for _, s := range out.Applied {
		if s == models.SlotName {
			return fmt.Sprintf("Thanks, %s.", b.Name)
		}
	}
	return "Got it."
}

func confirmPrompt(b models.BookingSlots, loc *time.Location) string {
	return slots.Summary(b, loc) + "\n\nShall I go ahead and book it?"
}

func bookedReply(b models.BookingSlots, loc *time.Location) string {
	msg := fmt.Sprintf("You're booked for %s. Your booking reference is %s.",
		b.When.In(loc).Format(bookedTimeLayout), b.BookingID)
	if b.MeetingLink != "" {
		msg += " Meeting link: " + b.MeetingLink
	}
	return msg
}

func alreadyBookedReply(b models.BookingSlots, loc *time.Location) string {
	return "You're all set. " + bookedReply(b, loc)
}

func chitchatReply(utterance string, phase models.Phase) string {
	n := cues.Normalize(utterance)
	var reply string
	switch {
	case strings.Contains(n, "thank") || strings.HasPrefix(n, "thx") || strings.HasPrefix(n, "cheers"):
		reply = "You're welcome! Anything else I can help with?"
	case strings.Contains(n, "bye") || strings.Contains(n, "see you"):
		reply = "Goodbye! Come back any time."
	default:
		reply = "Hello! Ask me anything about your documents, or I can book a call for you."
	}
	if phase == models.PhaseCollecting {
		reply += " We can carry on with your booking whenever you're ready."
	}
	return reply
}
