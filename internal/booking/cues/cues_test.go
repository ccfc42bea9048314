package cues

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"booking-assistant/internal/models"
)

func TestGreeting(t *testing.T) {
	for _, s := range []string{"hi there", "Hello!", "thanks so much", "hi, thanks", "Good morning", "bye"} {
		assert.True(t, Greeting(s), s)
	}
	for _, s := range []string{"hi, can I book a call?", "what is the refund policy", "yes"} {
		assert.False(t, Greeting(s), s)
	}
}

func TestAffirmativeAndNegative(t *testing.T) {
	assert.True(t, Affirmative("Yes"))
	assert.True(t, Affirmative("sounds good, go ahead"))
	assert.True(t, Affirmative("That’s right"))
	assert.False(t, Affirmative("book a call"))

	assert.True(t, Negative("no, change my email to jane@x.com"))
	assert.False(t, Negative("now works"))
}

func TestAssentIdioms(t *testing.T) {
	for _, s := range []string{"yes, why not", "Why not!", "no problem", "sure, no worries", "not a problem"} {
		assert.True(t, Affirmative(s), s)
		assert.False(t, Negative(s), s)
	}
	assert.True(t, Negative("that's not correct"))
	assert.True(t, Negative("no, why not make it 4pm"))
}

func TestContactValuesAreNotCues(t *testing.T) {
	assert.False(t, Cancel("my email is stop@x.com"))
	assert.False(t, Cancel("abort.mission@example.org"))
	assert.False(t, Negative("no.reply@x.com"))
	assert.False(t, Correction("change@x.com"))
	assert.False(t, Affirmative("yes@x.com"))
	assert.False(t, BookingTrigger("it's book@x.com"))

	assert.True(t, Cancel("stop, my email is jane@x.com"))
	assert.True(t, Correction("actually it's change@x.com"))
}

func TestCorrectionAndCancel(t *testing.T) {
	assert.True(t, Correction("actually my email is jane@x.com"))
	assert.True(t, Correction("make it 4pm"))
	assert.False(t, Correction("my email is jane@x.com"))

	assert.True(t, Cancel("never mind, cancel that"))
	assert.True(t, Cancel("forget it"))
	assert.False(t, Cancel("tomorrow works"))
}

func TestBookingTriggerAndQuestion(t *testing.T) {
	assert.True(t, BookingTrigger("I'd like to book a call"))
	assert.True(t, BookingTrigger("Can you schedule a meeting for me"))
	assert.False(t, BookingTrigger("what does the warranty cover"))

	assert.True(t, Question("what does the warranty cover"))
	assert.True(t, Question("the warranty covers water damage?"))
	assert.False(t, Question("John Smith"))
}

func TestMentionsField(t *testing.T) {
	assert.True(t, MentionsField(models.SlotEmail, "no, change my email to jane@x.com"))
	assert.False(t, MentionsField(models.SlotPhone, "no, change my email to jane@x.com"))
	assert.True(t, MentionsField(models.SlotPhone, "my new number is 555 000 1111"))
	assert.True(t, MentionsField(models.SlotName, "my name is actually Jon"))
}

func TestContactShaped(t *testing.T) {
	assert.True(t, ContactShaped("reach me at 555-123-4567"))
	assert.True(t, ContactShaped("jane@x.com"))
	assert.False(t, ContactShaped("at 3pm"))
}
