// Package cues holds the closed word lists used to read confirmations,
// cancellations, corrections and field references out of an utterance.
package cues

import (
	"regexp"
	"strings"

	"booking-assistant/internal/models"
)

func words(list ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(list, "|") + `)\b`)
}

var (
	affirmative = words(`yes`, `yeah`, `yep`, `yup`, `ya`, `sure`, `ok`, `okay`, `confirm`, `confirmed`,
		`correct`, `that's right`, `thats right`, `sounds good`, `looks good`, `go ahead`, `please do`,
		`perfect`, `absolutely`, `do it`, `book it`, `all good`, `lgtm`, `why not`, `no problem`, `no worries`,
		`of course`)
	// idioms that read as assent despite a negation word
	assent   = words(`why not`, `no problem`, `no worries`, `not a problem`, `not bad`)
	negative   = words(`no`, `nope`, `nah`, `not`, `don't`, `dont`, `incorrect`, `wait`)
	cancel     = words(`cancel`, `never mind`, `nevermind`, `forget it`, `forget about it`, `abort`, `stop`, `don't book`, `dont book`)
	correction = words(`actually`, `change`, `changed`, `instead`, `update`, `wrong`, `rather`, `make it`,
		`correction`, `fix`, `how about`, `switch`, `meant`)
	trigger = words(`book`, `booking`, `schedule`, `appointment`, `meeting`, `call me`, `set up a call`,
		`setup a call`, `can you call`, `reserve`, `reschedule`, `talk to someone`, `speak to someone`)
	greeting = regexp.MustCompile(`^(?:(?:hi|hello|hey|hiya|howdy|good (?:morning|afternoon|evening)|how are you|thanks|thank you|thx|ty|cheers|bye|goodbye|see you)(?: there| so much| a lot| again)?[\s!.,]*)+$`)
	question = regexp.MustCompile(`^(?:what|how|why|who|where|which|when|can|could|does|do|is|are|will|would|should|tell me)\b`)

	emailLike = regexp.MustCompile(`\S+@\S+`)
	digitRun  = regexp.MustCompile(`\d[\d\s().-]{5,}\d`)

	fieldWords = map[models.Slot]*regexp.Regexp{
		models.SlotEmail: words(`email`, `e-mail`, `mail`, `address`),
		models.SlotPhone: words(`phone`, `number`, `mobile`, `cell`, `contact`),
		models.SlotName:  words(`name`, `i'm`, `i am`, `call me`, `this is`, `spelled`),
		models.SlotWhen:  words(`time`, `date`, `day`, `when`, `reschedule`, `earlier`, `later`),
	}
)

// Normalize lower-cases and folds typographic apostrophes and whitespace
func Normalize(utterance string) string {
	s := strings.ToLower(utterance)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// prose normalizes the utterance with email and phone values blanked out so
// an address like stop@x.com is not read as a command word
func prose(text string) string {
	text = emailLike.ReplaceAllString(text, " ")
	return Normalize(digitRun.ReplaceAllString(text, " "))
}

func Affirmative(text string) bool { return affirmative.MatchString(prose(text)) }

func Negative(text string) bool {
	return negative.MatchString(assent.ReplaceAllString(prose(text), " "))
}

func Cancel(text string) bool { return cancel.MatchString(prose(text)) }

func Correction(text string) bool { return correction.MatchString(prose(text)) }

func BookingTrigger(text string) bool { return trigger.MatchString(prose(text)) }

// Greeting matches utterances made only of greetings, thanks or goodbyes
func Greeting(text string) bool { return greeting.MatchString(Normalize(text)) }

func Question(text string) bool {
	n := Normalize(text)
	return strings.HasSuffix(n, "?") || question.MatchString(n)
}

// ContactShaped reports an email or phone looking substring
func ContactShaped(text string) bool {
	return emailLike.MatchString(text) || digitRun.MatchString(text)
}

// MentionsField reports whether the utterance names the slot explicitly
func MentionsField(slot models.Slot, text string) bool {
	re, ok := fieldWords[slot]
	return ok && re.MatchString(Normalize(text))
}
