// Package extractor finds booking field candidates in a single utterance.
package extractor

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"booking-assistant/internal/common/validation"
	"booking-assistant/internal/models"
)

var ErrExtractionFailed = errors.New("EXTRACTION_FAILED")

// Extractor is satisfied by the rule based and the model backed implementations
type Extractor interface {
	Extract(ctx context.Context, utterance string) (*models.ExtractionResult, error)
}

// SpanFinder locates temporal expressions; datetime.Resolver implements it
type SpanFinder interface {
	Find(text string) []models.Span
}

var (
	emailShape = regexp.MustCompile(`[^\s@<>(),;:"']+@[^\s@<>(),;:"']+`)
	phoneShape = regexp.MustCompile(`(?:\+|\()?\d[\d\s().-]{3,}\d`)

	strongNameCue = regexp.MustCompile(`(?i)\b(?:my\s+name\s+is|my\s+name's|name\s+is|name's|name:)\s*`)
	weakNameCue   = regexp.MustCompile(`(?i:\b(?:i'm|i\s+am|im|this\s+is|it's|call\s+me))\s+([A-Z][A-Za-z'-]*(?:\s+[A-Z][A-Za-z'-]*){0,2})`)
	nameWord      = regexp.MustCompile(`^[A-Za-z][A-Za-z'-]*$`)
	fieldPattern  = regexp.MustCompile(`\S+`)
)

const minPhoneShapeDigits = 5

// words that end a name or can never be one
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "also": true, "available": true, "book": true,
	"booking": true, "call": true, "calling": true, "cell": true, "confirm": true, "cool": true,
	"email": true, "e-mail": true, "for": true, "free": true, "from": true, "going": true,
	"great": true, "hello": true, "here": true, "hey": true, "hi": true, "i": true, "interested": true,
	"is": true, "just": true, "looking": true, "mail": true, "meeting": true, "mobile": true,
	"my": true, "no": true, "nope": true, "not": true, "number": true, "ok": true, "okay": true,
	"on": true, "perfect": true, "phone": true, "please": true, "schedule": true, "so": true,
	"sure": true, "thanks": true, "thank": true, "the": true, "to": true, "trying": true,
	"with": true, "yes": true, "yeah": true, "yep": true, "you": true, "your": true,
	"what": true, "why": true, "how": true, "when": true, "where": true, "who": true, "which": true,
	"sorry": true, "awesome": true, "nice": true, "good": true, "fine": true, "done": true,
	"cancel": true, "stop": true, "wait": true, "maybe": true, "later": true, "nothing": true,
	"correct": true, "right": true, "wrong": true, "actually": true, "change": true, "update": true,
	"bye": true, "goodbye": true, "there": true, "it": true, "that": true, "this": true,
	"next": true, "last": true, "week": true, "weekend": true, "month": true, "year": true,
	"today": true, "tomorrow": true, "tonight": true, "morning": true, "afternoon": true,
	"evening": true, "noon": true, "midnight": true, "am": true, "pm": true, "day": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true,
}

// calendar words that double as names; only a bare utterance rejects them
var calendarWords = map[string]bool{
	"mon": true, "tue": true, "tues": true, "wed": true, "thu": true, "thurs": true, "fri": true,
	"sat": true, "sun": true,
	"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true,
	"december": true, "jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

type Options struct {
	Spans SpanFinder
	// Calling code prepended to national phone numbers
	DefaultCountryCode string
}

// RuleExtractor extracts candidates with regular patterns only
type RuleExtractor struct {
	spans       SpanFinder
	countryCode string
}

func NewRuleExtractor(opts Options) *RuleExtractor {
	return &RuleExtractor{spans: opts.Spans, countryCode: opts.DefaultCountryCode}
}

func (e *RuleExtractor) Extract(ctx context.Context, utterance string) (*models.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := models.NewExtractionResult(utterance)
	// consumed bytes are blanked so later patterns cannot reuse them
	masked := []byte(utterance)

	if c, ok := e.email(utterance); ok {
		result.Candidates[models.SlotEmail] = c
		mask(masked, c.Span)
	}

	if e.spans != nil {
		spans := e.spans.Find(string(masked))
		if c, ok := when(utterance, spans); ok {
			result.Candidates[models.SlotWhen] = c
			for _, sp := range spans {
				mask(masked, sp)
			}
		}
	}

	if c, ok := e.phone(string(masked)); ok {
		result.Candidates[models.SlotPhone] = c
		mask(masked, c.Span)
	}

	if c, ok := name(string(masked)); ok {
		result.Candidates[models.SlotName] = c
	}

	return result, nil
}

func (e *RuleExtractor) email(text string) (models.Candidate, bool) {
	loc := emailShape.FindStringIndex(text)
	if loc == nil {
		return models.Candidate{}, false
	}
	raw := strings.TrimRight(text[loc[0]:loc[1]], ".,!?")
	span := models.Span{Start: loc[0], End: loc[0] + len(raw)}
	value := strings.ToLower(raw)
	return models.Candidate{
		Value: value,
		Raw:   raw,
		Valid: validation.ValidateEmail(value),
		Span:  span,
	}, true
}

func (e *RuleExtractor) phone(text string) (models.Candidate, bool) {
	for _, loc := range phoneShape.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		if len(validation.PhoneDigits(raw)) < minPhoneShapeDigits {
			continue
		}
		value, valid := validation.NormalizePhone(raw, e.countryCode)
		return models.Candidate{
			Value: value,
			Raw:   raw,
			Valid: valid,
			Span:  models.Span{Start: loc[0], End: loc[1]},
		}, true
	}
	return models.Candidate{}, false
}

func when(text string, spans []models.Span) (models.Candidate, bool) {
	if len(spans) == 0 {
		return models.Candidate{}, false
	}
	parts := make([]string, 0, len(spans))
	for _, sp := range spans {
		parts = append(parts, text[sp.Start:sp.End])
	}
	raw := strings.Join(parts, " ")
	return models.Candidate{
		Value: raw,
		Raw:   raw,
		Valid: true,
		Span:  models.Span{Start: spans[0].Start, End: spans[len(spans)-1].End},
	}, true
}

func name(text string) (models.Candidate, bool) {
	if loc := strongNameCue.FindStringIndex(text); loc != nil {
		if c, ok := nameAt(text, loc[1], false); ok {
			return c, true
		}
	}
	if m := weakNameCue.FindStringSubmatchIndex(text); m != nil {
		if c, ok := nameAt(text, m[2], true); ok {
			return c, true
		}
	}
	return bareName(text)
}

// nameAt reads up to four name words starting at offset
func nameAt(text string, offset int, capitalized bool) (models.Candidate, bool) {
	rest := text[offset:]
	var words []string
	start, end := 0, 0

	for _, loc := range fieldPattern.FindAllStringIndex(rest, -1) {
		field := rest[loc[0]:loc[1]]
		word := strings.TrimRight(field, ".,!?;:")
		if !nameWord.MatchString(word) || stopwords[strings.ToLower(word)] {
			break
		}
		if capitalized && !unicode.IsUpper(rune(word[0])) {
			break
		}
		if len(words) == 0 {
			start = offset + loc[0]
		}
		words = append(words, word)
		end = offset + loc[0] + len(word)
		// trailing punctuation closes the name
		if len(words) == 4 || word != field {
			break
		}
	}

	if len(words) == 0 {
		return models.Candidate{}, false
	}
	return models.Candidate{
		Value: titleCase(words),
		Raw:   text[start:end],
		Valid: true,
		Span:  models.Span{Start: start, End: end},
	}, true
}

// bareName accepts an utterance made of one to three capitalized words
func bareName(text string) (models.Candidate, bool) {
	if strings.Contains(text, "?") {
		return models.Candidate{}, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 3 {
		return models.Candidate{}, false
	}
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, ".,!?;:")
		lower := strings.ToLower(w)
		if !nameWord.MatchString(w) || !unicode.IsUpper(rune(w[0])) || stopwords[lower] || calendarWords[lower] {
			return models.Candidate{}, false
		}
		words = append(words, w)
	}
	start := strings.Index(text, words[0])
	last := words[len(words)-1]
	end := strings.LastIndex(text, last) + len(last)
	return models.Candidate{
		Value: titleCase(words),
		Raw:   text[start:end],
		Valid: true,
		Span:  models.Span{Start: start, End: end},
	}, true
}

func titleCase(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(out, " ")
}

func mask(b []byte, sp models.Span) {
	for i := sp.Start; i < sp.End && i < len(b); i++ {
		b[i] = ' '
	}
}
