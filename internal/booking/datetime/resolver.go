// Package datetime turns relative and absolute date/time phrases into
// timezone-aware timestamps.
package datetime

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"booking-assistant/internal/models"
)

var ErrUnresolved = errors.New("UNRESOLVED_DATETIME")

type tokenKind int

const (
	kindOffset tokenKind = iota
	kindISODate
	kindMonthDay
	kindDayMonth
	kindNumericDate
	kindDayAfterTomorrow
	kindRelativeDay
	kindWeekday
	kindClock12
	kindClock24
	kindOClock
	kindNamedClock
	kindDaypart
)

const months = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

var matchers = []struct {
	kind tokenKind
	re   *regexp.Regexp
}{
	{kindOffset, regexp.MustCompile(`\bin\s+(half\s+an|an?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|\d{1,3})\s*(minutes?|mins?|hours?|hrs?|days?|weeks?)\b`)},
	{kindISODate, regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:[t ](\d{1,2}):(\d{2}))?\b`)},
	{kindMonthDay, regexp.MustCompile(`\b(` + months + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)},
	{kindDayMonth, regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + months + `)\b(?:,?\s+(\d{4})\b)?`)},
	{kindNumericDate, regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)},
	{kindDayAfterTomorrow, regexp.MustCompile(`\b(?:the\s+)?day\s+after\s+tomorrow\b`)},
	{kindRelativeDay, regexp.MustCompile(`\b(today|tonight|tomorrow|tmrw|tmr)\b`)},
	{kindWeekday, regexp.MustCompile(`\b(?:(next|this|coming)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)},
	{kindClock12, regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(?:(am|pm)\b|(a\.m\.|p\.m\.))`)},
	{kindClock24, regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)},
	{kindOClock, regexp.MustCompile(`\b(\d{1,2})\s*o'?clock\b`)},
	{kindNamedClock, regexp.MustCompile(`\b(noon|midday|midnight)\b`)},
	{kindDaypart, regexp.MustCompile(`\b(morning|afternoon|evening|night)\b`)},
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

var daypartHours = map[string]int{
	"morning": 9, "afternoon": 14, "evening": 18, "night": 20, "tonight": 19,
}

type token struct {
	kind   tokenKind
	start  int
	end    int
	groups []string
}

type Options struct {
	DefaultLocation *time.Location
	// Clock time applied to a bare date
	DefaultHour   int
	DefaultMinute int
}

type Resolver struct {
	loc    *time.Location
	hour   int
	minute int
}

func NewResolver(opts Options) *Resolver {
	loc := opts.DefaultLocation
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, hour: opts.DefaultHour, minute: opts.DefaultMinute}
}

// Location returns loc, or the default location when loc is nil
func (r *Resolver) Location(loc *time.Location) *time.Location {
	if loc == nil {
		return r.loc
	}
	return loc
}

// Resolve converts phrase to an absolute time relative to ref. It returns
// ErrUnresolved when the phrase carries no temporal anchor.
func (r *Resolver) Resolve(phrase string, ref time.Time, loc *time.Location) (time.Time, error) {
	return r.ResolveWithAnchor(phrase, ref, loc, nil)
}

// ResolveWithAnchor is Resolve with an already established booking time. A
// bare clock time keeps the anchor's date and a bare date keeps its clock.
func (r *Resolver) ResolveWithAnchor(phrase string, ref time.Time, loc *time.Location, anchor *time.Time) (time.Time, error) {
	loc = r.Location(loc)
	ref = ref.In(loc)

	tokens := scan(phrase)
	if len(tokens) == 0 {
		return time.Time{}, ErrUnresolved
	}

	var (
		date     *civilDate
		dateKind tokenKind
		clock    *clockTime
		daypart  *clockTime
	)
	setDate := func(d civilDate, kind tokenKind) {
		date, dateKind = &d, kind
	}

	for _, tok := range tokens {
		switch tok.kind {
		case kindOffset:
			minutes, days := offsetAmount(tok.groups[1], tok.groups[2])
			if minutes > 0 {
				return ref.Add(time.Duration(minutes) * time.Minute), nil
			}
			if date == nil {
				setDate(civilOf(ref).addDays(days), tok.kind)
			}
		case kindISODate, kindMonthDay, kindDayMonth, kindNumericDate:
			d, c, ok := explicitDate(tok, ref)
			if !ok {
				continue
			}
			// an explicit calendar date overrides relative words
			if date == nil || !explicitKind(dateKind) {
				setDate(d, tok.kind)
			}
			if c != nil && clock == nil {
				clock = c
			}
		case kindDayAfterTomorrow:
			if date == nil {
				setDate(civilOf(ref).addDays(2), tok.kind)
			}
		case kindRelativeDay:
			if date != nil {
				continue
			}
			d := civilOf(ref)
			switch tok.groups[1] {
			case "tomorrow", "tmrw", "tmr":
				d = d.addDays(1)
			case "tonight":
				if daypart == nil {
					daypart = &clockTime{hour: daypartHours["tonight"]}
				}
			}
			setDate(d, tok.kind)
		case kindWeekday:
			if date == nil {
				setDate(weekdayDate(ref, weekdays[tok.groups[2]], tok.groups[1] == "next"), tok.kind)
			}
		case kindClock12, kindClock24, kindOClock, kindNamedClock:
			if clock == nil {
				if c, ok := clockOf(tok); ok {
					clock = &c
				}
			}
		case kindDaypart:
			if daypart == nil {
				daypart = &clockTime{hour: daypartHours[tok.groups[1]]}
			}
		}
	}

	if clock == nil && daypart != nil {
		clock = daypart
	}

	switch {
	case date != nil:
		c := clockTime{hour: r.hour, minute: r.minute}
		switch {
		case clock != nil:
			c = *clock
		case anchor != nil:
			a := anchor.In(loc)
			c = clockTime{hour: a.Hour(), minute: a.Minute()}
		}
		t := date.at(c, loc)
		// a weekday that already passed today means the same day next week
		if dateKind == kindWeekday && !t.After(ref) {
			t = date.addDays(7).at(c, loc)
		}
		return t, nil

	case clock != nil:
		if anchor != nil {
			return civilOf(anchor.In(loc)).at(*clock, loc), nil
		}
		today := civilOf(ref)
		t := today.at(*clock, loc)
		if !t.After(ref) {
			t = today.addDays(1).at(*clock, loc)
		}
		return t, nil
	}

	return time.Time{}, ErrUnresolved
}

func explicitKind(k tokenKind) bool {
	return k == kindISODate || k == kindMonthDay || k == kindDayMonth || k == kindNumericDate
}

// Find returns the byte spans of every temporal expression in text
func (r *Resolver) Find(text string) []models.Span {
	tokens := scan(text)
	spans := make([]models.Span, 0, len(tokens))
	for _, tok := range tokens {
		spans = append(spans, models.Span{Start: tok.start, End: tok.end})
	}
	return spans
}

func scan(text string) []token {
	lower := asciiLower(text)

	var all []token
	for _, m := range matchers {
		for _, idx := range m.re.FindAllStringSubmatchIndex(lower, -1) {
			groups := make([]string, len(idx)/2)
			for g := range groups {
				if idx[2*g] >= 0 {
					groups[g] = lower[idx[2*g]:idx[2*g+1]]
				}
			}
			all = append(all, token{kind: m.kind, start: idx[0], end: idx[1], groups: groups})
		}
	}

	// longest match wins where expressions overlap
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end-all[i].start > all[j].end-all[j].start
	})

	var out []token
	lastEnd := -1
	for _, tok := range all {
		if tok.start < lastEnd {
			continue
		}
		out = append(out, tok)
		lastEnd = tok.end
	}
	return out
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// offsetAmount returns minutes for clock offsets and days for calendar offsets
func offsetAmount(amount, unit string) (minutes, days int) {
	if strings.HasPrefix(amount, "half") {
		return 30, 0
	}
	n, ok := numberWords[amount]
	if !ok {
		n, _ = strconv.Atoi(amount)
	}

	switch strings.TrimSuffix(unit, "s") {
	case "minute", "min":
		return n, 0
	case "hour", "hr":
		return n * 60, 0
	case "day":
		return 0, n
	case "week":
		return 0, 7 * n
	}
	return 0, 0
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func civilOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

func (d civilDate) addDays(n int) civilDate {
	return civilOf(time.Date(d.year, d.month, d.day+n, 12, 0, 0, 0, time.UTC))
}

func (d civilDate) at(c clockTime, loc *time.Location) time.Time {
	return time.Date(d.year, d.month, d.day, c.hour, c.minute, 0, 0, loc)
}

func (d civilDate) before(o civilDate) bool {
	if d.year != o.year {
		return d.year < o.year
	}
	if d.month != o.month {
		return d.month < o.month
	}
	return d.day < o.day
}

func validDate(y int, m time.Month, d int) bool {
	if m < time.January || m > time.December || d < 1 {
		return false
	}
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return t.Day() == d && t.Month() == m
}

type clockTime struct {
	hour   int
	minute int
}

func explicitDate(tok token, ref time.Time) (civilDate, *clockTime, bool) {
	var (
		y, d      int
		m         time.Month
		yearGiven bool
		clock     *clockTime
	)
	g := tok.groups

	switch tok.kind {
	case kindISODate:
		y, _ = strconv.Atoi(g[1])
		mi, _ := strconv.Atoi(g[2])
		m = time.Month(mi)
		d, _ = strconv.Atoi(g[3])
		yearGiven = true
		if g[4] != "" {
			h, _ := strconv.Atoi(g[4])
			min, _ := strconv.Atoi(g[5])
			if h > 23 || min > 59 {
				return civilDate{}, nil, false
			}
			clock = &clockTime{hour: h, minute: min}
		}
	case kindMonthDay:
		m = monthNumbers[g[1][:3]]
		d, _ = strconv.Atoi(g[2])
		if g[3] != "" {
			y, _ = strconv.Atoi(g[3])
			yearGiven = true
		}
	case kindDayMonth:
		d, _ = strconv.Atoi(g[1])
		m = monthNumbers[g[2][:3]]
		if g[3] != "" {
			y, _ = strconv.Atoi(g[3])
			yearGiven = true
		}
	case kindNumericDate:
		mi, _ := strconv.Atoi(g[1])
		m = time.Month(mi)
		d, _ = strconv.Atoi(g[2])
		if g[3] != "" {
			y, _ = strconv.Atoi(g[3])
			if y < 100 {
				y += 2000
			}
			yearGiven = true
		}
	}

	if !yearGiven {
		y = ref.Year()
	}
	if !validDate(y, m, d) {
		return civilDate{}, nil, false
	}

	date := civilDate{year: y, month: m, day: d}
	if !yearGiven && date.before(civilOf(ref)) {
		date.year++
		if !validDate(date.year, date.month, date.day) {
			return civilDate{}, nil, false
		}
	}
	return date, clock, true
}

// weekdayDate picks the first matching weekday on or after ref's date, or
// strictly after it when next is set.
func weekdayDate(ref time.Time, wd time.Weekday, next bool) civilDate {
	ahead := (int(wd) - int(ref.Weekday()) + 7) % 7
	if next && ahead == 0 {
		ahead = 7
	}
	return civilOf(ref).addDays(ahead)
}

func clockOf(tok token) (clockTime, bool) {
	g := tok.groups
	switch tok.kind {
	case kindClock12:
		h, _ := strconv.Atoi(g[1])
		min := 0
		if g[2] != "" {
			min, _ = strconv.Atoi(g[2])
		}
		if h < 1 || h > 12 || min > 59 {
			return clockTime{}, false
		}
		meridiem := g[3]
		if meridiem == "" {
			meridiem = strings.ReplaceAll(g[4], ".", "")
		}
		if meridiem == "pm" && h != 12 {
			h += 12
		}
		if meridiem == "am" && h == 12 {
			h = 0
		}
		return clockTime{hour: h, minute: min}, true
	case kindClock24:
		h, _ := strconv.Atoi(g[1])
		min, _ := strconv.Atoi(g[2])
		return clockTime{hour: h, minute: min}, true
	case kindOClock:
		h, _ := strconv.Atoi(g[1])
		if h < 1 || h > 12 {
			return clockTime{}, false
		}
		// "3 o'clock" reads as business hours, so 1 to 7 are afternoon
		if h < 8 {
			h += 12
		}
		return clockTime{hour: h}, true
	case kindNamedClock:
		if g[1] == "midnight" {
			return clockTime{}, true
		}
		return clockTime{hour: 12}, true
	}
	return clockTime{}, false
}
