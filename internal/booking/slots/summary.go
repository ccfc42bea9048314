package slots

import (
	"fmt"
	"strings"
	"time"

	"booking-assistant/internal/models"
)

const summaryTimeLayout = "Monday, January 2, 2006 at 3:04 PM MST"

// Summary renders the collected slots for the confirmation question. The
// time is shown in the booking's own timezone, falling back to loc.
func Summary(b models.BookingSlots, loc *time.Location) string {
	var lines []string
	lines = append(lines, "Here are your booking details:")
	lines = append(lines, fmt.Sprintf("- Name: %s", orDash(b.Name)))
	lines = append(lines, fmt.Sprintf("- Phone: %s", orDash(b.Phone)))
	lines = append(lines, fmt.Sprintf("- Email: %s", orDash(b.Email)))

	when := "-"
	if b.When != nil {
		when = b.When.In(displayLocation(b, loc)).Format(summaryTimeLayout)
	}
	lines = append(lines, fmt.Sprintf("- Time: %s", when))
	return strings.Join(lines, "\n")
}

func displayLocation(b models.BookingSlots, fallback *time.Location) *time.Location {
	if b.Timezone != "" {
		if loc, err := time.LoadLocation(b.Timezone); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	if b.When != nil {
		return b.When.Location()
	}
	return time.UTC
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
