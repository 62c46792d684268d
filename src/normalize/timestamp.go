package normalize

import (
	"strings"
	"time"
)

// baseDate anchors timestamps that carry only a time of day.
var baseDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Accepted layouts, tried in order. Month-first dates are preferred; a date
// that cannot be month-first (first field > 12) is retried day-first.
var (
	clockLayouts = []string{
		"15:04",
		"15:04:05",
		"3:04 PM",
		"3:04:05 PM",
	}

	dateLayouts = []string{
		"1/2/06",
		"1/2/2006",
		"2/1/06",
		"2/1/2006",
		"2006-01-02",
		"2006/01/02",
		"02.01.2006",
		"02.01.06",
	}

	fullLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
)

// parseClock parses a time of day and returns its offset from midnight.
func parseClock(s string) (time.Duration, bool) {
	s = normalizeMeridiem(s)
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDateClock combines a date field and a clock field.
func parseDateClock(date, clock string) (time.Time, bool) {
	d, ok := parseDate(date)
	if !ok {
		return time.Time{}, false
	}
	c, ok := parseClock(clock)
	if !ok {
		return time.Time{}, false
	}
	return d.Add(c), true
}

// parseAny accepts any full timestamp, a "date, clock" pair or a bare clock.
// timeOnly is set when no date was present.
func parseAny(s string) (t time.Time, timeOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	for _, layout := range fullLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), false, true
		}
	}
	if i := strings.IndexAny(s, ", "); i > 0 {
		date, clock := s[:i], strings.TrimLeft(s[i:], ", ")
		if t, ok := parseDateClock(date, clock); ok {
			return t, false, true
		}
	}
	if c, ok := parseClock(s); ok {
		return baseDate.Add(c), true, true
	}
	return time.Time{}, false, false
}

// normalizeMeridiem turns "9:05pm", "9:05 p.m." and "9:05 PM" into "9:05 PM".
func normalizeMeridiem(s string) string {
	s = strings.TrimSpace(s)
	u := strings.ToUpper(strings.ReplaceAll(s, ".", ""))
	for _, m := range []string{"AM", "PM"} {
		if strings.HasSuffix(u, m) {
			return strings.TrimSpace(u[:len(u)-2]) + " " + m
		}
	}
	return s
}

// maxReorder is the largest backwards step in a time-only export that is
// still read as an out-of-order line on the same day. Anything larger starts
// a new day.
const maxReorder = time.Hour

// clock tracks the date used for time-only timestamps.
type clock struct {
	day     time.Time
	lastTOD time.Duration
	started bool
}

func newClock() *clock {
	return &clock{day: baseDate}
}

// anchor places a time-of-day on the current day.
func (c *clock) anchor(tod time.Duration) time.Time {
	if c.started && c.lastTOD-tod > maxReorder {
		c.day = c.day.AddDate(0, 0, 1)
	}
	c.lastTOD = tod
	c.started = true
	return c.day.Add(tod)
}

// observe records a dated timestamp so later time-only lines land on its day.
func (c *clock) observe(t time.Time) {
	y, m, d := t.Date()
	c.day = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	c.lastTOD = t.Sub(c.day)
	c.started = true
}
