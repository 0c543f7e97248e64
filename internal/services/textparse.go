package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TextParser extracts dates and times from free text
type TextParser interface {
	// ParseDate resolves text to a calendar day (midnight in reference's location)
	ParseDate(text string, reference time.Time) (time.Time, error)
	// ParseTime resolves text to "HH:MM" or "HH:MM-HH:MM"
	ParseTime(text string) (string, bool)
}

var (
	ErrNoDate      = errors.New("no date in text")
	ErrInvalidDate = errors.New("not a calendar date")
)

var (
	datePattern     = regexp.MustCompile(`(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?`)
	timePattern     = regexp.MustCompile(`(\d{1,2}):(\d{2})(?:\s*-\s*(\d{1,2}):(\d{2}))?`)
	dashTimePattern = regexp.MustCompile(`(?i)(?:^|[\s,.;:!?(])(?:виїзд|о|в)\s+(\d{1,2})-(\d{2})`)
	phoneShape      = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

// DefaultTextParser understands the formats people use in the chats
type DefaultTextParser struct{}

func (DefaultTextParser) ParseDate(text string, reference time.Time) (time.Time, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	today := StartOfDay(reference, reference.Location())

	switch {
	case strings.Contains(lower, "післязавтра"):
		return today.AddDate(0, 0, 2), nil
	case strings.Contains(lower, "завтра") || strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1), nil
	case strings.Contains(lower, "сьогодні") || strings.Contains(lower, "today"):
		return today, nil
	}

	m := datePattern.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, ErrNoDate
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := reference.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	d, ok := calendarDay(year, month, day, reference.Location())
	if !ok {
		return time.Time{}, ErrInvalidDate
	}
	// Without a year a day already behind us means next year (15.01 typed in December)
	if m[3] == "" && d.Before(today) {
		if next, ok := calendarDay(year+1, month, day, reference.Location()); ok {
			return next, nil
		}
	}
	return d, nil
}

// calendarDay rejects dates time.Date would normalize (31.02 -> 03.03)
func calendarDay(year, month, day int, loc *time.Location) (time.Time, bool) {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func (DefaultTextParser) ParseTime(text string) (string, bool) {
	if m := timePattern.FindStringSubmatch(text); m != nil {
		start, ok := clockString(m[1], m[2])
		if !ok {
			return "", false
		}
		if m[3] == "" {
			return start, true
		}
		end, ok := clockString(m[3], m[4])
		if !ok {
			return "", false
		}
		return start + "-" + end, true
	}

	if m := dashTimePattern.FindStringSubmatch(text); m != nil {
		return clockString(m[1], m[2])
	}
	return "", false
}

func clockString(hour, minute string) (string, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h > 23 {
		return "", false
	}
	mi, err := strconv.Atoi(minute)
	if err != nil || mi > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, mi), true
}

// StartOfDay returns midnight of t's calendar day in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// IsValidPhone accepts anything that looks like a phone number: an optional +,
// digits, spaces, dashes and parentheses, with 10 to 13 digits in total.
func IsValidPhone(s string) bool {
	s = strings.TrimSpace(s)
	if !phoneShape.MatchString(s) {
		return false
	}
	n := len(digitsOnly(s))
	return n >= 10 && n <= 13
}

// NormalizePhone keeps digits only and turns the local 0XXXXXXXXX form into 380XXXXXXXXX
func NormalizePhone(s string) string {
	d := digitsOnly(s)
	if len(d) == 10 && strings.HasPrefix(d, "0") {
		return "38" + d
	}
	return d
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
