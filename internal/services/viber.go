package services

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// Viber desktop copies messages as
//
//	[ 9 лютого 2026 р. 12:55 ] ⁨Ім'я⁩: текст
//
// where the sender name sits between U+2068 and U+2069 isolate marks.

var (
	ErrNoRoute = errors.New("no known route in message")
	ErrNoPhone = errors.New("no phone number in message")
)

const minViberMessageLength = 10

var (
	viberSenderPattern = regexp.MustCompile(`\]\s*\x{2068}([^\x{2069}]+)\x{2069}:`)
	viberBodyPattern   = regexp.MustCompile(`(?s)\]\s*\x{2068}[^\x{2069}]+\x{2069}:\s*(.+)`)
	viberDatePattern   = regexp.MustCompile(`(?i)\[\s*(\d{1,2})\s+(\p{L}+)\s+(\d{4})\s+р\.`)

	viberRoutes = []struct {
		route   string
		pattern *regexp.Regexp
	}{
		{"Kyiv-Malyn", regexp.MustCompile(`ки[їєи][вї][а-яіїє]*.*малин|киев.*малин|академ.*малин`)},
		{"Malyn-Kyiv", regexp.MustCompile(`малин.*ки[їєи][вї]|малин.*киев|малин.*академ`)},
		{"Malyn-Zhytomyr", regexp.MustCompile(`малин.*житомир`)},
		{"Zhytomyr-Malyn", regexp.MustCompile(`житомир.*малин`)},
	}

	viberPhonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?380\s?(\d{2})\s?(\d{3})\s?(\d{2})\s?(\d{2})`),
		regexp.MustCompile(`0(\d{2})\s?(\d{3})\s?(\d{2})\s?(\d{2})`),
		regexp.MustCompile(`0(\d{9})`),
	}

	viberSeatsPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:пасажир|особ|місц)`)
	viberNotePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)від\s+м\s+[\p{L}\d_]+`),
		regexp.MustCompile(`(?i)біля\s+[\p{L}\d_]+`),
		regexp.MustCompile(`(?i)є\s+місця`),
	}
)

var ukrainianMonths = map[string]time.Month{
	"січня": time.January, "лютого": time.February, "березня": time.March,
	"квітня": time.April, "травня": time.May, "червня": time.June,
	"липня": time.July, "серпня": time.August, "вересня": time.September,
	"жовтня": time.October, "листопада": time.November, "грудня": time.December,
}

// ViberMessage is one listing recovered from a copied chat message
type ViberMessage struct {
	Raw        string
	SenderName *string
	Sent       *time.Time // day from the message header
	Fields     models.ListingFields
}

// SplitViberExport splits a copied chat into messages. A message starts on a
// line opening with "["; fragments too short to carry a listing are dropped.
func SplitViberExport(export string) []string {
	var (
		out     []string
		current []string
	)
	flush := func() {
		msg := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if utf8.RuneCountInString(msg) >= minViberMessageLength {
			out = append(out, msg)
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(export, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(line, "[") && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		flush()
	}
	return out
}

// ViberParser turns copied Viber messages into listing fields
type ViberParser struct {
	Text     TextParser
	Location *time.Location
	Now      func() time.Time
}

// Parse extracts one listing from raw. Messages without a known route or a
// phone number are rejected with ErrNoRoute or ErrNoPhone.
func (p ViberParser) Parse(raw string) (*ViberMessage, error) {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	text := p.Text
	if text == nil {
		text = DefaultTextParser{}
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	msg := &ViberMessage{Raw: raw}
	if m := viberSenderPattern.FindStringSubmatch(raw); m != nil {
		name := strings.TrimSpace(m[1])
		msg.SenderName = &name
	}
	msg.Sent = viberMessageDate(raw, loc)

	body := strings.TrimSpace(raw)
	if m := viberBodyPattern.FindStringSubmatch(raw); m != nil {
		body = strings.TrimSpace(m[1])
	}

	route := extractViberRoute(body)
	if route == "" {
		return nil, ErrNoRoute
	}
	phone := extractViberPhone(body)
	if phone == "" {
		return nil, ErrNoPhone
	}

	reference := now().In(loc)
	if msg.Sent != nil {
		reference = *msg.Sent
	}
	day := StartOfDay(reference, loc)
	if parsed, err := text.ParseDate(body, reference); err == nil {
		day = StartOfDay(parsed, loc)
	}

	listingType := extractViberListingType(body)
	fields := models.ListingFields{
		ListingType: listingType,
		Route:       route,
		Date:        day,
		Phone:       phone,
		SenderName:  msg.SenderName,
		Source:      models.ListingSourceViber,
		RawMessage:  &msg.Raw,
	}
	if t, ok := text.ParseTime(body); ok {
		fields.DepartureTime = &t
	}
	if listingType == models.ListingTypeDriver {
		fields.Seats = extractViberSeats(body)
	}
	if notes := extractViberNotes(body); notes != "" {
		fields.Notes = &notes
	}
	msg.Fields = fields
	return msg, nil
}

func viberMessageDate(raw string, loc *time.Location) *time.Time {
	m := viberDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	month, ok := ukrainianMonths[strings.ToLower(m[2])]
	if !ok {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	d, ok := calendarDay(year, int(month), day, loc)
	if !ok {
		return nil
	}
	return &d
}

func extractViberRoute(body string) string {
	lower := strings.ToLower(body)
	for _, r := range viberRoutes {
		if r.pattern.MatchString(lower) {
			return r.route
		}
	}
	return ""
}

func extractViberPhone(body string) string {
	for _, p := range viberPhonePatterns {
		if m := p.FindString(body); m != "" {
			return NormalizePhone(m)
		}
	}
	return ""
}

func extractViberListingType(body string) models.ListingType {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "водій"):
		return models.ListingTypeDriver
	case strings.Contains(lower, "пасажир"):
		return models.ListingTypePassenger
	}
	// drivers post far more often
	return models.ListingTypeDriver
}

func extractViberSeats(body string) *int {
	m := viberSeatsPattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > MaxSeats {
		return nil
	}
	return &n
}

func extractViberNotes(body string) string {
	var notes []string
	for _, p := range viberNotePatterns {
		if m := p.FindString(body); m != "" {
			notes = append(notes, m)
		}
	}
	return strings.Join(notes, "; ")
}
