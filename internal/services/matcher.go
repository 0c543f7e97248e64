package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
	"github.com/Ananth-NQI/poputky-backend/internal/observability"
)

// ListingFinder queries active listings for matching
type ListingFinder interface {
	QueryActiveListings(ctx context.Context, listingType models.ListingType, route string, from, to time.Time) ([]*models.RideListing, error)
}

// MatchTier classifies a candidate
type MatchTier string

const (
	TierExact       MatchTier = "exact"
	TierApproximate MatchTier = "approximate"
)

// MatchResult holds the candidates for a new listing, each tier most recent first
type MatchResult struct {
	Exact       []*models.RideListing
	Approximate []*models.RideListing
}

// Empty reports whether no candidates were found
func (r MatchResult) Empty() bool {
	return len(r.Exact) == 0 && len(r.Approximate) == 0
}

// Total returns the number of candidates across tiers
func (r MatchResult) Total() int {
	return len(r.Exact) + len(r.Approximate)
}

var clockToken = regexp.MustCompile(`(\d{1,2}):(\d{2})`)

// NormalizeTime reduces a departure time to a zero-padded "HH:MM". Only the text
// before the first '-' or whitespace is considered, so "09:00 - 10:00" becomes
// "09:00". ok is false for nil, empty or unparseable input.
func NormalizeTime(raw *string) (string, bool) {
	if raw == nil {
		return "", false
	}
	s := strings.TrimSpace(*raw)
	if i := strings.IndexFunc(s, func(r rune) bool { return r == '-' || unicode.IsSpace(r) }); i >= 0 {
		s = s[:i]
	}
	m := clockToken.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2], true
}

// IsExactMatch reports whether two departure times normalize to the same clock time
func IsExactMatch(a, b *string) bool {
	na, ok := NormalizeTime(a)
	if !ok {
		return false
	}
	nb, ok := NormalizeTime(b)
	return ok && na == nb
}

// Matcher finds opposite-role listings for the same route and day
type Matcher struct {
	listings ListingFinder
	loc      *time.Location
}

// NewMatcher creates a matcher; day boundaries are computed in loc
func NewMatcher(listings ListingFinder, loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.Local
	}
	return &Matcher{listings: listings, loc: loc}
}

// Match returns the candidates for listing. It never mutates listings.
func (m *Matcher) Match(ctx context.Context, listing *models.RideListing) (MatchResult, error) {
	started := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(started).Seconds()) }()

	from := StartOfDay(listing.Date, m.loc)
	to := from.AddDate(0, 0, 1)
	want := listing.ListingType.Opposite()

	found, err := m.listings.QueryActiveListings(ctx, want, listing.Route, from, to)
	if err != nil {
		return MatchResult{}, fmt.Errorf("query %s listings for %s: %w", want, listing.Route, err)
	}

	// The store already filters; keep the rules here so any Store honors them.
	candidates := make([]*models.RideListing, 0, len(found))
	for _, c := range found {
		if c.ID == listing.ID || !c.IsActive || c.ListingType != want || c.Route != listing.Route {
			continue
		}
		if c.Date.Before(from) || !c.Date.Before(to) {
			continue
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID > candidates[j].ID
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	var result MatchResult
	for _, c := range candidates {
		if IsExactMatch(listing.DepartureTime, c.DepartureTime) {
			result.Exact = append(result.Exact, c)
		} else {
			result.Approximate = append(result.Approximate, c)
		}
	}

	observability.MatchesFound.WithLabelValues(string(TierExact)).Add(float64(len(result.Exact)))
	observability.MatchesFound.WithLabelValues(string(TierApproximate)).Add(float64(len(result.Approximate)))
	return result, nil
}
