package stats

import (
	"time"

	"clubadmin/internal/model"
)

// Token names a reporting period.
type Token string

const (
	Today       Token = "today"
	Week        Token = "week"
	Month       Token = "month"
	ThreeMonths Token = "3months"
	SixMonths   Token = "6months"
	Year        Token = "year"
	All         Token = "all"
	Custom      Token = "custom"
)

// Tokens lists the selectable periods in display order.
var Tokens = []Token{Today, Week, Month, ThreeMonths, SixMonths, Year, All, Custom}

// ParseToken validates a period name. An empty name means Month.
func ParseToken(s string) (Token, error) {
	if s == "" {
		return Month, nil
	}
	for _, t := range Tokens {
		if string(t) == s {
			return t, nil
		}
	}
	return "", invalid("period", "unknown period %q", s)
}

// Range holds caller supplied bounds for a custom period.
type Range struct {
	Start *time.Time
	End   *time.Time
}

// Period is a resolved date window. Nil bounds mean unbounded.
type Period struct {
	Token Token
	Start *time.Time
	End   *time.Time
}

// Unbounded reports whether the period applies no date filter at all.
func (p Period) Unbounded() bool { return p.Start == nil && p.End == nil }

// StartDate returns the start as YYYY-MM-DD, or "" when unbounded.
func (p Period) StartDate() string { return formatBound(p.Start) }

// EndDate returns the end as YYYY-MM-DD, or "" when unbounded.
func (p Period) EndDate() string { return formatBound(p.End) }

// Location is the zone the bounds were resolved in.
func (p Period) Location() *time.Location {
	switch {
	case p.Start != nil:
		return p.Start.Location()
	case p.End != nil:
		return p.End.Location()
	}
	return time.UTC
}

// Contains reports whether t falls inside the bounds. End bounds are the
// last instant of their day.
func (p Period) Contains(t time.Time) bool {
	if p.Start != nil && t.Before(*p.Start) {
		return false
	}
	if p.End != nil && t.After(*p.End) {
		return false
	}
	return true
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(model.DateLayout)
}

// Resolve maps a period token to concrete bounds relative to now, in now's
// location. Weeks start on Monday. The year period starts on January 1st
// of the previous year but ends with the current month.
func Resolve(token Token, now time.Time, custom Range) (Period, error) {
	p := Period{Token: token}
	var start, end time.Time
	switch token {
	case Today:
		start, end = startOfDay(now), endOfDay(now)
	case Week:
		offset := (int(now.Weekday()) + 6) % 7
		start = startOfDay(now).AddDate(0, 0, -offset)
		end = endOfDay(start.AddDate(0, 0, 6))
	case Month:
		start, end = startOfMonth(now), endOfMonth(now)
	case ThreeMonths:
		start, end = startOfMonth(now).AddDate(0, -3, 0), endOfMonth(now)
	case SixMonths:
		start, end = startOfMonth(now).AddDate(0, -6, 0), endOfMonth(now)
	case Year:
		start = time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, now.Location())
		end = endOfMonth(now)
	case All:
		return p, nil
	case Custom:
		if custom.Start != nil {
			s := startOfDay(*custom.Start)
			p.Start = &s
		}
		if custom.End != nil {
			e := endOfDay(*custom.End)
			p.End = &e
		}
		if p.Start != nil && p.End != nil && p.Start.After(*p.End) {
			return Period{}, invalid("startDate", "start %s is after end %s", p.StartDate(), p.EndDate())
		}
		return p, nil
	default:
		return Period{}, invalid("period", "unknown period %q", token)
	}
	p.Start, p.End = &start, &end
	return p, nil
}

// Previous returns the window of equal length that ends the day before p
// starts. It is used for period-over-period comparison.
func Previous(p Period) (Period, error) {
	if p.Start == nil || p.End == nil {
		return Period{}, invalid("period", "%q has no finite bounds to compare against", p.Token)
	}
	days := daysBetween(*p.Start, *p.End) + 1
	end := endOfDay(p.Start.AddDate(0, 0, -1))
	start := startOfDay(p.Start.AddDate(0, 0, -days))
	return Period{Token: Custom, Start: &start, End: &end}, nil
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, invalid("date", "%q is not a YYYY-MM-DD date", s)
	}
	return t, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
