package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	now := time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC) // Friday

	tests := []struct {
		token     Token
		wantStart string
		wantEnd   string
	}{
		{token: Today, wantStart: "2024-03-15", wantEnd: "2024-03-15"},
		{token: Week, wantStart: "2024-03-11", wantEnd: "2024-03-17"},
		{token: Month, wantStart: "2024-03-01", wantEnd: "2024-03-31"},
		{token: ThreeMonths, wantStart: "2023-12-01", wantEnd: "2024-03-31"},
		{token: SixMonths, wantStart: "2023-09-01", wantEnd: "2024-03-31"},
		{token: Year, wantStart: "2023-01-01", wantEnd: "2024-03-31"},
		{token: All, wantStart: "", wantEnd: ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.token), func(t *testing.T) {
			p, err := Resolve(tt.token, now, Range{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, p.StartDate())
			assert.Equal(t, tt.wantEnd, p.EndDate())
		})
	}
}

func TestResolveBoundsAreWholeDays(t *testing.T) {
	now := time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)
	p, err := Resolve(Today, now, Range{})
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 15), *p.Start)
	assert.Equal(t, date(2024, 3, 16).Add(-time.Nanosecond), *p.End)
	assert.True(t, p.Contains(time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Contains(date(2024, 3, 16)))
}

func TestResolveWeekStartsOnMonday(t *testing.T) {
	sunday := time.Date(2024, time.March, 17, 10, 0, 0, 0, time.UTC)
	p, err := Resolve(Week, sunday, Range{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", p.StartDate())
	assert.Equal(t, "2024-03-17", p.EndDate())

	monday := time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC)
	p, err = Resolve(Week, monday, Range{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-18", p.StartDate())
}

func TestResolveMonthsBackAtMonthEnd(t *testing.T) {
	// May 31 minus three months must land in February, not March.
	now := time.Date(2024, time.May, 31, 12, 0, 0, 0, time.UTC)
	p, err := Resolve(ThreeMonths, now, Range{})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", p.StartDate())
	assert.Equal(t, "2024-05-31", p.EndDate())
}

func TestResolveUsesNowLocation(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*60*60)
	// 2024-03-31 21:00 UTC is already April 1st in Tashkent.
	now := time.Date(2024, time.March, 31, 21, 0, 0, 0, time.UTC).In(tashkent)
	p, err := Resolve(Month, now, Range{})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", p.StartDate())
	assert.Equal(t, "2024-04-30", p.EndDate())
}

func TestResolveCustom(t *testing.T) {
	start, end := date(2024, 2, 10), date(2024, 2, 20)

	p, err := Resolve(Custom, time.Now(), Range{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-10", p.StartDate())
	assert.Equal(t, "2024-02-20", p.EndDate())

	p, err = Resolve(Custom, time.Now(), Range{Start: &start})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-10", p.StartDate())
	assert.Nil(t, p.End)

	p, err = Resolve(Custom, time.Now(), Range{})
	require.NoError(t, err)
	assert.True(t, p.Unbounded())

	_, err = Resolve(Custom, time.Now(), Range{Start: &end, End: &start})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "startDate", verr.Field)
}

func TestParseToken(t *testing.T) {
	tok, err := ParseToken("")
	require.NoError(t, err)
	assert.Equal(t, Month, tok)

	tok, err = ParseToken("6months")
	require.NoError(t, err)
	assert.Equal(t, SixMonths, tok)

	_, err = ParseToken("fortnight")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = Resolve(Token("decade"), time.Now(), Range{})
	assert.True(t, errors.As(err, &verr))
}

func TestPrevious(t *testing.T) {
	now := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	p, err := Resolve(Month, now, Range{})
	require.NoError(t, err)

	prev, err := Previous(p)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-30", prev.StartDate())
	assert.Equal(t, "2024-02-29", prev.EndDate())

	week, err := Resolve(Week, now, Range{})
	require.NoError(t, err)
	prev, err = Previous(week)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", prev.StartDate())
	assert.Equal(t, "2024-03-10", prev.EndDate())

	all, err := Resolve(All, now, Range{})
	require.NoError(t, err)
	_, err = Previous(all)
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-15", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 15), got)

	_, err = ParseDate("15.03.2024", time.UTC)
	assert.Error(t, err)
}
