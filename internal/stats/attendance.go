package stats

import (
	"math"
	"time"

	"clubadmin/internal/model"
)

// SessionStats summarizes the marks of one attendance session.
type SessionStats struct {
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// Round1 rounds to one decimal place. Every percentage goes through it.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Percentage returns value/total*100 rounded to one decimal, or 0 for an
// empty total.
func Percentage(value, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(value) / float64(total) * 100)
}

// SessionSummary counts present and absent marks of a session.
func SessionSummary(s model.AttendanceSession) SessionStats {
	total := len(s.Students)
	present := 0
	for _, m := range s.Students {
		if m.Present {
			present++
		}
	}
	return SessionStats{
		Total:      total,
		Present:    present,
		Absent:     total - present,
		Percentage: Percentage(present, total),
	}
}

// PeriodAverage is the unweighted mean of per-session ratios, rounded once.
// A small session weighs as much as a large one; empty sessions count as 0.
func PeriodAverage(stats []SessionStats) float64 {
	sum := 0.0
	for _, s := range stats {
		if s.Total > 0 {
			sum += float64(s.Present) / float64(s.Total) * 100
		}
	}
	n := len(stats)
	if n == 0 {
		n = 1
	}
	return Round1(sum / float64(n))
}

// AverageAttendance summarizes every session and averages the results.
func AverageAttendance(sessions []model.AttendanceSession) float64 {
	stats := make([]SessionStats, 0, len(sessions))
	for _, s := range sessions {
		stats = append(stats, SessionSummary(s))
	}
	return PeriodAverage(stats)
}

// FilterSessions keeps the sessions dated inside p. Undated sessions only
// survive an unbounded period.
func FilterSessions(sessions []model.AttendanceSession, p Period) []model.AttendanceSession {
	if p.Unbounded() {
		return sessions
	}
	out := make([]model.AttendanceSession, 0, len(sessions))
	for _, s := range sessions {
		if s.Date.IsZero() {
			continue
		}
		if p.Contains(s.Date.At(p.Location())) {
			out = append(out, s)
		}
	}
	return out
}

// TrendPoint is one day of the attendance trend.
type TrendPoint struct {
	Date            string  `json:"date"`
	SessionsCount   int     `json:"sessionsCount"`
	TotalStudents   int     `json:"totalStudents"`
	PresentStudents int     `json:"presentStudents"`
	Percentage      float64 `json:"percentage"`
}

// Trend buckets sessions by calendar day in loc and returns one point per
// day from start to end inclusive. Days without sessions report zeros.
func Trend(sessions []model.AttendanceSession, start, end time.Time, loc *time.Location) ([]TrendPoint, error) {
	if loc == nil {
		loc = time.UTC
	}
	first, last := startOfDay(start.In(loc)), startOfDay(end.In(loc))
	if first.After(last) {
		return nil, invalid("startDate", "trend start %s is after end %s",
			first.Format(model.DateLayout), last.Format(model.DateLayout))
	}

	byDay := make(map[string]*TrendPoint)
	for _, s := range sessions {
		if s.Date.IsZero() {
			return nil, invalid("date", "attendance session %q has no date", s.ID)
		}
		key := s.Date.At(loc).Format(model.DateLayout)
		pt, ok := byDay[key]
		if !ok {
			pt = &TrendPoint{Date: key}
			byDay[key] = pt
		}
		st := SessionSummary(s)
		pt.SessionsCount++
		pt.TotalStudents += st.Total
		pt.PresentStudents += st.Present
	}

	var out []TrendPoint
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(model.DateLayout)
		pt := TrendPoint{Date: key}
		if got, ok := byDay[key]; ok {
			pt = *got
			pt.Percentage = Percentage(pt.PresentStudents, pt.TotalStudents)
		}
		out = append(out, pt)
	}
	return out, nil
}

// LastDays is the trend over the n days ending with now's day.
func LastDays(sessions []model.AttendanceSession, now time.Time, n int) ([]TrendPoint, error) {
	if n <= 0 {
		return nil, invalid("days", "must be positive, got %d", n)
	}
	return Trend(sessions, now.AddDate(0, 0, -(n-1)), now, now.Location())
}

// StudentRate is a student's attendance across a set of sessions.
type StudentRate struct {
	StudentID string  `json:"studentId"`
	Name      string  `json:"name"`
	Present   int     `json:"present"`
	Total     int     `json:"total"`
	Rate      float64 `json:"attendanceRate"`
}

// StudentRates computes per-student attendance in order of first
// appearance across sessions.
func StudentRates(sessions []model.AttendanceSession) []StudentRate {
	index := make(map[string]int)
	var out []StudentRate
	for _, s := range sessions {
		for _, m := range s.Students {
			id := m.Student.ID
			if id == "" {
				continue
			}
			i, ok := index[id]
			if !ok {
				i = len(out)
				index[id] = i
				out = append(out, StudentRate{StudentID: id, Name: m.Student.Name})
			}
			if out[i].Name == "" {
				out[i].Name = m.Student.Name
			}
			out[i].Total++
			if m.Present {
				out[i].Present++
			}
		}
	}
	for i := range out {
		out[i].Rate = Percentage(out[i].Present, out[i].Total)
	}
	return out
}

// ClubRate is a club's average attendance across its sessions.
type ClubRate struct {
	ClubID   string  `json:"clubId"`
	Name     string  `json:"name"`
	Sessions int     `json:"sessions"`
	Rate     float64 `json:"attendanceRate"`
}

// ClubRates averages session percentages per club, in order of first
// appearance.
func ClubRates(sessions []model.AttendanceSession) []ClubRate {
	index := make(map[string]int)
	var out []ClubRate
	var perClub [][]SessionStats
	for _, s := range sessions {
		id := s.Club.ID
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, ClubRate{ClubID: id, Name: s.Club.Name})
			perClub = append(perClub, nil)
		}
		perClub[i] = append(perClub[i], SessionSummary(s))
	}
	for i := range out {
		out[i].Sessions = len(perClub[i])
		out[i].Rate = PeriodAverage(perClub[i])
	}
	return out
}

// Comparison is the change of a metric between two periods.
type Comparison struct {
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
	Delta     float64 `json:"delta"`
	Direction string  `json:"direction"`
}

// Compare reports the one-decimal delta and its direction.
func Compare(current, previous float64) Comparison {
	delta := Round1(current - previous)
	dir := "flat"
	switch {
	case delta > 0:
		dir = "up"
	case delta < 0:
		dir = "down"
	}
	return Comparison{Current: current, Previous: previous, Delta: delta, Direction: dir}
}
