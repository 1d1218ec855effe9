package stats

import "clubadmin/internal/model"

// ApprovedCount counts a student's approved club enrollments.
func ApprovedCount(s model.Student) int {
	n := 0
	for _, e := range s.EnrolledClubs {
		if e.Status == model.StatusApproved {
			n++
		}
	}
	return n
}

// IsBusy reports whether the student holds at least one approved club
// enrollment or at least one external course.
func IsBusy(s model.Student) bool {
	return ApprovedCount(s) > 0 || len(s.ExternalCourses) > 0
}

// BusyCount counts busy students, each at most once.
func BusyCount(students []model.Student) int {
	n := 0
	for _, s := range students {
		if IsBusy(s) {
			n++
		}
	}
	return n
}

func NotBusyCount(students []model.Student) int {
	return len(students) - BusyCount(students)
}

// FilterBusy keeps the students whose busy-ness equals busy.
func FilterBusy(students []model.Student, busy bool) []model.Student {
	out := make([]model.Student, 0, len(students))
	for _, s := range students {
		if IsBusy(s) == busy {
			out = append(out, s)
		}
	}
	return out
}

// BusySummary is the busy/not-busy split of a student population.
type BusySummary struct {
	Total             int     `json:"totalStudents"`
	Busy              int     `json:"busyStudents"`
	NotBusy           int     `json:"notBusyStudents"`
	BusyPercentage    float64 `json:"busyPercentage"`
	NotBusyPercentage float64 `json:"notBusyPercentage"`
}

func SummarizeBusy(students []model.Student) BusySummary {
	busy := BusyCount(students)
	total := len(students)
	return BusySummary{
		Total:             total,
		Busy:              busy,
		NotBusy:           total - busy,
		BusyPercentage:    Percentage(busy, total),
		NotBusyPercentage: Percentage(total-busy, total),
	}
}

// FacultyBreakdown is one bar of the per-faculty report chart.
type FacultyBreakdown struct {
	FacultyID string `json:"facultyId"`
	Name      string `json:"name"`
	Students  int    `json:"students"`
	Busy      int    `json:"busy"`
	Clubs     int    `json:"clubs"`
}

// ByFaculty groups students (by department) and clubs per faculty, in the
// order faculties are given.
func ByFaculty(faculties []model.Faculty, students []model.Student, clubs []model.Club) []FacultyBreakdown {
	out := make([]FacultyBreakdown, len(faculties))
	index := make(map[string]int, len(faculties))
	for i, f := range faculties {
		out[i] = FacultyBreakdown{FacultyID: f.ID.String(), Name: f.Name}
		index[f.ID.String()] = i
	}
	for _, s := range students {
		i, ok := index[s.Department.ID]
		if !ok {
			continue
		}
		out[i].Students++
		if IsBusy(s) {
			out[i].Busy++
		}
	}
	for _, c := range clubs {
		if i, ok := index[c.Faculty.ID]; ok {
			out[i].Clubs++
		}
	}
	return out
}
