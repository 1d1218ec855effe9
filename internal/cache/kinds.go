package cache

import "fmt"

// Kind is a resource type that cached reads depend on.
type Kind string

const (
	KindDashboard  Kind = "dashboard"
	KindCategory   Kind = "category"
	KindClub       Kind = "club"
	KindStudent    Kind = "student"
	KindAttendance Kind = "attendance"
	KindFaculty    Kind = "faculty"
	KindGroup      Kind = "group"
	KindEnrollment Kind = "enrollment"
	KindReport     Kind = "report"
	KindProfile    Kind = "profile"
)

// Kinds lists every resource kind.
var Kinds = []Kind{
	KindDashboard, KindCategory, KindClub, KindStudent, KindAttendance,
	KindFaculty, KindGroup, KindEnrollment, KindReport, KindProfile,
}

// ParseKind validates a kind name received from the queue or the CLI.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Mutation names a write operation against the clubs API.
type Mutation string

const (
	CategoryCreate    Mutation = "category.create"
	CategoryUpdate    Mutation = "category.update"
	CategoryDelete    Mutation = "category.delete"
	EnrollmentProcess Mutation = "enrollment.process"
	HemisSync         Mutation = "hemis.sync"
)

var affects = map[Mutation][]Kind{
	CategoryCreate:    {KindCategory, KindDashboard},
	CategoryUpdate:    {KindCategory, KindClub},
	CategoryDelete:    {KindCategory, KindDashboard},
	EnrollmentProcess: {KindEnrollment, KindStudent, KindClub, KindDashboard},
	HemisSync:         {KindStudent, KindDashboard, KindFaculty, KindGroup},
}

// Affects returns the kinds a mutation makes stale.
func Affects(m Mutation) []Kind {
	out := make([]Kind, len(affects[m]))
	copy(out, affects[m])
	return out
}
