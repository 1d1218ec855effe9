package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Enrollment statuses reported by the clubs API.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Ref is a reference to another record. The API sends either the bare id
// or the embedded object, depending on the endpoint.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] != '{' {
		*r = Ref{ID: rawID(data)}
		return nil
	}
	var raw struct {
		ID       json.RawMessage `json:"id"`
		MongoID  json.RawMessage `json:"_id"`
		Name     string          `json:"name"`
		FullName string          `json:"full_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode reference: %w", err)
	}
	id := rawID(raw.MongoID)
	if id == "" {
		id = rawID(raw.ID)
	}
	name := raw.Name
	if name == "" {
		name = raw.FullName
	}
	*r = Ref{ID: id, Name: name}
	return nil
}

// ID is a record identifier. Hemis-synced records carry numeric ids,
// the rest carry strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID(rawID(bytes.TrimSpace(data)))
	return nil
}

func (id ID) String() string { return string(id) }

// rawID accepts string and numeric ids.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Date is a session date. It decodes both YYYY-MM-DD and RFC 3339
// timestamps. A bare date has no zone of its own and is marked Wall.
type Date struct {
	time.Time
	Wall bool
}

const DateLayout = "2006-01-02"

// At returns the date as seen in loc. Wall dates keep their calendar day
// and start at midnight in loc; timestamps are converted.
func (d Date) At(loc *time.Location) time.Time {
	if !d.Wall {
		return d.Time.In(loc)
	}
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			*d = Date{}
			return nil
		}
		return fmt.Errorf("decode date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("decode date %q: %w", s, err)
	}
	*d = Date{Time: t, Wall: true}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if d.Wall {
		return json.Marshal(d.Format(DateLayout))
	}
	return json.Marshal(d.Time.Format(time.RFC3339Nano))
}

// EnrolledClub is one club membership of a student.
type EnrolledClub struct {
	Club   Ref    `json:"club"`
	Status string `json:"status"`
}

// ExternalCourse is opaque here; only its presence matters.
type ExternalCourse struct {
	ID         string `json:"_id,omitempty"`
	CourseName string `json:"courseName,omitempty"`
}

// Student as returned by /admin/students.
type Student struct {
	ID              ID               `json:"id"`
	FullName        string           `json:"full_name"`
	StudentIDNumber string           `json:"student_id_number"`
	Image           string           `json:"image,omitempty"`
	Department      Ref              `json:"department"`
	Group           Ref              `json:"group"`
	Level           Ref              `json:"level"`
	EnrolledClubs   []EnrolledClub   `json:"enrolledClubs"`
	ExternalCourses []ExternalCourse `json:"externalCourses"`
}

// Club as returned by /admin/clubs.
type Club struct {
	ID              string `json:"_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Faculty         Ref    `json:"faculty"`
	Category        Ref    `json:"category"`
	Tutor           Ref    `json:"tutor"`
	Capacity        *int   `json:"capacity,omitempty"`
	CurrentStudents int    `json:"currentStudents"`
	IsActive        bool   `json:"isActive"`
}

// StudentMark is one student's presence in an attendance session.
type StudentMark struct {
	Student Ref    `json:"student"`
	Present bool   `json:"present"`
	Reason  string `json:"reason,omitempty"`
}

// AttendanceSession is a single club meeting marked by a tutor.
type AttendanceSession struct {
	ID               string        `json:"_id"`
	Club             Ref           `json:"club"`
	Date             Date          `json:"date"`
	Students         []StudentMark `json:"students"`
	Notes            string        `json:"notes,omitempty"`
	TelegramPostLink string        `json:"telegramPostLink,omitempty"`
	MarkedBy         Ref           `json:"markedBy"`
}

// Category groups clubs; Color is one of the fixed palette entries.
type Category struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon,omitempty"`
	IsActive    bool   `json:"isActive"`
	ClubCount   int    `json:"clubCount"`
}

// CategoryInput is the body of category create/update calls.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

type Faculty struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type Group struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	FacultyID ID     `json:"facultyId,omitempty"`
}

// Administrator roles. Faculty admins only see their own faculty upstream.
const (
	RoleUniversityAdmin = "university_admin"
	RoleFacultyAdmin    = "faculty_admin"
)

// User is the logged in administrator.
type User struct {
	ID       ID      `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	Faculty  *Ref    `json:"faculty,omitempty"`
	Profile  Profile `json:"profile"`
}

type Profile struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
}

// Pagination mirrors the API's list metadata.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// Envelope wraps every API response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}
