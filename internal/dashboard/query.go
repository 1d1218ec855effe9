package dashboard

import (
	"time"

	"clubadmin/internal/model"
	"clubadmin/internal/stats"
)

// PeriodQuery selects a reporting period. Dates only apply to custom
// periods; dates without a period name imply custom.
type PeriodQuery struct {
	Period    string `form:"period" json:"period" validate:"omitempty,oneof=today week month 3months 6months year all custom"`
	StartDate string `form:"startDate" json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

type StudentQuery struct {
	FacultyID string `form:"facultyId" json:"facultyId"`
	GroupID   string `form:"groupId" json:"groupId"`
	Search    string `form:"search" json:"search" validate:"max=100"`
	Busy      string `form:"busy" json:"busy" validate:"omitempty,oneof=true false"`
	Page      int    `form:"page" json:"page" validate:"omitempty,min=1,max=100000"`
	Limit     int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
}

type ClubQuery struct {
	FacultyID  string `form:"facultyId" json:"facultyId"`
	CategoryID string `form:"categoryId" json:"categoryId"`
	TutorID    string `form:"tutorId" json:"tutorId"`
	Search     string `form:"search" json:"search" validate:"max=100"`
	Page       int    `form:"page" json:"page" validate:"omitempty,min=1,max=100000"`
	Limit      int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
}

type AttendanceQuery struct {
	PeriodQuery
	ClubID string `form:"clubId" json:"clubId"`
	Page   int    `form:"page" json:"page" validate:"omitempty,min=1,max=100000"`
	Limit  int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
}

type TrendQuery struct {
	Days   int    `form:"days" json:"days" validate:"omitempty,min=1,max=366"`
	ClubID string `form:"clubId" json:"clubId"`
}

// TopQuery ranks students or clubs over a period.
type TopQuery struct {
	PeriodQuery
	Limit int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
	By    string `form:"by" json:"by" validate:"omitempty,oneof=students attendance"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=50"`
	Color       string `json:"color" validate:"omitempty,palettecolor"`
	IsActive    *bool  `json:"isActive"`
}

type EnrollmentRequest struct {
	Action          string `json:"action" validate:"required,oneof=approve reject"`
	RejectionReason string `json:"rejectionReason" validate:"required_if=Action reject,max=500"`
}

// PeriodInfo is a resolved period as shown to clients.
type PeriodInfo struct {
	Token     stats.Token `json:"period"`
	StartDate string      `json:"startDate,omitempty"`
	EndDate   string      `json:"endDate,omitempty"`
}

func periodInfo(p stats.Period) PeriodInfo {
	return PeriodInfo{Token: p.Token, StartDate: p.StartDate(), EndDate: p.EndDate()}
}

// StudentRow is a student with its busy classification.
type StudentRow struct {
	model.Student
	Busy          bool `json:"isBusy"`
	ApprovedClubs int  `json:"approvedClubs"`
}

type StudentList struct {
	Students   []StudentRow      `json:"students"`
	Pagination model.Pagination  `json:"pagination"`
	Summary    stats.BusySummary `json:"summary"`
}

// ClubRow is a club with its occupancy.
type ClubRow struct {
	model.Club
	AvailableSlots *int    `json:"availableSlots"`
	SlotStatus     string  `json:"slotStatus"`
	FillPercentage float64 `json:"fillPercentage"`
}

type ClubList struct {
	Clubs      []ClubRow         `json:"clubs"`
	Pagination model.Pagination  `json:"pagination"`
	Summary    stats.ClubSummary `json:"summary"`
}

// SessionRow is an attendance session with its counts.
type SessionRow struct {
	model.AttendanceSession
	Stats stats.SessionStats `json:"stats"`
}

type AttendanceList struct {
	Period            PeriodInfo       `json:"period"`
	Attendance        []SessionRow     `json:"attendance"`
	Pagination        model.Pagination `json:"pagination"`
	AverageAttendance float64          `json:"averageAttendance"`
}

// ClubRank is one row of the top clubs report.
type ClubRank struct {
	ClubID         string  `json:"clubId"`
	Name           string  `json:"name"`
	Students       int     `json:"students"`
	Capacity       *int    `json:"capacity,omitempty"`
	Sessions       int     `json:"sessions"`
	AttendanceRate float64 `json:"attendanceRate"`
}

type AttendanceSummary struct {
	Sessions int     `json:"sessions"`
	Average  float64 `json:"averageAttendance"`
}

// Overview is the dashboard landing page.
type Overview struct {
	Period      PeriodInfo               `json:"period"`
	Students    stats.BusySummary        `json:"students"`
	Clubs       stats.ClubSummary        `json:"clubs"`
	Attendance  AttendanceSummary        `json:"attendance"`
	Trend       []stats.TrendPoint       `json:"trend"`
	TopStudents []stats.StudentRate      `json:"topStudents"`
	TopClubs    []ClubRank               `json:"topClubs"`
	Faculties   []stats.FacultyBreakdown `json:"faculties"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

type ComparisonReport struct {
	Period     PeriodInfo       `json:"period"`
	Previous   PeriodInfo       `json:"previous"`
	Attendance stats.Comparison `json:"attendance"`
	Sessions   stats.Comparison `json:"sessions"`
}

type CategoryList struct {
	Categories []model.Category      `json:"categories"`
	Summary    stats.CategorySummary `json:"summary"`
}
