package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"clubadmin/internal/model"
)

// DefaultPageSize is the page size used when walking every page.
const DefaultPageSize = 100

// maxPages bounds page walks in case the API reports a bogus page count.
const maxPages = 1000

// LoginResult is the payload of a successful administrator login.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login exchanges administrator credentials for an API token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/admin/login",
		body:   map[string]string{"username": username, "password": password},
	}, &out)
	if err != nil {
		return LoginResult{}, err
	}
	if out.Token == "" {
		return LoginResult{}, errors.New("login response carried no token")
	}
	return out, nil
}

// Profile returns the user the token belongs to.
func (c *Client) Profile(ctx context.Context, token string) (model.User, error) {
	var out model.User
	err := c.do(ctx, request{op: "profile", method: http.MethodGet, path: "/auth/profile", token: token}, &out)
	return out, err
}

// StudentFilter narrows /admin/students. Empty fields are not sent.
type StudentFilter struct {
	FacultyID string
	GroupID   string
	Search    string
	Busy      *bool
	Page      int
	Limit     int
}

func (f StudentFilter) values() url.Values {
	q := url.Values{}
	setString(q, "facultyId", f.FacultyID)
	setString(q, "groupId", f.GroupID)
	setString(q, "search", f.Search)
	if f.Busy != nil {
		q.Set("busy", strconv.FormatBool(*f.Busy))
	}
	setInt(q, "page", f.Page)
	setInt(q, "limit", f.Limit)
	return q
}

type StudentPage struct {
	Students   []model.Student  `json:"students"`
	Pagination model.Pagination `json:"pagination"`
}

func (c *Client) ListStudents(ctx context.Context, token string, f StudentFilter) (StudentPage, error) {
	var out StudentPage
	err := c.do(ctx, request{op: "list_students", method: http.MethodGet, path: "/admin/students", token: token, query: f.values()}, &out)
	return out, err
}

// AllStudents walks every page of students matching f.
func (c *Client) AllStudents(ctx context.Context, token string, f StudentFilter) ([]model.Student, error) {
	f.Limit = pageSize(f.Limit)
	var all []model.Student
	for page := 1; page <= maxPages; page++ {
		f.Page = page
		p, err := c.ListStudents(ctx, token, f)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Students...)
		if lastPage(page, len(p.Students), p.Pagination) {
			break
		}
	}
	return all, nil
}

// ClubFilter narrows /admin/clubs.
type ClubFilter struct {
	FacultyID  string
	CategoryID string
	TutorID    string
	Search     string
	Page       int
	Limit      int
}

func (f ClubFilter) values() url.Values {
	q := url.Values{}
	setString(q, "facultyId", f.FacultyID)
	setString(q, "categoryId", f.CategoryID)
	setString(q, "tutorId", f.TutorID)
	setString(q, "search", f.Search)
	setInt(q, "page", f.Page)
	setInt(q, "limit", f.Limit)
	return q
}

type ClubPage struct {
	Clubs      []model.Club     `json:"clubs"`
	Pagination model.Pagination `json:"pagination"`
}

func (c *Client) ListClubs(ctx context.Context, token string, f ClubFilter) (ClubPage, error) {
	var out ClubPage
	err := c.do(ctx, request{op: "list_clubs", method: http.MethodGet, path: "/admin/clubs", token: token, query: f.values()}, &out)
	return out, err
}

func (c *Client) AllClubs(ctx context.Context, token string, f ClubFilter) ([]model.Club, error) {
	f.Limit = pageSize(f.Limit)
	var all []model.Club
	for page := 1; page <= maxPages; page++ {
		f.Page = page
		p, err := c.ListClubs(ctx, token, f)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Clubs...)
		if lastPage(page, len(p.Clubs), p.Pagination) {
			break
		}
	}
	return all, nil
}

// AttendanceFilter narrows /admin/attendance. Dates are YYYY-MM-DD.
type AttendanceFilter struct {
	ClubID    string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

func (f AttendanceFilter) values() url.Values {
	q := url.Values{}
	setString(q, "clubId", f.ClubID)
	setString(q, "startDate", f.StartDate)
	setString(q, "endDate", f.EndDate)
	setInt(q, "page", f.Page)
	setInt(q, "limit", f.Limit)
	return q
}

type AttendancePage struct {
	Attendance []model.AttendanceSession `json:"attendance"`
	Pagination model.Pagination          `json:"pagination"`
}

func (c *Client) ListAttendance(ctx context.Context, token string, f AttendanceFilter) (AttendancePage, error) {
	var out AttendancePage
	err := c.do(ctx, request{op: "list_attendance", method: http.MethodGet, path: "/admin/attendance", token: token, query: f.values()}, &out)
	return out, err
}

func (c *Client) AllAttendance(ctx context.Context, token string, f AttendanceFilter) ([]model.AttendanceSession, error) {
	f.Limit = pageSize(f.Limit)
	var all []model.AttendanceSession
	for page := 1; page <= maxPages; page++ {
		f.Page = page
		p, err := c.ListAttendance(ctx, token, f)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Attendance...)
		if lastPage(page, len(p.Attendance), p.Pagination) {
			break
		}
	}
	return all, nil
}

// AttendanceDetails returns one session with its marks.
func (c *Client) AttendanceDetails(ctx context.Context, token, id string) (model.AttendanceSession, error) {
	var out model.AttendanceSession
	err := c.do(ctx, request{op: "attendance_details", method: http.MethodGet, path: "/attendance/" + url.PathEscape(id), token: token}, &out)
	return out, err
}

// ListCategories returns categories, optionally only active or inactive ones.
func (c *Client) ListCategories(ctx context.Context, token string, active *bool) ([]model.Category, error) {
	q := url.Values{}
	if active != nil {
		q.Set("isActive", strconv.FormatBool(*active))
	}
	var out []model.Category
	err := c.do(ctx, request{op: "list_categories", method: http.MethodGet, path: "/categories", token: token, query: q}, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, token string, in model.CategoryInput) (model.Category, error) {
	var out model.Category
	err := c.do(ctx, request{op: "create_category", method: http.MethodPost, path: "/categories", token: token, body: in}, &out)
	return out, err
}

func (c *Client) UpdateCategory(ctx context.Context, token, id string, in model.CategoryInput) (model.Category, error) {
	var out model.Category
	err := c.do(ctx, request{op: "update_category", method: http.MethodPut, path: "/categories/" + url.PathEscape(id), token: token, body: in}, &out)
	return out, err
}

func (c *Client) DeleteCategory(ctx context.Context, token, id string) error {
	return c.do(ctx, request{op: "delete_category", method: http.MethodDelete, path: "/categories/" + url.PathEscape(id), token: token}, nil)
}

func (c *Client) ListFaculties(ctx context.Context, token string) ([]model.Faculty, error) {
	var out []model.Faculty
	err := c.do(ctx, request{op: "list_faculties", method: http.MethodGet, path: "/admin/faculties", token: token}, &out)
	return out, err
}

// ListGroups returns groups, optionally of one faculty.
func (c *Client) ListGroups(ctx context.Context, token, facultyID string) ([]model.Group, error) {
	q := url.Values{}
	setString(q, "facultyId", facultyID)
	var out []model.Group
	err := c.do(ctx, request{op: "list_groups", method: http.MethodGet, path: "/admin/groups", token: token, query: q}, &out)
	return out, err
}

// EnrollmentDecision is the body of an enrollment processing call.
type EnrollmentDecision struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// ProcessEnrollment approves or rejects a pending enrollment.
func (c *Client) ProcessEnrollment(ctx context.Context, token, id string, d EnrollmentDecision) error {
	return c.do(ctx, request{
		op:     "process_enrollment",
		method: http.MethodPost,
		path:   "/faculty/enrollment/" + url.PathEscape(id) + "/process",
		token:  token,
		body:   d,
	}, nil)
}

// SyncHemis asks the API to pull students, faculties and groups from the
// university registry. The result is passed through as is.
func (c *Client) SyncHemis(ctx context.Context, token string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, request{op: "sync_hemis", method: http.MethodPost, path: "/admin/sync-hemis", token: token, body: struct{}{}}, &out)
	return out, err
}

func pageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}

func lastPage(page, got int, p model.Pagination) bool {
	if got == 0 {
		return true
	}
	if p.Pages > 0 {
		return page >= p.Pages
	}
	if p.Total > 0 && p.Limit > 0 {
		return page*p.Limit >= p.Total
	}
	// No pagination metadata: the first page was everything.
	return true
}
