package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/archive"
	"clubadmin/internal/cache"
	"clubadmin/internal/model"
	"clubadmin/internal/queue"
	"clubadmin/internal/session"
	"clubadmin/internal/stats"
)

// ErrNotFound is returned when a referenced record does not exist upstream.
var ErrNotFound = errors.New("not found")

const (
	defaultPage  = 1
	defaultLimit = 20
	overviewTop  = 5
	trendDays    = 7
)

// Upstream is the part of the clubs API the dashboard reads and writes.
type Upstream interface {
	Profile(ctx context.Context, token string) (model.User, error)
	AllStudents(ctx context.Context, token string, f apiclient.StudentFilter) ([]model.Student, error)
	AllClubs(ctx context.Context, token string, f apiclient.ClubFilter) ([]model.Club, error)
	AllAttendance(ctx context.Context, token string, f apiclient.AttendanceFilter) ([]model.AttendanceSession, error)
	AttendanceDetails(ctx context.Context, token, id string) (model.AttendanceSession, error)
	ListCategories(ctx context.Context, token string, active *bool) ([]model.Category, error)
	CreateCategory(ctx context.Context, token string, in model.CategoryInput) (model.Category, error)
	UpdateCategory(ctx context.Context, token, id string, in model.CategoryInput) (model.Category, error)
	DeleteCategory(ctx context.Context, token, id string) error
	ListFaculties(ctx context.Context, token string) ([]model.Faculty, error)
	ListGroups(ctx context.Context, token, facultyID string) ([]model.Group, error)
	ProcessEnrollment(ctx context.Context, token, id string, d apiclient.EnrollmentDecision) error
	SyncHemis(ctx context.Context, token string) (json.RawMessage, error)
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	Location *time.Location
	// Queue receives an invalidation message after every mutation.
	Queue queue.Queue
	Now   func() time.Time
	// Rand picks category colors.
	Rand stats.Picker
}

// Service answers dashboard reads through the cache and forwards writes.
type Service struct {
	api   Upstream
	cache *cache.Cache
	queue queue.Queue
	loc   *time.Location
	now   func() time.Time

	rngMu sync.Mutex
	rng   stats.Picker
}

func NewService(api Upstream, c *cache.Cache, opts Options) *Service {
	s := &Service{api: api, cache: c, queue: opts.Queue, loc: opts.Location, now: opts.Now, rng: opts.Rand}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().In(s.loc) }

// ResolvePeriod turns a period query into concrete bounds.
func (s *Service) ResolvePeriod(q PeriodQuery) (stats.Period, error) {
	if err := Validate(q); err != nil {
		return stats.Period{}, err
	}
	name := q.Period
	if name == "" {
		name = string(stats.Month)
		if q.StartDate != "" || q.EndDate != "" {
			name = string(stats.Custom)
		}
	}
	token, err := stats.ParseToken(name)
	if err != nil {
		return stats.Period{}, fromStats(err)
	}
	var custom stats.Range
	if token == stats.Custom {
		if custom.Start, err = s.parseBound(q.StartDate, "startDate"); err != nil {
			return stats.Period{}, err
		}
		if custom.End, err = s.parseBound(q.EndDate, "endDate"); err != nil {
			return stats.Period{}, err
		}
	}
	p, err := stats.Resolve(token, s.clock(), custom)
	if err != nil {
		return stats.Period{}, fromStats(err)
	}
	return p, nil
}

func (s *Service) parseBound(v, field string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := stats.ParseDate(v, s.loc)
	if err != nil {
		return nil, NewValidationError(err, FieldError{Field: field, Error: err.Error()})
	}
	return &t, nil
}

// scope names the upstream view a cached read belongs to. Every university
// admin sees the whole university, a faculty admin only their faculty, so
// reads are shared within those groups and kept apart otherwise.
func scope(sess session.Session) string {
	u := sess.User
	switch {
	case u.Role == model.RoleUniversityAdmin:
		return "university"
	case u.Role == model.RoleFacultyAdmin && u.Faculty != nil && u.Faculty.ID != "":
		return "faculty:" + u.Faculty.ID
	case u.ID.String() != "":
		return "user:" + u.ID.String()
	}
	return "anon"
}

func cacheKey(name string, sess session.Session, parts ...string) string {
	return name + "|" + scope(sess) + "|" + strings.Join(parts, "|")
}

var (
	studentDeps    = []cache.Kind{cache.KindStudent, cache.KindEnrollment}
	clubDeps       = []cache.Kind{cache.KindClub, cache.KindEnrollment}
	attendanceDeps = []cache.Kind{cache.KindAttendance}
	categoryDeps   = []cache.Kind{cache.KindCategory}
	facultyDeps    = []cache.Kind{cache.KindFaculty}
	groupDeps      = []cache.Kind{cache.KindGroup}
	profileDeps    = []cache.Kind{cache.KindProfile}
	overviewDeps   = []cache.Kind{cache.KindDashboard, cache.KindStudent, cache.KindClub, cache.KindAttendance, cache.KindEnrollment, cache.KindFaculty}
	reportDeps     = []cache.Kind{cache.KindReport, cache.KindAttendance, cache.KindClub}
)

func (s *Service) students(ctx context.Context, sess session.Session, f apiclient.StudentFilter) ([]model.Student, error) {
	key := cacheKey("students", sess, f.FacultyID, f.GroupID, f.Search)
	return cache.Fetch(ctx, s.cache, key, studentDeps, func(ctx context.Context) ([]model.Student, error) {
		return s.api.AllStudents(ctx, sess.UpstreamToken, f)
	})
}

func (s *Service) clubs(ctx context.Context, sess session.Session, f apiclient.ClubFilter) ([]model.Club, error) {
	key := cacheKey("clubs", sess, f.FacultyID, f.CategoryID, f.TutorID, f.Search)
	return cache.Fetch(ctx, s.cache, key, clubDeps, func(ctx context.Context) ([]model.Club, error) {
		return s.api.AllClubs(ctx, sess.UpstreamToken, f)
	})
}

// sessions loads the attendance sessions of p, optionally of one club.
// Sessions outside p are dropped even if upstream returned them.
func (s *Service) sessions(ctx context.Context, sess session.Session, p stats.Period, clubID string) ([]model.AttendanceSession, error) {
	f := apiclient.AttendanceFilter{ClubID: clubID, StartDate: p.StartDate(), EndDate: p.EndDate()}
	key := cacheKey("attendance", sess, clubID, f.StartDate, f.EndDate)
	all, err := cache.Fetch(ctx, s.cache, key, attendanceDeps, func(ctx context.Context) ([]model.AttendanceSession, error) {
		return s.api.AllAttendance(ctx, sess.UpstreamToken, f)
	})
	if err != nil {
		return nil, err
	}
	return stats.FilterSessions(all, p), nil
}

func (s *Service) categories(ctx context.Context, sess session.Session, active *bool) ([]model.Category, error) {
	flag := ""
	if active != nil {
		flag = fmt.Sprint(*active)
	}
	key := cacheKey("categories", sess, flag)
	return cache.Fetch(ctx, s.cache, key, categoryDeps, func(ctx context.Context) ([]model.Category, error) {
		return s.api.ListCategories(ctx, sess.UpstreamToken, active)
	})
}

func (s *Service) faculties(ctx context.Context, sess session.Session) ([]model.Faculty, error) {
	return cache.Fetch(ctx, s.cache, cacheKey("faculties", sess), facultyDeps, func(ctx context.Context) ([]model.Faculty, error) {
		return s.api.ListFaculties(ctx, sess.UpstreamToken)
	})
}

// Profile returns the logged in user as the API currently knows them.
func (s *Service) Profile(ctx context.Context, sess session.Session) (model.User, error) {
	return cache.Fetch(ctx, s.cache, cacheKey("profile", sess), profileDeps, func(ctx context.Context) (model.User, error) {
		return s.api.Profile(ctx, sess.UpstreamToken)
	})
}

func (s *Service) Faculties(ctx context.Context, sess session.Session) ([]model.Faculty, error) {
	return s.faculties(ctx, sess)
}

func (s *Service) Groups(ctx context.Context, sess session.Session, facultyID string) ([]model.Group, error) {
	return cache.Fetch(ctx, s.cache, cacheKey("groups", sess, facultyID), groupDeps, func(ctx context.Context) ([]model.Group, error) {
		return s.api.ListGroups(ctx, sess.UpstreamToken, facultyID)
	})
}

// Overview builds the dashboard landing page for the period of q.
func (s *Service) Overview(ctx context.Context, sess session.Session, q PeriodQuery) (Overview, error) {
	p, err := s.ResolvePeriod(q)
	if err != nil {
		return Overview{}, err
	}
	key := cacheKey("overview", sess, string(p.Token), p.StartDate(), p.EndDate())
	return cache.Fetch(ctx, s.cache, key, overviewDeps, func(ctx context.Context) (Overview, error) {
		return s.overview(ctx, sess, p)
	})
}

func (s *Service) overview(ctx context.Context, sess session.Session, p stats.Period) (Overview, error) {
	var (
		students  []model.Student
		clubs     []model.Club
		period    []model.AttendanceSession
		recent    []model.AttendanceSession
		faculties []model.Faculty
	)
	now := s.clock()
	window := s.lastDays(now, trendDays)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = s.students(gctx, sess, apiclient.StudentFilter{})
		return err
	})
	g.Go(func() (err error) {
		clubs, err = s.clubs(gctx, sess, apiclient.ClubFilter{})
		return err
	})
	g.Go(func() (err error) {
		period, err = s.sessions(gctx, sess, p, "")
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.sessions(gctx, sess, window, "")
		return err
	})
	g.Go(func() (err error) {
		faculties, err = s.faculties(gctx, sess)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	clubSummary, err := stats.SummarizeClubs(clubs)
	if err != nil {
		return Overview{}, fromStats(err)
	}
	trend, err := stats.LastDays(recent, now, trendDays)
	if err != nil {
		return Overview{}, fromStats(err)
	}
	topStudents, err := stats.TopN(stats.StudentRates(period), func(r stats.StudentRate) float64 { return r.Rate }, overviewTop)
	if err != nil {
		return Overview{}, fromStats(err)
	}
	topClubs, err := rankClubs(clubs, period, "students", overviewTop)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Period:   periodInfo(p),
		Students: stats.SummarizeBusy(students),
		Clubs:    clubSummary,
		Attendance: AttendanceSummary{
			Sessions: len(period),
			Average:  stats.AverageAttendance(period),
		},
		Trend:       trend,
		TopStudents: topStudents,
		TopClubs:    topClubs,
		Faculties:   stats.ByFaculty(faculties, students, clubs),
		GeneratedAt: s.now().UTC(),
	}, nil
}

// lastDays is the window of n calendar days ending today.
func (s *Service) lastDays(now time.Time, n int) stats.Period {
	start := time.Date(now.Year(), now.Month(), now.Day()-(n-1), 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), now.Location())
	return stats.Period{Token: stats.Custom, Start: &start, End: &end}
}

// Students lists students with their busy flag. The busy filter and
// paging are applied after the full list is loaded.
func (s *Service) Students(ctx context.Context, sess session.Session, q StudentQuery) (StudentList, error) {
	if err := Validate(q); err != nil {
		return StudentList{}, err
	}
	all, err := s.students(ctx, sess, apiclient.StudentFilter{FacultyID: q.FacultyID, GroupID: q.GroupID, Search: q.Search})
	if err != nil {
		return StudentList{}, err
	}
	summary := stats.SummarizeBusy(all)
	if q.Busy != "" {
		all = stats.FilterBusy(all, q.Busy == "true")
	}
	page, pg := paginate(all, q.Page, q.Limit)
	rows := make([]StudentRow, len(page))
	for i, st := range page {
		rows[i] = StudentRow{Student: st, Busy: stats.IsBusy(st), ApprovedClubs: stats.ApprovedCount(st)}
	}
	return StudentList{Students: rows, Pagination: pg, Summary: summary}, nil
}

// Clubs lists clubs with their occupancy.
func (s *Service) Clubs(ctx context.Context, sess session.Session, q ClubQuery) (ClubList, error) {
	if err := Validate(q); err != nil {
		return ClubList{}, err
	}
	all, err := s.clubs(ctx, sess, apiclient.ClubFilter{FacultyID: q.FacultyID, CategoryID: q.CategoryID, TutorID: q.TutorID, Search: q.Search})
	if err != nil {
		return ClubList{}, err
	}
	summary, err := stats.SummarizeClubs(all)
	if err != nil {
		return ClubList{}, fromStats(err)
	}
	page, pg := paginate(all, q.Page, q.Limit)
	rows := make([]ClubRow, len(page))
	for i, c := range page {
		row, err := clubRow(c)
		if err != nil {
			return ClubList{}, err
		}
		rows[i] = row
	}
	return ClubList{Clubs: rows, Pagination: pg, Summary: summary}, nil
}

func clubRow(c model.Club) (ClubRow, error) {
	slots, defined, err := stats.AvailableSlots(c)
	if err != nil {
		return ClubRow{}, fromStats(err)
	}
	status, err := stats.SlotStatus(c)
	if err != nil {
		return ClubRow{}, fromStats(err)
	}
	row := ClubRow{Club: c, SlotStatus: status}
	if defined {
		row.AvailableSlots = &slots
		row.FillPercentage = stats.Percentage(c.CurrentStudents, *c.Capacity)
	}
	return row, nil
}

// Attendance lists the sessions of a period, newest first as upstream
// returns them.
func (s *Service) Attendance(ctx context.Context, sess session.Session, q AttendanceQuery) (AttendanceList, error) {
	if err := Validate(q); err != nil {
		return AttendanceList{}, err
	}
	p, err := s.ResolvePeriod(q.PeriodQuery)
	if err != nil {
		return AttendanceList{}, err
	}
	all, err := s.sessions(ctx, sess, p, q.ClubID)
	if err != nil {
		return AttendanceList{}, err
	}
	page, pg := paginate(all, q.Page, q.Limit)
	rows := make([]SessionRow, len(page))
	for i, a := range page {
		rows[i] = SessionRow{AttendanceSession: a, Stats: stats.SessionSummary(a)}
	}
	return AttendanceList{
		Period:            periodInfo(p),
		Attendance:        rows,
		Pagination:        pg,
		AverageAttendance: stats.AverageAttendance(all),
	}, nil
}

// AttendanceDetails returns one session with its counts.
func (s *Service) AttendanceDetails(ctx context.Context, sess session.Session, id string) (SessionRow, error) {
	a, err := cache.Fetch(ctx, s.cache, cacheKey("attendance-details", sess, id), attendanceDeps, func(ctx context.Context) (model.AttendanceSession, error) {
		return s.api.AttendanceDetails(ctx, sess.UpstreamToken, id)
	})
	if err != nil {
		return SessionRow{}, err
	}
	return SessionRow{AttendanceSession: a, Stats: stats.SessionSummary(a)}, nil
}

// Trend returns one point per day of the last q.Days days.
func (s *Service) Trend(ctx context.Context, sess session.Session, q TrendQuery) ([]stats.TrendPoint, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}
	days := q.Days
	if days == 0 {
		days = trendDays
	}
	now := s.clock()
	all, err := s.sessions(ctx, sess, s.lastDays(now, days), q.ClubID)
	if err != nil {
		return nil, err
	}
	points, err := stats.LastDays(all, now, days)
	if err != nil {
		return nil, fromStats(err)
	}
	return points, nil
}

func topLimit(limit int) int {
	if limit == 0 {
		return overviewTop
	}
	return limit
}

// TopStudents ranks students by attendance rate over a period.
func (s *Service) TopStudents(ctx context.Context, sess session.Session, q TopQuery) ([]stats.StudentRate, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}
	p, err := s.ResolvePeriod(q.PeriodQuery)
	if err != nil {
		return nil, err
	}
	key := cacheKey("top-students", sess, string(p.Token), p.StartDate(), p.EndDate(), fmt.Sprint(topLimit(q.Limit)))
	return cache.Fetch(ctx, s.cache, key, reportDeps, func(ctx context.Context) ([]stats.StudentRate, error) {
		all, err := s.sessions(ctx, sess, p, "")
		if err != nil {
			return nil, err
		}
		top, err := stats.TopN(stats.StudentRates(all), func(r stats.StudentRate) float64 { return r.Rate }, topLimit(q.Limit))
		return top, fromStats(err)
	})
}

// TopClubs ranks clubs by student count, or by attendance rate over the
// period when q.By is "attendance".
func (s *Service) TopClubs(ctx context.Context, sess session.Session, q TopQuery) ([]ClubRank, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}
	p, err := s.ResolvePeriod(q.PeriodQuery)
	if err != nil {
		return nil, err
	}
	by := q.By
	if by == "" {
		by = "students"
	}
	key := cacheKey("top-clubs", sess, by, string(p.Token), p.StartDate(), p.EndDate(), fmt.Sprint(topLimit(q.Limit)))
	return cache.Fetch(ctx, s.cache, key, reportDeps, func(ctx context.Context) ([]ClubRank, error) {
		clubs, err := s.clubs(ctx, sess, apiclient.ClubFilter{})
		if err != nil {
			return nil, err
		}
		all, err := s.sessions(ctx, sess, p, "")
		if err != nil {
			return nil, err
		}
		return rankClubs(clubs, all, by, topLimit(q.Limit))
	})
}

// rankClubs joins clubs with their attendance and keeps the best n.
func rankClubs(clubs []model.Club, sessions []model.AttendanceSession, by string, n int) ([]ClubRank, error) {
	rates := make(map[string]stats.ClubRate)
	for _, r := range stats.ClubRates(sessions) {
		rates[r.ClubID] = r
	}
	rows := make([]ClubRank, len(clubs))
	for i, c := range clubs {
		r := rates[c.ID]
		rows[i] = ClubRank{
			ClubID:         c.ID,
			Name:           c.Name,
			Students:       c.CurrentStudents,
			Capacity:       c.Capacity,
			Sessions:       r.Sessions,
			AttendanceRate: r.Rate,
		}
	}
	score := func(r ClubRank) float64 { return float64(r.Students) }
	if by == "attendance" {
		score = func(r ClubRank) float64 { return r.AttendanceRate }
	}
	top, err := stats.TopN(rows, score, n)
	if err != nil {
		return nil, fromStats(err)
	}
	return top, nil
}

// FacultyReport breaks students, busy students and clubs down by faculty.
func (s *Service) FacultyReport(ctx context.Context, sess session.Session) ([]stats.FacultyBreakdown, error) {
	var (
		students  []model.Student
		clubs     []model.Club
		faculties []model.Faculty
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = s.students(gctx, sess, apiclient.StudentFilter{})
		return err
	})
	g.Go(func() (err error) {
		clubs, err = s.clubs(gctx, sess, apiclient.ClubFilter{})
		return err
	})
	g.Go(func() (err error) {
		faculties, err = s.faculties(gctx, sess)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats.ByFaculty(faculties, students, clubs), nil
}

// Compare reports attendance of a period against the equally long period
// before it.
func (s *Service) Compare(ctx context.Context, sess session.Session, q PeriodQuery) (ComparisonReport, error) {
	p, err := s.ResolvePeriod(q)
	if err != nil {
		return ComparisonReport{}, err
	}
	prev, err := stats.Previous(p)
	if err != nil {
		return ComparisonReport{}, fromStats(err)
	}
	var cur, before []model.AttendanceSession
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cur, err = s.sessions(gctx, sess, p, "")
		return err
	})
	g.Go(func() (err error) {
		before, err = s.sessions(gctx, sess, prev, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return ComparisonReport{}, err
	}
	return ComparisonReport{
		Period:     periodInfo(p),
		Previous:   periodInfo(prev),
		Attendance: stats.Compare(stats.AverageAttendance(cur), stats.AverageAttendance(before)),
		Sessions:   stats.Compare(float64(len(cur)), float64(len(before))),
	}, nil
}

// Categories lists categories with the page summary.
func (s *Service) Categories(ctx context.Context, sess session.Session, active *bool) (CategoryList, error) {
	list, err := s.categories(ctx, sess, active)
	if err != nil {
		return CategoryList{}, err
	}
	return CategoryList{Categories: list, Summary: stats.SummarizeCategories(list)}, nil
}

// CreateCategory creates a category. Without an explicit color it gets a
// random palette color no other category uses.
func (s *Service) CreateCategory(ctx context.Context, sess session.Session, req CategoryRequest) (model.Category, error) {
	if err := Validate(req); err != nil {
		return model.Category{}, err
	}
	in := categoryInput(req)
	if in.Color == "" {
		existing, err := s.api.ListCategories(ctx, sess.UpstreamToken, nil)
		if err != nil {
			return model.Category{}, err
		}
		in.Color = s.pickColor(stats.UsedColors(existing))
	}
	created, err := s.api.CreateCategory(ctx, sess.UpstreamToken, in)
	if err != nil {
		return model.Category{}, err
	}
	s.invalidate(ctx, cache.CategoryCreate)
	return created, nil
}

func (s *Service) pickColor(used []string) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return stats.AssignColor(used, s.rng)
}

// UpdateCategory changes a category. The stored color is kept unless the
// request names another palette color.
func (s *Service) UpdateCategory(ctx context.Context, sess session.Session, id string, req CategoryRequest) (model.Category, error) {
	if err := Validate(req); err != nil {
		return model.Category{}, err
	}
	current, err := s.findCategory(ctx, sess, id)
	if err != nil {
		return model.Category{}, err
	}
	in := categoryInput(req)
	if in.Color == "" {
		in.Color = current.Color
	}
	updated, err := s.api.UpdateCategory(ctx, sess.UpstreamToken, id, in)
	if err != nil {
		return model.Category{}, err
	}
	s.invalidate(ctx, cache.CategoryUpdate)
	return updated, nil
}

// DeleteCategory deletes a category no club references.
func (s *Service) DeleteCategory(ctx context.Context, sess session.Session, id string) error {
	current, err := s.findCategory(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := stats.CanDelete(current); err != nil {
		return err
	}
	if err := s.api.DeleteCategory(ctx, sess.UpstreamToken, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.CategoryDelete)
	return nil
}

// findCategory reads categories fresh from upstream so guards see current
// club counts.
func (s *Service) findCategory(ctx context.Context, sess session.Session, id string) (model.Category, error) {
	list, err := s.api.ListCategories(ctx, sess.UpstreamToken, nil)
	if err != nil {
		return model.Category{}, err
	}
	for _, c := range list {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
}

func categoryInput(req CategoryRequest) model.CategoryInput {
	return model.CategoryInput{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Color:       strings.ToUpper(req.Color),
		Icon:        req.Icon,
		IsActive:    req.IsActive,
	}
}

// ProcessEnrollment approves or rejects a pending club enrollment.
func (s *Service) ProcessEnrollment(ctx context.Context, sess session.Session, id string, req EnrollmentRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	d := apiclient.EnrollmentDecision{Action: req.Action}
	if req.Action == "reject" {
		d.RejectionReason = strings.TrimSpace(req.RejectionReason)
	}
	if err := s.api.ProcessEnrollment(ctx, sess.UpstreamToken, id, d); err != nil {
		return err
	}
	s.invalidate(ctx, cache.EnrollmentProcess)
	return nil
}

// SyncHemis pulls registry data upstream and returns the upstream report.
func (s *Service) SyncHemis(ctx context.Context, sess session.Session) (json.RawMessage, error) {
	out, err := s.api.SyncHemis(ctx, sess.UpstreamToken)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.HemisSync)
	return out, nil
}

// invalidate drops what m made stale locally and tells other processes.
// Failures are logged; the mutation itself already succeeded.
func (s *Service) invalidate(ctx context.Context, m cache.Mutation) {
	kinds := cache.Affects(m)
	if _, err := s.cache.Invalidate(ctx, kinds...); err != nil {
		log.Printf("invalidate after %s: %v", m, err)
	}
	if s.queue == nil {
		return
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	msg := queue.Message{Type: queue.TypeInvalidate, Kinds: names, Mutation: string(m), SentAt: s.now().UTC()}
	if err := s.queue.Publish(ctx, msg); err != nil {
		log.Printf("publish invalidation for %s: %v", m, err)
	}
}

// Snapshot captures the overview of a period for the archive.
func (s *Service) Snapshot(ctx context.Context, sess session.Session, token stats.Token) (archive.Snapshot, error) {
	ov, err := s.Overview(ctx, sess, PeriodQuery{Period: string(token)})
	if err != nil {
		return archive.Snapshot{}, err
	}
	payload, err := json.Marshal(ov)
	if err != nil {
		return archive.Snapshot{}, fmt.Errorf("encode overview: %w", err)
	}
	return archive.Snapshot{
		Period:            string(ov.Period.Token),
		StartDate:         ov.Period.StartDate,
		EndDate:           ov.Period.EndDate,
		CapturedAt:        s.now().UTC(),
		TotalStudents:     ov.Students.Total,
		BusyStudents:      ov.Students.Busy,
		BusyPercentage:    ov.Students.BusyPercentage,
		TotalClubs:        ov.Clubs.Clubs,
		Sessions:          ov.Attendance.Sessions,
		AverageAttendance: ov.Attendance.Average,
		Payload:           payload,
	}, nil
}

// paginate slices items for page/limit (1-based) and reports the totals.
func paginate[T any](items []T, page, limit int) ([]T, model.Pagination) {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	total := len(items)
	pg := model.Pagination{Total: total, Page: page, Limit: limit, Pages: (total + limit - 1) / limit}
	if page > pg.Pages {
		return []T{}, pg
	}
	from := (page - 1) * limit
	to := min(from+limit, total)
	return items[from:to], pg
}
