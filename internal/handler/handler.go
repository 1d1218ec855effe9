package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/archive"
	"clubadmin/internal/auth"
	"clubadmin/internal/dashboard"
	"clubadmin/internal/session"
	"clubadmin/internal/stats"
)

// SnapshotLister reads archived overviews.
type SnapshotLister interface {
	List(ctx context.Context, period string, limit int) ([]archive.Snapshot, error)
}

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) bool

type Handler struct {
	svc       *dashboard.Service
	sessions  *session.Manager
	issuer    *auth.Issuer
	snapshots SnapshotLister // nil when no database is configured
	probes    map[string]Probe
}

func New(svc *dashboard.Service, sessions *session.Manager, issuer *auth.Issuer, snapshots SnapshotLister) *Handler {
	return &Handler{svc: svc, sessions: sessions, issuer: issuer, snapshots: snapshots, probes: make(map[string]Probe)}
}

// AddProbe registers a dependency checked by /healthz.
func (h *Handler) AddProbe(name string, p Probe) {
	h.probes[name] = p
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.Refresh)

	authed := api.Group("", auth.RequireSession(h.issuer, h.sessions))
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/profile", h.Profile)

	authed.GET("/periods/resolve", h.ResolvePeriod)
	authed.GET("/dashboard", h.Overview)
	authed.GET("/students", h.Students)
	authed.GET("/clubs", h.Clubs)
	authed.GET("/attendance", h.Attendance)
	authed.GET("/attendance/trend", h.Trend)
	authed.GET("/attendance/:id", h.AttendanceDetails)
	authed.GET("/faculties", h.Faculties)
	authed.GET("/groups", h.Groups)

	authed.GET("/reports/top-students", h.TopStudents)
	authed.GET("/reports/top-clubs", h.TopClubs)
	authed.GET("/reports/faculties", h.FacultyReport)
	authed.GET("/reports/comparison", h.Comparison)
	authed.GET("/snapshots", h.Snapshots)

	authed.GET("/categories", h.Categories)
	authed.POST("/categories", h.CreateCategory)
	authed.PUT("/categories/:id", h.UpdateCategory)
	authed.DELETE("/categories/:id", h.DeleteCategory)

	authed.POST("/enrollments/:id/process", h.ProcessEnrollment)
	authed.POST("/admin/sync-hemis", h.SyncHemis)
}

// ---------- Responses ----------

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// fail maps service errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		verr   *dashboard.ValidationError
		serr   *stats.ValidationError
		apiErr *apiclient.APIError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": verr.Error(), "errors": verr.FieldMap()})
	case errors.As(err, &serr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": serr.Error(), "errors": gin.H{serr.Field: serr.Reason}})
	case errors.Is(err, stats.ErrCategoryInUse):
		message(c, http.StatusConflict, err.Error())
	case errors.Is(err, dashboard.ErrNotFound):
		message(c, http.StatusNotFound, err.Error())
	case errors.Is(err, apiclient.ErrUnauthorized):
		if s, found := auth.FromContext(c); found {
			_ = h.sessions.Check(c.Request.Context(), s.ID, err)
		}
		message(c, http.StatusUnauthorized, "session expired, please log in again")
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		status := apiErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadRequest
		}
		message(c, status, apiErr.Message)
	case errors.Is(err, context.Canceled):
		// client went away
		c.AbortWithStatus(499)
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		message(c, http.StatusBadGateway, "upstream unavailable")
	}
}

func current(c *gin.Context) session.Session {
	s, _ := auth.FromContext(c)
	return s
}

// bindQuery decodes query parameters into v and answers 400 on malformed
// values.
func bindQuery(c *gin.Context, v any) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		message(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return false
	}
	return true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		message(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}
	return true
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, probe := range h.probes {
		healthy := probe(c.Request.Context())
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Auth ----------

type loginRequest struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := dashboard.Validate(req); err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			message(c, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.fail(c, err)
		return
	}
	pair, err := h.issuer.Issue(s.ID, s.User.Role, s.ExpiresAt)
	if err != nil {
		log.Printf("issue tokens for %s: %v", s.ID, err)
		message(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"token": pair.AccessToken, "tokens": pair, "user": s.User})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := dashboard.Validate(req); err != nil {
		h.fail(c, err)
		return
	}
	claims, err := h.issuer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		message(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	s, err := h.sessions.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		message(c, http.StatusUnauthorized, "session expired")
		return
	}
	pair, err := h.issuer.Issue(s.ID, s.User.Role, s.ExpiresAt)
	if err != nil {
		message(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"token": pair.AccessToken, "tokens": pair})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), current(c).ID); err != nil {
		log.Printf("logout: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}

func (h *Handler) Profile(c *gin.Context) {
	user, err := h.svc.Profile(c.Request.Context(), current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}

// ---------- Dashboard ----------

func (h *Handler) ResolvePeriod(c *gin.Context) {
	var q dashboard.PeriodQuery
	if !bindQuery(c, &q) {
		return
	}
	p, err := h.svc.ResolvePeriod(q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, dashboard.PeriodInfo{Token: p.Token, StartDate: p.StartDate(), EndDate: p.EndDate()})
}

func (h *Handler) Overview(c *gin.Context) {
	var q dashboard.PeriodQuery
	if !bindQuery(c, &q) {
		return
	}
	ov, err := h.svc.Overview(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, ov)
}

func (h *Handler) Students(c *gin.Context) {
	var q dashboard.StudentQuery
	if !bindQuery(c, &q) {
		return
	}
	list, err := h.svc.Students(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *Handler) Clubs(c *gin.Context) {
	var q dashboard.ClubQuery
	if !bindQuery(c, &q) {
		return
	}
	list, err := h.svc.Clubs(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *Handler) Attendance(c *gin.Context) {
	var q dashboard.AttendanceQuery
	if !bindQuery(c, &q) {
		return
	}
	list, err := h.svc.Attendance(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *Handler) AttendanceDetails(c *gin.Context) {
	row, err := h.svc.AttendanceDetails(c.Request.Context(), current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, row)
}

func (h *Handler) Trend(c *gin.Context) {
	var q dashboard.TrendQuery
	if !bindQuery(c, &q) {
		return
	}
	points, err := h.svc.Trend(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, points)
}

func (h *Handler) Faculties(c *gin.Context) {
	list, err := h.svc.Faculties(c.Request.Context(), current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *Handler) Groups(c *gin.Context) {
	list, err := h.svc.Groups(c.Request.Context(), current(c), c.Query("facultyId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// ---------- Reports ----------

func (h *Handler) TopStudents(c *gin.Context) {
	var q dashboard.TopQuery
	if !bindQuery(c, &q) {
		return
	}
	rows, err := h.svc.TopStudents(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, rows)
}

func (h *Handler) TopClubs(c *gin.Context) {
	var q dashboard.TopQuery
	if !bindQuery(c, &q) {
		return
	}
	rows, err := h.svc.TopClubs(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, rows)
}

func (h *Handler) FacultyReport(c *gin.Context) {
	rows, err := h.svc.FacultyReport(c.Request.Context(), current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, rows)
}

func (h *Handler) Comparison(c *gin.Context) {
	var q dashboard.PeriodQuery
	if !bindQuery(c, &q) {
		return
	}
	rep, err := h.svc.Compare(c.Request.Context(), current(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

func (h *Handler) Snapshots(c *gin.Context) {
	if h.snapshots == nil {
		message(c, http.StatusServiceUnavailable, "snapshot archive not configured")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if err != nil || limit < 1 || limit > 500 {
		message(c, http.StatusBadRequest, "limit must be a number between 1 and 500")
		return
	}
	list, err := h.snapshots.List(c.Request.Context(), c.Query("period"), limit)
	if err != nil {
		log.Printf("list snapshots: %v", err)
		message(c, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	ok(c, http.StatusOK, list)
}

// ---------- Categories ----------

func (h *Handler) Categories(c *gin.Context) {
	var active *bool
	if v := c.Query("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			message(c, http.StatusBadRequest, "isActive must be true or false")
			return
		}
		active = &b
	}
	list, err := h.svc.Categories(c.Request.Context(), current(c), active)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req dashboard.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	created, err := h.svc.CreateCategory(c.Request.Context(), current(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	var req dashboard.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.svc.UpdateCategory(c.Request.Context(), current(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.svc.DeleteCategory(c.Request.Context(), current(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "category deleted"})
}

// ---------- Enrollments & sync ----------

func (h *Handler) ProcessEnrollment(c *gin.Context) {
	var req dashboard.EnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.ProcessEnrollment(c.Request.Context(), current(c), c.Param("id"), req); err != nil {
		h.fail(c, err)
		return
	}
	msg := "enrollment approved"
	if req.Action == "reject" {
		msg = "enrollment rejected"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) SyncHemis(c *gin.Context) {
	out, err := h.svc.SyncHemis(c.Request.Context(), current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
