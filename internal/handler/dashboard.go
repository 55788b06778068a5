package handler

import (
	"net/http"
	"strconv"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"
	"team-pulse/internal/service"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	roster       *service.RosterCache
	calc         *service.MetricsCalculator
	team         *service.TeamService
	alerts       *service.AlertEngine
	achievements *service.AchievementEngine
	jobs         *service.Jobs
}

func NewDashboardHandler(roster *service.RosterCache, calc *service.MetricsCalculator, team *service.TeamService,
	alerts *service.AlertEngine, achievements *service.AchievementEngine, jobs *service.Jobs) *DashboardHandler {
	return &DashboardHandler{roster: roster, calc: calc, team: team, alerts: alerts, achievements: achievements, jobs: jobs}
}

// memberParam reads :id and checks the caller may see that member: members
// see themselves, admins see their workspace. Members outside the caller's
// workspace are reported as not found.
func (h *DashboardHandler) memberParam(c *gin.Context) (*model.Member, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return nil, false
	}
	if id != c.GetInt("user_id") && c.GetString("role") != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	m, err := h.roster.Member(c.Request.Context(), c.GetString("workspace"), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return nil, false
	}
	return m, true
}

func periodParam(c *gin.Context) (model.PeriodType, bool) {
	p := model.PeriodType(c.DefaultQuery("period", string(model.PeriodWeek)))
	if !p.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be week, month or quarter"})
		return "", false
	}
	return p, true
}

// GET /api/members/:id/metrics?period=
func (h *DashboardHandler) MemberMetrics(c *gin.Context) {
	m, ok := h.memberParam(c)
	if !ok {
		return
	}
	period, ok := periodParam(c)
	if !ok {
		return
	}
	rec, err := h.calc.Compute(c.Request.Context(), m.ID, period, m.Workspace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entries in the current period"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GET /api/members/:id/risk?days=
func (h *DashboardHandler) MemberRisk(c *gin.Context) {
	m, ok := h.memberParam(c)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))
	risk, err := h.calc.Risk().Assess(c.Request.Context(), m.ID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, risk)
}

// GET /api/members/:id/achievements
func (h *DashboardHandler) MemberAchievements(c *gin.Context) {
	m, ok := h.memberParam(c)
	if !ok {
		return
	}
	out, err := h.achievements.ListAchievements(c.Request.Context(), m.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/metrics?period=
func (h *DashboardHandler) TeamMetrics(c *gin.Context) {
	period, ok := periodParam(c)
	if !ok {
		return
	}
	p, err := h.team.CurrentPeriod(period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.team.ListMetrics(c.Request.Context(), c.GetString("workspace"), period, p.StartDate())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"period_start": p.StartDate(), "period_end": p.LastDate(), "records": out})
}

// GET /api/alerts?status=
func (h *DashboardHandler) Alerts(c *gin.Context) {
	status := c.DefaultQuery("status", model.AlertActive)
	if status == "all" {
		status = ""
	}
	out, err := h.alerts.ListAlerts(c.Request.Context(), c.GetString("workspace"), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/admin/jobs/:job?period=
func (h *DashboardHandler) RunJob(c *gin.Context) {
	job := c.Param("job")
	if !service.ValidJob(job) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job"})
		return
	}
	period, ok := periodParam(c)
	if !ok {
		return
	}
	ws := c.GetString("workspace")
	runID, err := h.jobs.Run(c.Request.Context(), job, ws, period)
	if err != nil {
		logger.Error("job.trigger_failed", "job", job, "run_id", runID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run_id": runID})
		return
	}
	c.JSON(http.StatusOK, model.JobResponse{Job: job, Workspace: ws, RunID: runID})
}
