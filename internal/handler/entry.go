package handler

import (
	"errors"
	"net/http"
	"time"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"
	"team-pulse/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultListDays = 30

type EntryHandler struct {
	daily        *service.DailyService
	auth         *service.AuthService
	estimator    service.HourEstimator
	achievements *service.AchievementEngine
	clock        service.Clock
	loc          *time.Location
}

func NewEntryHandler(daily *service.DailyService, auth *service.AuthService, estimator service.HourEstimator,
	achievements *service.AchievementEngine, clock service.Clock, loc *time.Location) *EntryHandler {
	return &EntryHandler{daily: daily, auth: auth, estimator: estimator, achievements: achievements, clock: clock, loc: loc}
}

// Submit handles POST /api/entries. Hours are estimated best effort and the
// submitter's badges are rechecked after saving.
func (h *EntryHandler) Submit(c *gin.Context) {
	var req model.SubmitEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctx := c.Request.Context()
	uid := c.GetInt("user_id")
	m, err := h.auth.GetMember(ctx, uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown member"})
		return
	}

	var hoursY, hoursT *float64
	if h.estimator != nil {
		hoursY, hoursT, err = h.estimator.EstimateHours(ctx, req.Yesterday, req.Today)
		if err != nil {
			logger.Warn("entry.estimate_failed", "uid", uid, "err", err)
			hoursY, hoursT = nil, nil
		}
	}

	e, err := h.daily.Submit(ctx, *m, req, hoursY, hoursT, h.clock.Now().In(h.loc))
	if errors.Is(err, service.ErrInvalidEntry) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Error("entry.save_failed", "uid", uid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	logger.Info("entry.submitted", "uid", uid, "date", e.DailyDate, "id", e.ID)

	earned, err := h.achievements.CheckAllAchievements(ctx, m.ID, m.Workspace)
	if err != nil {
		logger.Warn("entry.achievement_check_failed", "uid", uid, "err", err)
	}
	if earned == nil {
		earned = []model.AchievementRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"entry": e, "achievements": earned})
}

// List handles GET /api/entries?from=&to= for the caller's own reports.
func (h *EntryHandler) List(c *gin.Context) {
	now := h.clock.Now().In(h.loc)
	from := c.DefaultQuery("from", now.AddDate(0, 0, -(defaultListDays-1)).Format(model.DateLayout))
	to := c.DefaultQuery("to", now.Format(model.DateLayout))
	entries, err := h.daily.ListByMember(c.Request.Context(), c.GetInt("user_id"), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}
