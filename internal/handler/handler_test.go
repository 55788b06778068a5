package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"team-pulse/internal/middleware"
	"team-pulse/internal/model"
	"team-pulse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var now = time.Date(2026, 10, 16, 9, 15, 0, 0, time.UTC)

type neutral struct{}

func (neutral) ScoreSentiment(context.Context, string) float64 { return 0 }

type fixedHours struct{ err error }

func (f fixedHours) EstimateHours(context.Context, string, string) (*float64, *float64, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	d, p := 7.0, 6.0
	return &d, &p, nil
}

type testServer struct {
	router *gin.Engine
	signer *middleware.Signer
	db     *gorm.DB
	auth   *service.AuthService
}

func newTestServer(t *testing.T, estimator service.HourEstimator) *testServer {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	clock := service.FixedClock{T: now}
	daily := service.NewDailyService(db)
	auth := service.NewAuthService(db)
	roster := service.NewRosterCache(db, clock, time.Minute)
	calc := service.NewMetricsCalculator(daily, service.BulletTaskExtractor{}, neutral{}, clock, service.MetricsOptions{Location: time.UTC, WeekStart: time.Monday})
	team := service.NewTeamService(db, calc, roster, 2)
	alerts := service.NewAlertEngine(db, clock, service.DefaultDetectors(service.DetectorDeps{Entries: daily, Sentiment: neutral{}, Roster: roster, Location: time.UTC})...)
	achievements := service.NewAchievementEngine(db, daily, service.BulletTaskExtractor{}, roster, clock, time.UTC, 2)
	jobs := service.NewJobs(team, alerts, achievements)
	signer := middleware.NewSigner("test", time.Hour*48)

	authH := NewAuthHandler(auth, signer)
	entryH := NewEntryHandler(daily, auth, estimator, achievements, clock, time.UTC)
	dashH := NewDashboardHandler(roster, calc, team, alerts, achievements, jobs)
	importH := NewImportHandler(service.NewImportService(db, daily, time.UTC), clock, time.UTC)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/login", authH.Login)
	api := r.Group("/api", signer.JWTAuth())
	api.POST("/entries", entryH.Submit)
	api.GET("/entries", entryH.List)
	api.GET("/members/:id/metrics", dashH.MemberMetrics)
	api.GET("/members/:id/risk", dashH.MemberRisk)
	api.GET("/members/:id/achievements", dashH.MemberAchievements)
	api.GET("/metrics", dashH.TeamMetrics)
	api.GET("/alerts", dashH.Alerts)
	admin := api.Group("/admin", middleware.AdminOnly())
	admin.POST("/jobs/:job", dashH.RunJob)
	admin.POST("/import", importH.Upload)

	return &testServer{router: r, signer: signer, db: db, auth: auth}
}

func (s *testServer) member(t *testing.T, username, role string) (model.Member, string) {
	t.Helper()
	return s.memberIn(t, username, role, "core")
}

func (s *testServer) memberIn(t *testing.T, username, role, workspace string) (model.Member, string) {
	t.Helper()
	m := model.Member{Username: username, Name: strings.ToUpper(username), Role: role, Workspace: workspace}
	require.NoError(t, s.auth.CreateMember(context.Background(), &m, "pw"))
	token, err := s.signer.Issue(m.ID, m.Name, m.Role, m.Workspace)
	require.NoError(t, err)
	return m, token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)
	s.member(t, "ann", "member")

	w := s.do(http.MethodPost, "/api/login", "", model.LoginRequest{Username: "ann", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "core", resp.User.Workspace)

	w = s.do(http.MethodPost, "/api/login", "", model.LoginRequest{Username: "ann", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitEntry(t *testing.T) {
	s := newTestServer(t, fixedHours{})
	m, token := s.member(t, "ben", "member")

	w := s.do(http.MethodPost, "/api/entries", token, model.SubmitEntryRequest{Yesterday: "- wrote tests", Today: "- ship"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Entry        model.Entry               `json:"entry"`
		Achievements []model.AchievementRecord `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-16", resp.Entry.DailyDate)
	require.NotNil(t, resp.Entry.HoursYesterday)
	assert.Equal(t, 7.0, *resp.Entry.HoursYesterday)
	assert.Empty(t, resp.Achievements)

	w = s.do(http.MethodPost, "/api/entries", token, model.SubmitEntryRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/entries", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []model.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, m.ID, entries[0].MemberID)
}

func TestSubmitEntryWithoutEstimate(t *testing.T) {
	s := newTestServer(t, fixedHours{err: errors.New("proxy down")})
	_, token := s.member(t, "cat", "member")

	w := s.do(http.MethodPost, "/api/entries", token, model.SubmitEntryRequest{Today: "- plan"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Entry model.Entry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Entry.HoursYesterday)
	assert.Nil(t, resp.Entry.HoursToday)
}

func TestMemberViewsAreScoped(t *testing.T) {
	s := newTestServer(t, nil)
	m, token := s.member(t, "dee", "member")
	other, _ := s.member(t, "eli", "member")
	_, adminToken := s.member(t, "root", "admin")

	w := s.do(http.MethodGet, fmt.Sprintf("/api/members/%d/metrics", m.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/members/%d/risk", other.ID), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/members/%d/risk", other.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/members/%d/metrics?period=year", m.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminCannotReadOtherWorkspace(t *testing.T) {
	s := newTestServer(t, nil)
	m, token := s.member(t, "gil", "member")
	_, outsider := s.memberIn(t, "hub", "admin", "other")
	s.do(http.MethodPost, "/api/entries", token, model.SubmitEntryRequest{Yesterday: "- a"})

	for _, path := range []string{"metrics", "risk", "achievements"} {
		w := s.do(http.MethodGet, fmt.Sprintf("/api/members/%d/%s", m.ID, path), outsider, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.NotContains(t, w.Body.String(), "overall_score", path)
	}

	w := s.do(http.MethodGet, fmt.Sprintf("/api/members/%d/metrics", m.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec model.MetricsRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "core", rec.Workspace)
}

func TestRunJob(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.member(t, "fin", "member")
	_, adminToken := s.member(t, "boss", "admin")
	s.do(http.MethodPost, "/api/entries", token, model.SubmitEntryRequest{Yesterday: "- a"})

	w := s.do(http.MethodPost, "/api/admin/jobs/metrics", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, "/api/admin/jobs/reindex", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/admin/jobs/metrics?period=week", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job model.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.NotEmpty(t, job.RunID)
	assert.Equal(t, "core", job.Workspace)

	w = s.do(http.MethodGet, "/api/metrics", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var team struct {
		PeriodStart string                `json:"period_start"`
		Records     []model.MetricsRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &team))
	assert.Equal(t, "2026-10-12", team.PeriodStart)
	require.Len(t, team.Records, 1)
	assert.Equal(t, 100, team.Records[0].Percentile)

	w = s.do(http.MethodGet, "/api/alerts?status=all", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
