package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const DateLayout = "2006-01-02"

type Member struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;uniqueIndex" json:"username"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Role      string    `gorm:"default:member" json:"role"`
	Workspace string    `gorm:"size:64;index" json:"workspace"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one member's report for one calendar day. Re-submitting on the
// same day overwrites the text columns.
type Entry struct {
	ID                int       `gorm:"primaryKey" json:"id"`
	MemberID          int       `gorm:"uniqueIndex:uk_member_date" json:"member_id"`
	Workspace         string    `gorm:"size:64;index" json:"workspace"`
	MemberName        string    `json:"member_name"`
	DailyDate         string    `gorm:"size:10;uniqueIndex:uk_member_date;index" json:"daily_date"`
	Yesterday         string    `gorm:"type:text" json:"yesterday"`
	Today             string    `gorm:"type:text" json:"today"`
	Blockers          string    `gorm:"type:text" json:"blockers"`
	Notes             string    `gorm:"type:text" json:"notes"`
	HoursYesterday    *float64  `json:"hours_yesterday,omitempty"`
	HoursToday        *float64  `json:"hours_today,omitempty"`
	SentimentEligible bool      `json:"sentiment_eligible"`
	Source            string    `gorm:"size:16;default:web" json:"source"`
	SubmittedAt       time.Time `json:"submitted_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Hours returns the effort estimate used by workload checks: the estimate
// for work already done, falling back to the plan for today.
func (e Entry) Hours() (float64, bool) {
	if e.HoursYesterday != nil {
		return *e.HoursYesterday, true
	}
	if e.HoursToday != nil {
		return *e.HoursToday, true
	}
	return 0, false
}

// Text joins the free-text sections, used as sentiment input.
func (e Entry) Text() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{e.Yesterday, e.Today, e.Blockers, e.Notes} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

type PeriodType string

const (
	PeriodWeek    PeriodType = "week"
	PeriodMonth   PeriodType = "month"
	PeriodQuarter PeriodType = "quarter"
)

func (p PeriodType) Valid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodQuarter:
		return true
	}
	return false
}

type MetricsRecord struct {
	ID          int        `gorm:"primaryKey" json:"id"`
	Workspace   string     `gorm:"size:64;index" json:"workspace"`
	MemberID    int        `gorm:"uniqueIndex:uk_member_period" json:"member_id"`
	MemberName  string     `json:"member_name"`
	PeriodType  PeriodType `gorm:"size:16;uniqueIndex:uk_member_period" json:"period_type"`
	PeriodStart string     `gorm:"size:10;uniqueIndex:uk_member_period" json:"period_start"`
	PeriodEnd   string     `gorm:"size:10" json:"period_end"`

	Submissions      int `json:"submissions"`
	ExpectedSubmits  int `json:"expected_submissions"`
	ConsistencyScore int `json:"consistency_score"`

	TotalTasks     int     `json:"total_tasks"`
	AvgTasksPerDay float64 `json:"avg_tasks_per_day"`
	VelocityTrend  string  `gorm:"size:16" json:"velocity_trend"`

	BlockerCount     int                         `json:"blocker_count"`
	BlockerFrequency int                         `json:"blocker_frequency"`
	BlockerKeywords  datatypes.JSONSlice[string] `json:"blocker_keywords"`

	AvgSubmitTime   string `gorm:"size:5" json:"avg_submit_time"`
	LateSubmissions int    `json:"late_submissions"`

	AvgSentiment   float64 `json:"avg_sentiment"`
	SentimentTrend string  `gorm:"size:16" json:"sentiment_trend"`

	RiskLevel   string                      `gorm:"size:16" json:"risk_level"`
	RiskFactors datatypes.JSONSlice[string] `json:"risk_factors"`
	RiskScore   int                         `json:"risk_score"`

	EngagementScore int     `json:"engagement_score"`
	OverallScore    int     `json:"overall_score"`
	TeamAverage     float64 `json:"team_average"`
	Percentile      int     `json:"percentile"`

	ComputedAt time.Time `json:"computed_at"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Priority orders alerts for display; higher is more urgent.
func (s Severity) Priority() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}

const (
	AlertActive    = "active"
	AlertDismissed = "dismissed"
)

type AlertRecord struct {
	ID               int                         `gorm:"primaryKey" json:"id"`
	Workspace        string                      `gorm:"size:64;index:idx_alert_key" json:"workspace"`
	Type             string                      `gorm:"size:32;index:idx_alert_key" json:"type"`
	MemberID         int                         `gorm:"index:idx_alert_key" json:"member_id"`
	MemberName       string                      `json:"member_name"`
	Severity         Severity                    `gorm:"size:16" json:"severity"`
	Title            string                      `json:"title"`
	Description      string                      `gorm:"type:text" json:"description"`
	MetricName       string                      `gorm:"size:64" json:"metric_name,omitempty"`
	CurrentValue     *float64                    `json:"current_value,omitempty"`
	Threshold        *float64                    `json:"threshold,omitempty"`
	RelatedEntryIDs  datatypes.JSONSlice[int]    `json:"related_entry_ids"`
	SuggestedActions datatypes.JSONSlice[string] `json:"suggested_actions"`
	Status           string                      `gorm:"size:16;index;default:active" json:"status"`
	Recurring        bool                        `json:"recurring"`
	OccurrenceCount  int                         `gorm:"default:1" json:"occurrence_count"`
	Priority         int                         `json:"priority"`
	CreatedAt        time.Time                   `json:"created_at"`
	LastOccurredAt   time.Time                   `json:"last_occurred_at"`
	ExpiresAt        time.Time                   `gorm:"index" json:"expires_at"`
	DismissedAt      *time.Time                  `json:"dismissed_at,omitempty"`
	ResolutionNote   string                      `json:"resolution_note,omitempty"`
}

type AchievementType string

const (
	AchievementStreak      AchievementType = "streak"
	AchievementVelocity    AchievementType = "velocity"
	AchievementEarlyBird   AchievementType = "early_bird"
	AchievementConsistency AchievementType = "consistency"
)

type AchievementLevel string

const (
	LevelBronze   AchievementLevel = "bronze"
	LevelSilver   AchievementLevel = "silver"
	LevelGold     AchievementLevel = "gold"
	LevelPlatinum AchievementLevel = "platinum"
)

type AchievementRecord struct {
	ID          int              `gorm:"primaryKey" json:"id"`
	MemberID    int              `gorm:"uniqueIndex:uk_member_badge" json:"member_id"`
	MemberName  string           `json:"member_name"`
	Workspace   string           `gorm:"size:64;index" json:"workspace"`
	Type        AchievementType  `gorm:"size:32;uniqueIndex:uk_member_badge" json:"type"`
	Level       AchievementLevel `gorm:"size:16;uniqueIndex:uk_member_badge" json:"level"`
	BadgeName   string           `json:"badge_name"`
	BadgeIcon   string           `json:"badge_icon"`
	Description string           `json:"description"`
	Threshold   float64          `json:"threshold"`
	EarnedAt    time.Time        `json:"earned_at"`
	Active      bool             `gorm:"default:true" json:"active"`
}

func (Member) TableName() string            { return "members" }
func (Entry) TableName() string             { return "daily_entries" }
func (MetricsRecord) TableName() string     { return "metrics_records" }
func (AlertRecord) TableName() string       { return "alert_records" }
func (AchievementRecord) TableName() string { return "achievement_records" }

// All lists the models migrated at startup.
func All() []any {
	return []any{&Member{}, &Entry{}, &MetricsRecord{}, &AlertRecord{}, &AchievementRecord{}}
}
