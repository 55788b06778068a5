package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	sdk "github.com/matrixorigin/moi-go-sdk"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	MOI       MOIConfig       `yaml:"moi"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// MOIConfig points at the LLM proxy used for sentiment scoring and hour
// estimates.
type MOIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	TokenTTLHrs int    `yaml:"token_ttl_hours"`
}

type AnalyticsConfig struct {
	Timezone        string `yaml:"timezone"`
	WeekStart       string `yaml:"week_start"`
	SentimentSample int    `yaml:"sentiment_sample"`
	RiskWindowDays  int    `yaml:"risk_window_days"`
	Workers         int    `yaml:"workers"`
	RosterTTLMin    int    `yaml:"roster_ttl_minutes"`
	// Workspaces processed by cmd/pulse when -workspace is empty.
	Workspaces []string `yaml:"workspaces"`
}

type CatalogConfig struct {
	Enabled        bool  `yaml:"enabled"`
	CatalogID      int64 `yaml:"catalog_id"`
	DatabaseID     int64 `yaml:"database_id"`
	MetricsTableID int64 `yaml:"metrics_table_id"`
	AlertsTableID  int64 `yaml:"alerts_table_id"`
}

func Load(configFile string) *Config {
	_ = godotenv.Load()

	c := &Config{
		Server:   ServerConfig{Port: 9871},
		MOI:      MOIConfig{BaseURL: "https://freetier-01.cn-hangzhou.cluster.cn-dev.matrixone.tech", Model: "qwen-plus"},
		Log:      LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Database: DatabaseConfig{Port: 6001, Name: "team_pulse"},
		Auth:     AuthConfig{JWTSecret: "team-pulse-dev-secret", TokenTTLHrs: 7 * 24},
		Analytics: AnalyticsConfig{
			Timezone:        "Local",
			WeekStart:       "monday",
			SentimentSample: 5,
			RiskWindowDays:  30,
			Workers:         4,
			RosterTTLMin:    10,
		},
	}

	paths := []string{"etc/config-dev.yaml", "/etc/team-pulse/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, c)
			break
		}
	}

	envOverride(&c.MOI.BaseURL, "MOI_BASE_URL")
	envOverride(&c.MOI.APIKey, "MOI_API_KEY")
	envOverride(&c.MOI.Model, "MOI_MODEL")
	envOverride(&c.Database.Host, "MO_HOST")
	envOverride(&c.Database.User, "MO_USER")
	envOverride(&c.Database.Password, "MO_PASS")
	envOverride(&c.Database.Name, "MO_DB")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverride(&c.Auth.JWTSecret, "JWT_SECRET")
	envOverride(&c.Analytics.Timezone, "PULSE_TIMEZONE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Database.Port, "MO_PORT")
	envOverrideInt(&c.Analytics.Workers, "PULSE_WORKERS")

	return c
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLHrs <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLHrs) * time.Hour
}

func (c *Config) RosterTTL() time.Duration {
	if c.Analytics.RosterTTLMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Analytics.RosterTTLMin) * time.Minute
}

// Location resolves the analytics time zone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	if c.Analytics.Timezone == "" || c.Analytics.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// WeekStart parses the configured first day of the week, Monday by default.
func (c *Config) WeekStart() time.Weekday {
	days := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
		"saturday": time.Saturday,
	}
	if d, ok := days[strings.ToLower(c.Analytics.WeekStart)]; ok {
		return d
	}
	return time.Monday
}

func (c *Config) OpenGormDB() (*gorm.DB, error) {
	cfg := gomysql.NewConfig()
	cfg.User = c.Database.User
	cfg.Passwd = c.Database.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
	cfg.DBName = c.Database.Name
	cfg.ParseTime = true
	cfg.Loc = c.Location()

	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func (c *Config) NewRawClient() (*sdk.RawClient, error) {
	return sdk.NewRawClient(c.MOI.BaseURL, c.MOI.APIKey)
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
