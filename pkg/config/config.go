package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"reelpilot/internal/schedule"
)

const (
	defaultConfigPath    = "config.yaml"
	defaultDataDir       = "./data"
	defaultArchiveDir    = "./archive"
	defaultQuotaDBPath   = "./data/quota.db"
	defaultTokenPath     = "./youtube_token.json"
	defaultPrivacyStatus = "private"
	defaultTimezone      = "Asia/Kolkata"
	defaultBufferHours   = 2
	defaultJitterMinutes = 10
	defaultDailyQuota    = 10000
	defaultMaxAttempts   = 3
	defaultWindowMinutes = 5
	defaultUploadBuffer  = 1
	defaultPollSeconds   = 60
	defaultCleanupHours  = 24
	defaultSweepHours    = 6
	defaultGCSPrefix     = "archive"
)

type Config struct {
	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeTokenPath    string
	GCSBucket           string

	Storage  StorageConfig  `yaml:"storage"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Upload   UploadConfig   `yaml:"upload"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	ArchiveDir  string `yaml:"archive_dir"`
	QuotaDBPath string `yaml:"quota_db_path"`
}

// ScheduleConfig holds publish slot tables as weekday name to "HH:MM"
// strings, the way they read naturally in YAML.
type ScheduleConfig struct {
	Timezone      string            `yaml:"timezone"`
	LongSlots     map[string]string `yaml:"long_slots"`
	ShortSlots    map[string]string `yaml:"short_slots"`
	BufferHours   int               `yaml:"buffer_hours"`
	JitterMinutes int               `yaml:"jitter_minutes"`
}

type UploadConfig struct {
	DailyQuota    int      `yaml:"daily_quota"`
	MaxAttempts   int      `yaml:"max_attempts"`
	WindowMinutes int      `yaml:"window_minutes"`
	BufferHours   int      `yaml:"buffer_hours"`
	PollSeconds   int      `yaml:"poll_seconds"`
	PrivacyStatus string   `yaml:"privacy_status"`
	DefaultTags   []string `yaml:"default_tags"`
}

type CleanupConfig struct {
	MaxAgeHours   int `yaml:"max_age_hours"`
	IntervalHours int `yaml:"interval_hours"`
}

type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	GCSMirror bool   `yaml:"gcs_mirror"`
	GCSPrefix string `yaml:"gcs_prefix"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		YouTubeClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		YouTubeTokenPath:    getEnvOrDefault("YOUTUBE_TOKEN_PATH", defaultTokenPath),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
	}

	loadYAMLConfig(cfg)
	applyDefaults(cfg)

	return cfg
}

func loadYAMLConfig(cfg *Config) {
	data, err := os.ReadFile(defaultConfigPath)
	if err != nil {
		slog.Warn("No config.yaml found, using defaults")
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Error("Failed to parse config.yaml", "error", err)
	}
}

func applyDefaults(cfg *Config) {
	applyStorageDefaults(cfg)
	applyScheduleDefaults(cfg)
	applyUploadDefaults(cfg)
	applyCleanupDefaults(cfg)
	applyArchiveDefaults(cfg)
}

func applyStorageDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir
	}
	if cfg.Storage.ArchiveDir == "" {
		cfg.Storage.ArchiveDir = defaultArchiveDir
	}
	if cfg.Storage.QuotaDBPath == "" {
		cfg.Storage.QuotaDBPath = defaultQuotaDBPath
	}
}

func applyScheduleDefaults(cfg *Config) {
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = defaultTimezone
	}
	if cfg.Schedule.BufferHours == 0 {
		cfg.Schedule.BufferHours = defaultBufferHours
	}
	if cfg.Schedule.JitterMinutes == 0 {
		cfg.Schedule.JitterMinutes = defaultJitterMinutes
	}
}

func applyUploadDefaults(cfg *Config) {
	if cfg.Upload.DailyQuota == 0 {
		cfg.Upload.DailyQuota = defaultDailyQuota
	}
	if cfg.Upload.MaxAttempts == 0 {
		cfg.Upload.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Upload.WindowMinutes == 0 {
		cfg.Upload.WindowMinutes = defaultWindowMinutes
	}
	if cfg.Upload.BufferHours == 0 {
		cfg.Upload.BufferHours = defaultUploadBuffer
	}
	if cfg.Upload.PollSeconds == 0 {
		cfg.Upload.PollSeconds = defaultPollSeconds
	}
	if cfg.Upload.PrivacyStatus == "" {
		cfg.Upload.PrivacyStatus = defaultPrivacyStatus
	}
}

func applyCleanupDefaults(cfg *Config) {
	if cfg.Cleanup.MaxAgeHours == 0 {
		cfg.Cleanup.MaxAgeHours = defaultCleanupHours
	}
	if cfg.Cleanup.IntervalHours == 0 {
		cfg.Cleanup.IntervalHours = defaultSweepHours
	}
}

func applyArchiveDefaults(cfg *Config) {
	if cfg.Archive.GCSPrefix == "" {
		cfg.Archive.GCSPrefix = defaultGCSPrefix
	}
}

// LongTable converts the configured long-form slots to a schedule table.
// Unparseable or missing entries fall through to the built-in defaults.
func (c *ScheduleConfig) LongTable() schedule.WeekTable {
	return parseWeekTable(c.LongSlots)
}

func (c *ScheduleConfig) ShortTable() schedule.WeekTable {
	return parseWeekTable(c.ShortSlots)
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

func parseWeekTable(slots map[string]string) schedule.WeekTable {
	if len(slots) == 0 {
		return nil
	}

	table := make(schedule.WeekTable, len(slots))
	for name, value := range slots {
		weekday, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			slog.Warn("Unknown weekday in slot table", "weekday", name)
			continue
		}
		slot, err := parseSlot(value)
		if err != nil {
			slog.Warn("Invalid slot time", "weekday", name, "value", value, "error", err)
			continue
		}
		table[weekday] = slot
	}
	return table
}

func parseSlot(value string) (schedule.Slot, error) {
	hourStr, minuteStr, ok := strings.Cut(value, ":")
	if !ok {
		return schedule.Slot{}, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hourStr))
	if err != nil || hour < 0 || hour > 23 {
		return schedule.Slot{}, fmt.Errorf("invalid hour %q", hourStr)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(minuteStr))
	if err != nil || minute < 0 || minute > 59 {
		return schedule.Slot{}, fmt.Errorf("invalid minute %q", minuteStr)
	}
	return schedule.Slot{Hour: hour, Minute: minute}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
