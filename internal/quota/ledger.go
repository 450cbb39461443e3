// Package quota enforces the platform's daily API budget. Usage is an
// append-only ledger in an embedded sqlite database: quota correctness is
// safety-critical (blowing the budget can suspend the account), so the daemon
// and manual invocations share one transactional store instead of a flat
// file.
package quota

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The quota day rolls over at midnight Pacific Time. This is a platform rule,
// independent of whatever timezone content is scheduled in, and is not
// configurable.
const resetTimezone = "America/Los_Angeles"

// Per-operation costs in quota units, defined by the platform.
const (
	CostUpload    = 1600
	CostComment   = 50
	CostUpdate    = 50
	CostList      = 1
	CostThumbnail = 0
)

var operationCosts = map[string]int{
	"upload":    CostUpload,
	"comment":   CostComment,
	"update":    CostUpdate,
	"list":      CostList,
	"thumbnail": CostThumbnail,
}

// Cost returns the unit cost of an operation; unknown operations cost 1.
func Cost(operation string) int {
	if cost, ok := operationCosts[operation]; ok {
		return cost
	}
	return 1
}

// QuotaExceededError means the operation cannot run before the next reset
// boundary. It is not retryable in-process: the caller defers the work.
type QuotaExceededError struct {
	Operation string
	Need      int
	Remaining int
	ResetAt   time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("insufficient quota for %s: need %d, have %d, resets at %s",
		e.Operation, e.Need, e.Remaining, e.ResetAt.Format(time.RFC3339))
}

type usageRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Operation string    `gorm:"size:32;not null"`
	Cost      int       `gorm:"not null"`
	Timestamp time.Time `gorm:"index;not null"`
	ResetAt   time.Time `gorm:"index;not null"`
	Metadata  string
}

func (usageRecord) TableName() string { return "quota_usage" }

// Entry is a ledger row as exposed to callers.
type Entry struct {
	Operation string
	Cost      int
	Timestamp time.Time
}

// Usage describes the current quota period.
type Usage struct {
	Used       int
	Remaining  int
	Limit      int
	ResetAt    time.Time
	Percentage float64
}

type Ledger struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create quota directory: %w", err)
	}

	// busy_timeout lets the daemon and a manual invocation contend on the
	// same database without immediate lock errors.
	dsn := path + "?_pragma=busy_timeout(10000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open quota database: %w", err)
	}

	if err := db.AutoMigrate(&usageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate quota schema: %w", err)
	}

	loc, err := time.LoadLocation(resetTimezone)
	if err != nil {
		return nil, fmt.Errorf("load quota timezone: %w", err)
	}

	return &Ledger{db: db, loc: loc, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ResetBoundary returns the next midnight in the platform's quota timezone.
func (l *Ledger) ResetBoundary() time.Time {
	now := l.now().In(l.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.loc)
	return midnight.AddDate(0, 0, 1)
}

// CurrentUsage prunes entries from past quota periods, then sums the rest.
func (l *Ledger) CurrentUsage(dailyLimit int) (Usage, error) {
	now := l.now().UTC()

	var used int64
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reset_at <= ?", now).Delete(&usageRecord{}).Error; err != nil {
			return err
		}
		return tx.Model(&usageRecord{}).
			Where("reset_at > ?", now).
			Select("COALESCE(SUM(cost), 0)").
			Scan(&used).Error
	})
	if err != nil {
		return Usage{}, fmt.Errorf("read quota usage: %w", err)
	}

	usage := Usage{
		Used:      int(used),
		Remaining: dailyLimit - int(used),
		Limit:     dailyLimit,
		ResetAt:   l.ResetBoundary(),
	}
	if dailyLimit > 0 {
		usage.Percentage = float64(used) / float64(dailyLimit) * 100
	}
	return usage, nil
}

// CheckAvailable returns a *QuotaExceededError when the operation's cost does
// not fit in the remaining budget.
func (l *Ledger) CheckAvailable(operation string, dailyLimit int) error {
	cost := Cost(operation)
	usage, err := l.CurrentUsage(dailyLimit)
	if err != nil {
		return err
	}

	if usage.Remaining < cost {
		return &QuotaExceededError{
			Operation: operation,
			Need:      cost,
			Remaining: usage.Remaining,
			ResetAt:   usage.ResetAt,
		}
	}
	return nil
}

// Record appends a ledger entry stamped with the current reset boundary.
func (l *Ledger) Record(operation string, cost int, metadata string) error {
	record := usageRecord{
		Operation: operation,
		Cost:      cost,
		Timestamp: l.now().UTC(),
		ResetAt:   l.ResetBoundary().UTC(),
		Metadata:  metadata,
	}
	if err := l.db.Create(&record).Error; err != nil {
		return fmt.Errorf("record quota usage: %w", err)
	}
	slog.Info("Recorded quota usage", "operation", operation, "cost", cost)
	return nil
}

// History returns ledger entries from the last N days, newest first.
func (l *Ledger) History(days int) ([]Entry, error) {
	since := l.now().UTC().AddDate(0, 0, -days)

	var rows []usageRecord
	err := l.db.Where("timestamp >= ?", since).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read quota history: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = Entry{Operation: row.Operation, Cost: row.Cost, Timestamp: row.Timestamp}
	}
	return entries, nil
}
