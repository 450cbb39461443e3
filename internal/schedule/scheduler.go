// Package schedule computes publish timestamps from a configurable slot
// table. All functions are pure over the passed-in clock value and always
// return a time strictly after it; on any internal failure they fall back to
// a safe default rather than erroring, so scheduling can never abort a
// pipeline run.
package schedule

import (
	"log/slog"
	"math/rand"
	"time"

	"reelpilot/internal/media"
)

// Slot is a local wall-clock time of day.
type Slot struct {
	Hour   int
	Minute int
}

// WeekTable maps each weekday to its publish slot.
type WeekTable map[time.Weekday]Slot

// Default slot tables, tuned for evening audience peaks. Long-form goes out
// in primetime; shorts lean slightly later.
var (
	DefaultLongTable = WeekTable{
		time.Monday:    {20, 30},
		time.Tuesday:   {20, 30},
		time.Wednesday: {21, 0},
		time.Thursday:  {20, 30},
		time.Friday:    {19, 30},
		time.Saturday:  {20, 30},
		time.Sunday:    {20, 0},
	}
	DefaultShortTable = WeekTable{
		time.Monday:    {20, 30},
		time.Tuesday:   {21, 0},
		time.Wednesday: {21, 0},
		time.Thursday:  {21, 0},
		time.Friday:    {20, 0},
		time.Saturday:  {19, 0},
		time.Sunday:    {18, 30},
	}
)

// RotatingSlots are the intra-day windows shorts rotate through when anchored
// to a long-form publish: commute, lunch, before-bed, evening leisure,
// post-lunch.
var RotatingSlots = []Slot{
	{18, 30},
	{12, 30},
	{22, 0},
	{19, 0},
	{13, 0},
}

const (
	fallbackHour      = 12
	defaultBuffer     = 2 * time.Hour
	defaultJitter     = 10 * time.Minute
	defaultShortSlack = 12 * time.Hour
)

// Options configures slot computation. Zero values pick sensible defaults
// (negative Jitter disables it); Rand may be fixed for deterministic tests.
type Options struct {
	Timezone string
	Table    WeekTable
	Buffer   time.Duration
	Jitter   time.Duration
	Rand     *rand.Rand
}

// TableFor returns the built-in slot table for a content type.
func TableFor(t media.Type) WeekTable {
	if t.IsShort() {
		return DefaultShortTable
	}
	return DefaultLongTable
}

// NextSlot returns the next valid publish instant for contentType: today's
// configured slot if it is still at least Buffer away, otherwise the same
// slot tomorrow, with uniform jitter so posting times never look mechanical.
// The result is UTC and strictly after now.
func NextSlot(now time.Time, contentType media.Type, opts Options) time.Time {
	loc, err := time.LoadLocation(timezone(opts))
	if err != nil {
		slog.Warn("Bad schedule timezone, using fallback slot", "timezone", opts.Timezone, "error", err)
		return fallback(now)
	}

	table := opts.Table
	if table == nil {
		table = TableFor(contentType)
	}

	nowLocal := now.In(loc)
	slot, ok := table[nowLocal.Weekday()]
	if !ok {
		slot, ok = TableFor(contentType)[nowLocal.Weekday()]
		if !ok {
			return fallback(now)
		}
	}

	candidate := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), slot.Hour, slot.Minute, 0, 0, loc)
	if !nowLocal.Before(candidate.Add(-buffer(opts))) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	candidate = candidate.Add(jitterOffset(opts))

	return ensureFuture(candidate.UTC(), now)
}

// ShortSlot schedules the short at position index relative to its long-form
// anchor: day base+(index+1) at the rotating slot for that position, with
// jitter. The result is UTC and strictly after now.
func ShortSlot(now time.Time, index int, basePublish time.Time, opts Options) time.Time {
	if index < 0 {
		index = 0
	}

	loc, err := time.LoadLocation(timezone(opts))
	if err != nil {
		slog.Warn("Bad schedule timezone, using fallback slot", "timezone", opts.Timezone, "error", err)
		return ensureFuture(basePublish.Add(time.Duration(index+1)*24*time.Hour+defaultShortSlack).UTC(), now)
	}

	slot := RotatingSlots[index%len(RotatingSlots)]
	baseLocal := basePublish.In(loc).AddDate(0, 0, index+1)
	candidate := time.Date(baseLocal.Year(), baseLocal.Month(), baseLocal.Day(), slot.Hour, slot.Minute, 0, 0, loc)
	candidate = candidate.Add(jitterOffset(opts))

	return ensureFuture(candidate.UTC(), now)
}

// ISO8601 formats a publish instant the way the upload API expects it.
func ISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ensureFuture rolls the candidate forward in whole days until it is strictly
// after now. Clock skew or a misconfigured table can make the naive result
// land in the past; returning a past publish time is never acceptable.
func ensureFuture(candidate, now time.Time) time.Time {
	for !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func fallback(now time.Time) time.Time {
	tomorrow := now.UTC().AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), fallbackHour, 0, 0, 0, time.UTC)
}

func timezone(opts Options) string {
	if opts.Timezone == "" {
		return "UTC"
	}
	return opts.Timezone
}

func buffer(opts Options) time.Duration {
	if opts.Buffer <= 0 {
		return defaultBuffer
	}
	return opts.Buffer
}

func jitterOffset(opts Options) time.Duration {
	jitter := opts.Jitter
	if jitter == 0 {
		jitter = defaultJitter
	}
	if jitter < 0 {
		return 0
	}

	span := int64(2*jitter + 1)
	var n int64
	if opts.Rand != nil {
		n = opts.Rand.Int63n(span)
	} else {
		n = rand.Int63n(span)
	}
	return time.Duration(n) - jitter
}
