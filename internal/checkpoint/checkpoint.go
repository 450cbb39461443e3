// Package checkpoint records the most recent completed pipeline step so a
// crashed run can resume instead of restarting from scratch.
package checkpoint

import (
	"log/slog"
	"time"

	"reelpilot/pkg/statestore"
)

const fileName = "pipeline_checkpoint.json"

// maxAge bounds how long a checkpoint stays resumable. Anything older is
// treated as stale and cleared.
const maxAge = 24 * time.Hour

// Record is the single-slot checkpoint document, overwritten on every save.
type Record struct {
	Step      string         `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type Manager struct {
	doc *statestore.Document[Record]
	now func() time.Time
}

func NewManager(dataDir string) *Manager {
	return &Manager{
		doc: statestore.NewDocument[Record](dataDir, fileName),
		now: time.Now,
	}
}

// Save overwrites the checkpoint. Checkpoint loss is non-fatal (the next run
// restarts from step one), so the write is best-effort with no retries.
func (m *Manager) Save(step string, data map[string]any) error {
	record := Record{
		Step:      step,
		Timestamp: m.now(),
		Data:      data,
	}
	if err := m.doc.Save(record); err != nil {
		slog.Error("Failed to save checkpoint", "step", step, "error", err)
		return err
	}
	slog.Info("Checkpoint saved", "step", step)
	return nil
}

// Load returns the current checkpoint, or nil when none exists.
func (m *Manager) Load() (*Record, error) {
	if !m.doc.Exists() {
		return nil, nil
	}
	record, err := m.doc.Load()
	if err != nil {
		return nil, err
	}
	if record.Step == "" {
		return nil, nil
	}
	return &record, nil
}

// ShouldResume reports whether a recent checkpoint exists. A checkpoint older
// than 24 hours is cleared and reported non-resumable.
func (m *Manager) ShouldResume() bool {
	record, err := m.Load()
	if err != nil || record == nil {
		return false
	}

	age := m.now().Sub(record.Timestamp)
	if age >= maxAge {
		slog.Warn("Checkpoint too old, clearing", "step", record.Step, "age", age)
		_ = m.Clear()
		return false
	}

	slog.Info("Found recent checkpoint, can resume", "step", record.Step, "age", age)
	return true
}

// Clear removes the checkpoint, called after a fully successful run.
func (m *Manager) Clear() error {
	return m.doc.Remove()
}
