package checkpoint

import (
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	m := NewManager(t.TempDir())

	if err := m.Save("script_generated", map[string]any{"topic": "compound interest"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	record, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if record == nil {
		t.Fatal("Load() returned nil after Save()")
	}
	if record.Step != "script_generated" {
		t.Errorf("Step = %q, want script_generated", record.Step)
	}
	if record.Data["topic"] != "compound interest" {
		t.Errorf("Data[topic] = %v, want compound interest", record.Data["topic"])
	}
}

func TestShouldResume(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		save    bool
		elapsed time.Duration
		want    bool
	}{
		{name: "noCheckpoint", save: false, want: false},
		{name: "recentCheckpoint", save: true, elapsed: time.Hour, want: true},
		{name: "justUnderDayOld", save: true, elapsed: 24*time.Hour - time.Minute, want: true},
		{name: "staleCheckpoint", save: true, elapsed: 25 * time.Hour, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(t.TempDir())
			m.now = func() time.Time { return base }

			if tt.save {
				if err := m.Save("topic_generated", nil); err != nil {
					t.Fatal(err)
				}
			}

			m.now = func() time.Time { return base.Add(tt.elapsed) }
			if got := m.ShouldResume(); got != tt.want {
				t.Errorf("ShouldResume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStaleCheckpointIsCleared(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m := NewManager(t.TempDir())
	m.now = func() time.Time { return base }
	if err := m.Save("long_video_built", nil); err != nil {
		t.Fatal(err)
	}

	m.now = func() time.Time { return base.Add(25 * time.Hour) }
	if m.ShouldResume() {
		t.Fatal("ShouldResume() = true for 25h-old checkpoint")
	}

	record, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Errorf("stale checkpoint not cleared, Load() = %+v", record)
	}
}

func TestClear(t *testing.T) {
	m := NewManager(t.TempDir())

	if err := m.Save("thumbnail_rendered", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	record, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Errorf("Load() after Clear() = %+v, want nil", record)
	}
	if m.ShouldResume() {
		t.Error("ShouldResume() = true after Clear()")
	}
}
