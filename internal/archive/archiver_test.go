package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelpilot/internal/media"
)

func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestArchiveWritesAllArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	thumbnail := filepath.Join(t.TempDir(), "thumb.png")
	if err := os.WriteFile(thumbnail, []byte("png bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	archiver := NewArchiver(baseDir)
	archiver.now = fixedTime(time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC))

	dir, err := archiver.Archive(Entry{
		Type:   media.TypeLong,
		Topic:  "Deep sea creatures",
		Script: "Narration text",
		SEO: media.SEO{
			Title:       "Deep Sea Creatures Explained",
			Description: "A tour of the abyss.",
			Tags:        []string{"ocean", "science"},
		},
		ThumbnailPath: thumbnail,
		VideoID:       "abc123",
	})
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}

	want := filepath.Join(baseDir, "2025-12-22", "long")
	if dir != want {
		t.Errorf("archive dir = %q, want %q", dir, want)
	}

	for _, name := range []string{"script.json", "seo.txt", "thumbnail.png", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	var metadata entryMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		t.Fatal(err)
	}
	if metadata.Topic != "Deep sea creatures" {
		t.Errorf("topic = %q", metadata.Topic)
	}
	if metadata.YouTubeURL != "https://youtube.com/watch?v=abc123" {
		t.Errorf("youtube url = %q", metadata.YouTubeURL)
	}

	seo, err := os.ReadFile(filepath.Join(dir, "seo.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(seo), "Tags: ocean, science") {
		t.Errorf("seo.txt missing tags: %s", seo)
	}
}

func TestArchiveMissingThumbnailIsNotFatal(t *testing.T) {
	archiver := NewArchiver(t.TempDir())
	archiver.now = fixedTime(time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC))

	dir, err := archiver.Archive(Entry{
		Type:          media.ShortType(0),
		Topic:         "Clip",
		SEO:           media.SEO{Title: "Clip"},
		ThumbnailPath: "/nonexistent/thumb.png",
	})
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "thumbnail.png")); !os.IsNotExist(err) {
		t.Error("thumbnail created from missing source")
	}
}

func TestArchiveOmitsScriptWhenEmpty(t *testing.T) {
	archiver := NewArchiver(t.TempDir())
	dir, err := archiver.Archive(Entry{Type: media.TypeLong, Topic: "t", SEO: media.SEO{Title: "t"}})
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "script.json")); !os.IsNotExist(err) {
		t.Error("script.json written for empty script")
	}
}

func TestStats(t *testing.T) {
	baseDir := t.TempDir()
	archiver := NewArchiver(baseDir)

	if stats, err := archiver.Stats(); err != nil || stats.TotalDays != 0 {
		t.Errorf("empty archive: stats = %+v, err = %v", stats, err)
	}

	for _, day := range []struct {
		date   string
		videos []string
	}{
		{"2025-12-20", []string{"long"}},
		{"2025-12-22", []string{"long", "short_0", "short_1"}},
	} {
		for _, video := range day.videos {
			if err := os.MkdirAll(filepath.Join(baseDir, day.date, video), 0755); err != nil {
				t.Fatal(err)
			}
		}
	}
	// Stray files and non-date directories are ignored.
	if err := os.WriteFile(filepath.Join(baseDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "tmp"), 0755); err != nil {
		t.Fatal(err)
	}

	stats, err := archiver.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalDays != 2 {
		t.Errorf("TotalDays = %d, want 2", stats.TotalDays)
	}
	if stats.TotalVideos != 4 {
		t.Errorf("TotalVideos = %d, want 4", stats.TotalVideos)
	}
	if stats.OldestDate != "2025-12-20" || stats.NewestDate != "2025-12-22" {
		t.Errorf("date range = %s..%s", stats.OldestDate, stats.NewestDate)
	}
}

func TestMirrorObjectNames(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		rel    string
		want   string
	}{
		{name: "withPrefix", prefix: "archive", rel: "2025-12-22/long/seo.txt", want: "archive/2025-12-22/long/seo.txt"},
		{name: "noPrefix", prefix: "", rel: "2025-12-22/long/seo.txt", want: "2025-12-22/long/seo.txt"},
		{name: "prefixRoot", prefix: "archive", rel: "", want: "archive/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &GCSMirror{prefix: tt.prefix}
			if got := m.objectName(tt.rel); got != tt.want {
				t.Errorf("objectName(%q) = %q, want %q", tt.rel, got, tt.want)
			}
		})
	}
}
