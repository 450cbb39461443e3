// Package archive keeps a dated record of every published video so content
// can be audited or recreated after the working files are cleaned up.
//
// Layout under the archive root:
//
//	2025-12-22/
//	  long/
//	    script.json
//	    seo.txt
//	    thumbnail.png
//	    metadata.json
//	  short_0/
//	    ...
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelpilot/internal/media"
)

const dateLayout = "2006-01-02"

// Entry is everything worth keeping about one published video.
type Entry struct {
	Type          media.Type
	Topic         string
	Script        string
	SEO           media.SEO
	ThumbnailPath string
	VideoID       string
}

type entryMetadata struct {
	Topic      string `json:"topic"`
	VideoID    string `json:"video_id,omitempty"`
	VideoType  string `json:"video_type"`
	ArchivedAt string `json:"archived_at"`
	YouTubeURL string `json:"youtube_url,omitempty"`
}

// Stats summarizes the archive contents for status reporting.
type Stats struct {
	TotalDays   int
	TotalVideos int
	OldestDate  string
	NewestDate  string
}

type Archiver struct {
	baseDir string

	now func() time.Time
}

func NewArchiver(baseDir string) *Archiver {
	return &Archiver{baseDir: baseDir, now: time.Now}
}

// Archive writes the entry under a date directory and returns its path.
// Archival runs after the upload succeeded, so callers treat a failure here
// as a warning rather than a reason to fail the video.
func (a *Archiver) Archive(entry Entry) (string, error) {
	dir := filepath.Join(a.baseDir, a.now().Format(dateLayout), string(entry.Type))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if entry.Script != "" {
		script, err := json.MarshalIndent(map[string]string{"content": entry.Script}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal script: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "script.json"), script, 0644); err != nil {
			return "", fmt.Errorf("failed to write script: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "seo.txt"), []byte(formatSEO(entry.SEO)), 0644); err != nil {
		return "", fmt.Errorf("failed to write seo: %w", err)
	}

	if entry.ThumbnailPath != "" {
		if err := copyFile(entry.ThumbnailPath, filepath.Join(dir, "thumbnail.png")); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to copy thumbnail: %w", err)
		}
	}

	metadata := entryMetadata{
		Topic:      entry.Topic,
		VideoID:    entry.VideoID,
		VideoType:  string(entry.Type),
		ArchivedAt: a.now().Format(time.RFC3339),
	}
	if entry.VideoID != "" {
		metadata.YouTubeURL = "https://youtube.com/watch?v=" + entry.VideoID
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	return dir, nil
}

// Stats counts archived days and videos by walking the date directories.
func (a *Archiver) Stats() (Stats, error) {
	days, err := os.ReadDir(a.baseDir)
	if os.IsNotExist(err) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var stats Stats
	for _, day := range days {
		if !day.IsDir() {
			continue
		}
		if _, err := time.Parse(dateLayout, day.Name()); err != nil {
			continue
		}

		stats.TotalDays++
		if stats.OldestDate == "" || day.Name() < stats.OldestDate {
			stats.OldestDate = day.Name()
		}
		if day.Name() > stats.NewestDate {
			stats.NewestDate = day.Name()
		}

		videos, err := os.ReadDir(filepath.Join(a.baseDir, day.Name()))
		if err != nil {
			continue
		}
		for _, video := range videos {
			if video.IsDir() {
				stats.TotalVideos++
			}
		}
	}
	return stats, nil
}

func formatSEO(seo media.SEO) string {
	var b strings.Builder
	b.WriteString("Title: " + seo.Title + "\n")
	b.WriteString("Description:\n" + seo.Description + "\n")
	if len(seo.Tags) > 0 {
		b.WriteString("Tags: " + strings.Join(seo.Tags, ", ") + "\n")
	}
	return b.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
