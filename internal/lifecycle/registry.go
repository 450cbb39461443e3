// Package lifecycle tracks every rendered video artifact from creation
// through upload to safe deletion.
//
// Deletion is gated on confirmed upload AND the scheduled publish time being
// safely in the past. A record scheduled for future publication is never
// deleted, whatever its upload status or age: removing unpublished content is
// an unrecoverable loss.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"reelpilot/internal/media"
	"reelpilot/pkg/statestore"
)

const fileName = "video_lifecycle.json"

// VideoRecord is one entry per rendered artifact. ScheduledTime is kept as
// the ISO-8601 string handed in at registration; it is immutable once set and
// parsed on use so one malformed record cannot poison the whole document.
type VideoRecord struct {
	ID              string         `json:"id"`
	FilePath        string         `json:"file_path"`
	ThumbnailPath   string         `json:"thumbnail_path,omitempty"`
	VideoType       media.Type     `json:"video_type"`
	Topic           string         `json:"topic"`
	ScheduledTime   string         `json:"scheduled_time"`
	CreatedAt       time.Time      `json:"created_at"`
	Status          Status         `json:"status"`
	ExternalVideoID string         `json:"external_video_id,omitempty"`
	UploadAttempts  int            `json:"upload_attempts"`
	LastAttempt     *time.Time     `json:"last_attempt,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	UploadedAt      *time.Time     `json:"uploaded_at,omitempty"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty"`
	Metadata        media.Metadata `json:"metadata"`
}

type registryDB struct {
	Videos      []VideoRecord `json:"videos"`
	LastCleanup *time.Time    `json:"last_cleanup,omitempty"`
}

// Stats summarizes the registry for monitoring.
type Stats struct {
	TotalVideos   int
	ByStatus      map[Status]int
	TotalSizeMB   float64
	PendingUpload int
	LastCleanup   *time.Time
}

type Registry struct {
	doc *statestore.Document[registryDB]
	now func() time.Time
}

func NewRegistry(dataDir string) *Registry {
	return &Registry{
		doc: statestore.NewDocument[registryDB](dataDir, fileName),
		now: time.Now,
	}
}

// Register appends a new record with status created and returns its id.
func (r *Registry) Register(filePath string, videoType media.Type, topic, scheduledTime string, metadata media.Metadata) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		absPath = filePath
	}

	id := fmt.Sprintf("%s_%s", videoType, r.now().Format("20060102_150405"))
	record := VideoRecord{
		ID:            id,
		FilePath:      absPath,
		ThumbnailPath: metadata.ThumbnailPath,
		VideoType:     videoType,
		Topic:         topic,
		ScheduledTime: scheduledTime,
		CreatedAt:     r.now(),
		Status:        StatusCreated,
		Metadata:      metadata,
	}

	err = r.doc.Update(func(db *registryDB) error {
		db.Videos = append(db.Videos, record)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("register video: %w", err)
	}

	slog.Info("Registered video", "id", id, "file", filepath.Base(absPath), "scheduled", scheduledTime)
	return id, nil
}

// MarkUploadStarted moves the record to uploading and bumps the attempt
// counter, so retries survive process restarts.
func (r *Registry) MarkUploadStarted(id string) error {
	return r.mutate(func(v *VideoRecord) bool { return v.ID == id }, func(v *VideoRecord) error {
		next, err := v.Status.transition(StatusUploading)
		if err != nil {
			return err
		}
		v.Status = next
		v.UploadAttempts++
		now := r.now()
		v.LastAttempt = &now
		return nil
	})
}

// MarkUploadSuccess confirms the upload, looked up by file path because the
// caller of this transition may only have the path. Re-confirming an already
// uploaded record is a no-op.
func (r *Registry) MarkUploadSuccess(filePath, externalID string) error {
	abs := absOrSame(filePath)
	return r.mutate(func(v *VideoRecord) bool { return v.FilePath == abs }, func(v *VideoRecord) error {
		if v.Status == StatusUploaded && v.ExternalVideoID == externalID {
			return nil
		}
		next, err := v.Status.transition(StatusUploaded)
		if err != nil {
			return err
		}
		v.Status = next
		v.ExternalVideoID = externalID
		now := r.now()
		v.UploadedAt = &now
		slog.Info("Upload confirmed", "file", filepath.Base(v.FilePath), "video_id", externalID)
		return nil
	})
}

// MarkUploadFailed records the failure; the record stays retryable.
func (r *Registry) MarkUploadFailed(id string, uploadErr error) error {
	return r.mutate(func(v *VideoRecord) bool { return v.ID == id }, func(v *VideoRecord) error {
		next, err := v.Status.transition(StatusUploadFailed)
		if err != nil {
			return err
		}
		v.Status = next
		if uploadErr != nil {
			v.LastError = uploadErr.Error()
		}
		slog.Warn("Upload failed", "id", id, "error", uploadErr)
		return nil
	})
}

// FindByPath returns the record owning filePath.
func (r *Registry) FindByPath(filePath string) (*VideoRecord, error) {
	abs := absOrSame(filePath)
	db, err := r.doc.Load()
	if err != nil {
		return nil, err
	}
	for i := range db.Videos {
		if db.Videos[i].FilePath == abs {
			record := db.Videos[i]
			return &record, nil
		}
	}
	return nil, nil
}

// IsUploaded reports whether filePath already has a confirmed upload, and the
// external id it got. Used by the worker as a duplicate-publish guard.
func (r *Registry) IsUploaded(filePath string) (string, bool) {
	record, err := r.FindByPath(filePath)
	if err != nil || record == nil {
		return "", false
	}
	if record.Status == StatusUploaded && record.ExternalVideoID != "" {
		return record.ExternalVideoID, true
	}
	return "", false
}

// PendingUpload returns records awaiting a first or retried upload.
func (r *Registry) PendingUpload() ([]VideoRecord, error) {
	db, err := r.doc.Load()
	if err != nil {
		return nil, err
	}
	var pending []VideoRecord
	for _, v := range db.Videos {
		if v.Status == StatusCreated || v.Status == StatusUploadFailed {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// CleanupUploaded deletes files for records that are confirmed uploaded and
// published more than maxAge ago. Age is measured from the scheduled publish
// time; uploaded_at is the fallback only when scheduled_time is unparseable.
// Per-record file errors are logged and skipped so the sweep always
// completes. Returns the number of records actually deleted.
func (r *Registry) CleanupUploaded(maxAge time.Duration) (int, error) {
	deleted := 0
	now := r.now().UTC()

	err := r.doc.Update(func(db *registryDB) error {
		for i := range db.Videos {
			v := &db.Videos[i]
			if v.Status != StatusUploaded || v.ExternalVideoID == "" {
				continue
			}

			reference, ok := r.deletionReference(v, now)
			if !ok {
				continue
			}
			if now.Sub(reference) < maxAge {
				slog.Debug("Keeping recent video", "file", filepath.Base(v.FilePath), "age", now.Sub(reference))
				continue
			}

			if !r.removeFiles(v) {
				continue
			}

			next, err := v.Status.transition(StatusDeleted)
			if err != nil {
				slog.Warn("Skipping cleanup for record in unexpected state", "id", v.ID, "error", err)
				continue
			}
			v.Status = next
			at := r.now()
			v.DeletedAt = &at
			deleted++
		}

		at := r.now()
		db.LastCleanup = &at
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("cleanup sweep: %w", err)
	}
	return deleted, nil
}

// deletionReference picks the timestamp deletion age is measured from. A
// future scheduled time disqualifies the record outright; this check comes
// before any age math so no maxAge value can bypass it.
func (r *Registry) deletionReference(v *VideoRecord, now time.Time) (time.Time, bool) {
	scheduled, err := time.Parse(time.RFC3339, v.ScheduledTime)
	if err == nil {
		if scheduled.After(now) {
			slog.Debug("Keeping future-scheduled video", "file", filepath.Base(v.FilePath), "publishes", scheduled)
			return time.Time{}, false
		}
		return scheduled, true
	}

	slog.Warn("Unparseable scheduled_time, falling back to upload time", "id", v.ID, "scheduled_time", v.ScheduledTime)
	if v.UploadedAt == nil {
		return time.Time{}, false
	}
	return *v.UploadedAt, true
}

// removeFiles unlinks the video and, if present, its thumbnail. A file that
// is already gone counts as removed; any other error keeps the record alive
// for the next sweep.
func (r *Registry) removeFiles(v *VideoRecord) bool {
	if err := os.Remove(v.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("Failed to delete video file", "file", v.FilePath, "error", err)
		return false
	}
	slog.Info("Deleted video", "file", filepath.Base(v.FilePath))

	if v.ThumbnailPath != "" {
		if err := os.Remove(v.ThumbnailPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to delete thumbnail", "file", v.ThumbnailPath, "error", err)
		}
	}
	return true
}

// Stats returns counts by status and on-disk footprint for monitoring.
func (r *Registry) Stats() (Stats, error) {
	db, err := r.doc.Load()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalVideos: len(db.Videos),
		ByStatus:    make(map[Status]int),
		LastCleanup: db.LastCleanup,
	}
	for _, v := range db.Videos {
		stats.ByStatus[v.Status]++
		if info, err := os.Stat(v.FilePath); err == nil {
			stats.TotalSizeMB += float64(info.Size()) / (1024 * 1024)
		}
	}
	stats.PendingUpload = stats.ByStatus[StatusCreated] + stats.ByStatus[StatusUploadFailed]
	return stats, nil
}

func (r *Registry) mutate(match func(*VideoRecord) bool, apply func(*VideoRecord) error) error {
	found := false
	err := r.doc.Update(func(db *registryDB) error {
		for i := range db.Videos {
			if match(&db.Videos[i]) {
				found = true
				return apply(&db.Videos[i])
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("video not tracked")
	}
	return nil
}

func absOrSame(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
