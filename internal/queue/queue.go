// Package queue is the durable work queue of videos awaiting publication.
// It is deliberately lighter than the lifecycle registry: one document with a
// pending list and an uploaded list, always referencing the same files.
package queue

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"reelpilot/internal/media"
	"reelpilot/pkg/statestore"
)

const fileName = "upload_status.json"

// PendingItem represents "needs to be uploaded". ScheduledTime stays an
// ISO-8601 string and is parsed on use.
type PendingItem struct {
	FilePath      string         `json:"file_path"`
	Type          media.Type     `json:"type"`
	Topic         string         `json:"topic"`
	ScheduledTime string         `json:"scheduled_time"`
	CreatedAt     time.Time      `json:"created_at"`
	Attempts      int            `json:"attempts"`
	LastError     string         `json:"last_error,omitempty"`
	LastAttempt   *time.Time     `json:"last_attempt,omitempty"`
	Metadata      media.Metadata `json:"metadata"`
}

// UploadedItem is the ledger entry a pending item becomes on success.
type UploadedItem struct {
	FilePath     string     `json:"file_path"`
	Type         media.Type `json:"type"`
	Topic        string     `json:"topic"`
	VideoID      string     `json:"video_id"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	SafeToDelete bool       `json:"safe_to_delete"`
}

type statusDB struct {
	Pending  []PendingItem  `json:"pending_uploads"`
	Uploaded []UploadedItem `json:"uploaded"`
}

type Queue struct {
	doc *statestore.Document[statusDB]
	now func() time.Time
}

func NewQueue(dataDir string) *Queue {
	return &Queue{
		doc: statestore.NewDocument[statusDB](dataDir, fileName),
		now: time.Now,
	}
}

// Enqueue tracks a file as pending upload.
func (q *Queue) Enqueue(filePath string, videoType media.Type, topic, scheduledTime string, metadata media.Metadata) error {
	item := PendingItem{
		FilePath:      filePath,
		Type:          videoType,
		Topic:         topic,
		ScheduledTime: scheduledTime,
		CreatedAt:     q.now(),
		Metadata:      metadata,
	}

	err := q.doc.Update(func(db *statusDB) error {
		db.Pending = append(db.Pending, item)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue upload: %w", err)
	}

	slog.Info("Tracked pending upload", "file", filepath.Base(filePath), "scheduled", scheduledTime)
	return nil
}

// ListPending returns a copy of the pending list.
func (q *Queue) ListPending() ([]PendingItem, error) {
	db, err := q.doc.Load()
	if err != nil {
		return nil, err
	}
	return db.Pending, nil
}

// ListUploaded returns a copy of the uploaded list.
func (q *Queue) ListUploaded() ([]UploadedItem, error) {
	db, err := q.doc.Load()
	if err != nil {
		return nil, err
	}
	return db.Uploaded, nil
}

// DequeueOnSuccess removes the matching pending item and appends an uploaded
// record. Calling it again for the same file path is a no-op, so a crash
// between upload and bookkeeping cannot produce duplicate uploaded entries.
func (q *Queue) DequeueOnSuccess(filePath, externalID string) error {
	return q.doc.Update(func(db *statusDB) error {
		for _, u := range db.Uploaded {
			if u.FilePath == filePath {
				return nil
			}
		}

		uploaded := UploadedItem{
			FilePath:     filePath,
			VideoID:      externalID,
			UploadedAt:   q.now(),
			SafeToDelete: true,
		}

		kept := db.Pending[:0]
		for _, item := range db.Pending {
			if item.FilePath == filePath {
				uploaded.Type = item.Type
				uploaded.Topic = item.Topic
				continue
			}
			kept = append(kept, item)
		}
		db.Pending = kept
		db.Uploaded = append(db.Uploaded, uploaded)

		slog.Info("Marked uploaded", "file", filepath.Base(filePath), "video_id", externalID)
		return nil
	})
}

// RecordFailure bumps the attempt counter and stores the error. The item
// stays in the pending list: the queue never drops work, the attempt cap is
// enforced by the worker.
func (q *Queue) RecordFailure(filePath string, uploadErr error) error {
	return q.doc.Update(func(db *statusDB) error {
		for i := range db.Pending {
			if db.Pending[i].FilePath != filePath {
				continue
			}
			db.Pending[i].Attempts++
			if uploadErr != nil {
				db.Pending[i].LastError = uploadErr.Error()
			}
			now := q.now()
			db.Pending[i].LastAttempt = &now
			return nil
		}
		return fmt.Errorf("pending item not found: %s", filePath)
	})
}

// LinkRelated fills in the external id of the published long-form video on
// pending shorts sharing its topic, so their cross-promotion comments can
// point at it.
func (q *Queue) LinkRelated(topic, externalID string) error {
	return q.doc.Update(func(db *statusDB) error {
		linked := 0
		for i := range db.Pending {
			item := &db.Pending[i]
			if !item.Type.IsShort() || item.Topic != topic {
				continue
			}
			if item.Metadata.LinkedVideoID == "" || item.Metadata.LinkedVideoID == "pending" {
				item.Metadata.LinkedVideoID = externalID
				linked++
			}
		}
		if linked > 0 {
			slog.Info("Linked shorts to published video", "topic", topic, "video_id", externalID, "count", linked)
		}
		return nil
	})
}

// UploadWindow returns when the upload for scheduledTime must happen: buffer
// ahead of the publish instant, leaving the platform time to process the
// file. Pure calculation, no side effects.
func UploadWindow(scheduledTime string, buffer time.Duration) (time.Time, error) {
	scheduled, err := time.Parse(time.RFC3339, scheduledTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scheduled time %q: %w", scheduledTime, err)
	}
	return scheduled.Add(-buffer), nil
}
