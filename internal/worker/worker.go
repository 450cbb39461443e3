// Package worker drives the upload state machine. Every poll cycle loads the
// pending queue, uploads whatever is due, and records the outcome in the
// lifecycle registry and quota ledger. One bad item never aborts a cycle.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reelpilot/internal/archive"
	"reelpilot/internal/lifecycle"
	"reelpilot/internal/media"
	"reelpilot/internal/queue"
	"reelpilot/internal/quota"
	"reelpilot/internal/uploader"
)

const (
	defaultMaxAttempts   = 3
	defaultWindow        = 5 * time.Minute
	defaultUploadBuffer  = time.Hour
	defaultDailyQuota    = 10000
	defaultCleanupMaxAge = 24 * time.Hour
	defaultCleanupEvery  = 6 * time.Hour

	engagementComment = "What do you think? Share your thoughts!"
)

type Config struct {
	// MaxAttempts caps retries per item. Capped items stay in the queue but
	// are skipped thereafter.
	MaxAttempts int
	// Window is the tolerance around the computed upload time. An item is
	// due when now falls within [uploadTime-Window, uploadTime+Window].
	Window time.Duration
	// UploadBuffer is how long before the scheduled publish time the upload
	// must complete, leaving room for platform-side processing.
	UploadBuffer time.Duration
	// DailyQuota is the platform's daily unit budget.
	DailyQuota int
	// CleanupMaxAge and CleanupEvery control the periodic sweep of published
	// videos from disk during Run.
	CleanupMaxAge time.Duration
	CleanupEvery  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.UploadBuffer <= 0 {
		c.UploadBuffer = defaultUploadBuffer
	}
	if c.DailyQuota <= 0 {
		c.DailyQuota = defaultDailyQuota
	}
	if c.CleanupMaxAge <= 0 {
		c.CleanupMaxAge = defaultCleanupMaxAge
	}
	if c.CleanupEvery <= 0 {
		c.CleanupEvery = defaultCleanupEvery
	}
	return c
}

// Summary reports one poll cycle's outcome.
type Summary struct {
	Uploaded int
	Failed   int
	Pending  int
}

// Mirrorer replicates an archived directory to remote storage.
type Mirrorer interface {
	MirrorDir(ctx context.Context, baseDir, localDir string) error
}

type Worker struct {
	queue    *queue.Queue
	registry *lifecycle.Registry
	ledger   *quota.Ledger
	uploader uploader.Uploader
	archiver *archive.Archiver
	config   Config

	mirror     Mirrorer
	mirrorBase string

	lastCleanup time.Time
	now         func() time.Time
}

func NewWorker(q *queue.Queue, registry *lifecycle.Registry, ledger *quota.Ledger, up uploader.Uploader, archiver *archive.Archiver, config Config) *Worker {
	return &Worker{
		queue:    q,
		registry: registry,
		ledger:   ledger,
		uploader: up,
		archiver: archiver,
		config:   config.withDefaults(),
		now:      time.Now,
	}
}

// PollOnce runs one cycle of the upload state machine. The returned error
// covers only cycle-level failures (reading the queue); per-item failures are
// recorded on the item and counted in the summary.
func (w *Worker) PollOnce(ctx context.Context) (Summary, error) {
	log := slog.With("cycle_id", uuid.NewString())

	pending, err := w.queue.ListPending()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list pending uploads: %w", err)
	}

	summary := Summary{Pending: len(pending)}
	if len(pending) == 0 {
		return summary, nil
	}
	if w.uploader == nil {
		log.Warn("no uploader configured, items stay pending", "pending", len(pending))
		return summary, nil
	}

	w.linkPendingShorts(log)

	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		base := filepath.Base(item.FilePath)

		if item.Attempts >= w.config.MaxAttempts {
			log.Warn("skipping item, attempt cap reached",
				"file", base, "attempts", item.Attempts, "max", w.config.MaxAttempts)
			summary.Failed++
			continue
		}

		if _, err := os.Stat(item.FilePath); err != nil {
			log.Warn("pending upload file missing", "file", item.FilePath)
			summary.Failed++
			continue
		}

		// Duplicate guard: a crash between upload and dequeue leaves the
		// item pending even though the platform has the video.
		if externalID, ok := w.registry.IsUploaded(item.FilePath); ok {
			log.Info("item already uploaded, reconciling", "file", base, "video_id", externalID)
			w.finishSuccess(log, item, externalID, false)
			summary.Uploaded++
			continue
		}

		uploadTime, err := queue.UploadWindow(item.ScheduledTime, w.config.UploadBuffer)
		if err != nil {
			log.Warn("unparseable scheduled time, leaving pending",
				"file", base, "scheduled", item.ScheduledTime)
			continue
		}
		if diff := uploadTime.Sub(w.now()); diff > w.config.Window || diff < -w.config.Window {
			continue
		}

		if err := w.ledger.CheckAvailable("upload", w.config.DailyQuota); err != nil {
			var quotaErr *quota.QuotaExceededError
			if errors.As(err, &quotaErr) {
				log.Warn("quota exhausted, deferring upload",
					"file", base, "need", quotaErr.Need, "remaining", quotaErr.Remaining)
				continue
			}
			log.Warn("quota check failed, proceeding", "file", base, "error", err)
		}

		log.Info("upload time reached", "file", base, "scheduled", item.ScheduledTime)

		// Re-read the item: an earlier upload in this cycle may have filled
		// in its linked video ID.
		if current, ok := w.currentItem(item.FilePath); ok {
			item = current
		}

		externalID, err := w.upload(ctx, log, item)
		if err != nil {
			var quotaErr *quota.QuotaExceededError
			if errors.As(err, &quotaErr) {
				// The platform refused on quota; keep the item pending
				// without burning an attempt.
				log.Warn("platform reported quota exhaustion, deferring", "file", base)
				continue
			}
			w.recordFailure(log, item, err)
			summary.Failed++
			continue
		}

		w.finishSuccess(log, item, externalID, true)
		summary.Uploaded++
		log.Info("upload complete", "file", base, "video_id", externalID)
	}

	return summary, nil
}

// Run polls at the given interval until ctx is cancelled. The periodic
// cleanup sweep rides on the same loop at its own cadence.
func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("upload worker started", "interval", interval)

	for {
		summary, err := w.PollOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("upload worker stopping")
				return nil
			}
			slog.Error("poll cycle failed", "error", err)
		} else if summary.Pending > 0 {
			slog.Info("poll cycle complete",
				"uploaded", summary.Uploaded, "failed", summary.Failed, "pending", summary.Pending)
		}

		w.maybeCleanup()

		select {
		case <-ctx.Done():
			slog.Info("upload worker stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) upload(ctx context.Context, log *slog.Logger, item queue.PendingItem) (string, error) {
	if err := w.registry.MarkUploadStarted(registryID(w.registry, item.FilePath)); err != nil {
		log.Warn("failed to mark upload started", "file", item.FilePath, "error", err)
	}

	publishAt, _ := time.Parse(time.RFC3339, item.ScheduledTime)

	resp, err := w.uploader.Upload(ctx, uploader.Request{
		FilePath:      item.FilePath,
		Title:         item.Metadata.SEO.Title,
		Description:   item.Metadata.SEO.Description,
		Tags:          item.Metadata.SEO.Tags,
		ThumbnailPath: item.Metadata.ThumbnailPath,
		PublishAt:     publishAt,
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// finishSuccess runs the success transaction and then the side effects.
// Side effect failures are logged; they never undo the success.
func (w *Worker) finishSuccess(log *slog.Logger, item queue.PendingItem, externalID string, fresh bool) {
	if err := w.queue.DequeueOnSuccess(item.FilePath, externalID); err != nil {
		log.Error("failed to dequeue uploaded item", "file", item.FilePath, "error", err)
	}
	if err := w.registry.MarkUploadSuccess(item.FilePath, externalID); err != nil {
		log.Error("failed to mark upload success", "file", item.FilePath, "error", err)
	}
	if !fresh {
		return
	}
	if err := w.ledger.Record("upload", quota.CostUpload, item.Topic); err != nil {
		log.Warn("failed to record quota usage", "error", err)
	}

	w.archiveItem(log, item, externalID)
	w.crossPromote(log, item, externalID)
}

// SetMirror enables remote replication of archived content. baseDir is the
// local archive root the mirror keys object names against.
func (w *Worker) SetMirror(m Mirrorer, baseDir string) {
	w.mirror = m
	w.mirrorBase = baseDir
}

func (w *Worker) archiveItem(log *slog.Logger, item queue.PendingItem, externalID string) {
	if w.archiver == nil {
		return
	}
	dir, err := w.archiver.Archive(archive.Entry{
		Type:          item.Type,
		Topic:         item.Topic,
		Script:        item.Metadata.Script,
		SEO:           item.Metadata.SEO,
		ThumbnailPath: item.Metadata.ThumbnailPath,
		VideoID:       externalID,
	})
	if err != nil {
		log.Warn("archive failed", "video_id", externalID, "error", err)
		return
	}

	if w.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := w.mirror.MirrorDir(ctx, w.mirrorBase, dir); err != nil {
		log.Warn("archive mirror failed", "dir", dir, "error", err)
	}
}

func (w *Worker) crossPromote(log *slog.Logger, item queue.PendingItem, externalID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case item.Type == media.TypeLong:
		if _, err := w.uploader.InsertComment(ctx, externalID, engagementComment); err != nil {
			log.Warn("engagement comment failed", "video_id", externalID, "error", err)
		} else if err := w.ledger.Record("comment", quota.CostComment, externalID); err != nil {
			log.Warn("failed to record quota usage", "error", err)
		}
		// Shorts derived from this topic can now point at the long video.
		if err := w.queue.LinkRelated(item.Topic, externalID); err != nil {
			log.Warn("failed to link related shorts", "topic", item.Topic, "error", err)
		}

	case item.Type.IsShort():
		linked := item.Metadata.LinkedVideoID
		if linked == "" || linked == "pending" {
			return
		}
		text := "Watch the full breakdown: https://youtube.com/watch?v=" + linked
		if _, err := w.uploader.InsertComment(ctx, externalID, text); err != nil {
			log.Warn("cross-promotion comment failed", "video_id", externalID, "error", err)
		} else if err := w.ledger.Record("comment", quota.CostComment, externalID); err != nil {
			log.Warn("failed to record quota usage", "error", err)
		}
	}
}

func (w *Worker) recordFailure(log *slog.Logger, item queue.PendingItem, uploadErr error) {
	log.Error("upload failed",
		"file", filepath.Base(item.FilePath),
		"attempt", item.Attempts+1, "max", w.config.MaxAttempts,
		"error", uploadErr)

	if err := w.queue.RecordFailure(item.FilePath, uploadErr); err != nil {
		log.Error("failed to record queue failure", "file", item.FilePath, "error", err)
	}
	if err := w.registry.MarkUploadFailed(registryID(w.registry, item.FilePath), uploadErr); err != nil {
		log.Warn("failed to mark upload failed", "file", item.FilePath, "error", err)
	}
}

// linkPendingShorts fills in linked video IDs for shorts whose long-form
// video uploaded in an earlier cycle.
func (w *Worker) linkPendingShorts(log *slog.Logger) {
	uploaded, err := w.queue.ListUploaded()
	if err != nil {
		log.Warn("failed to list uploaded items", "error", err)
		return
	}
	for _, item := range uploaded {
		if item.Type != media.TypeLong || item.Topic == "" || item.VideoID == "" {
			continue
		}
		if err := w.queue.LinkRelated(item.Topic, item.VideoID); err != nil {
			log.Warn("failed to link related shorts", "topic", item.Topic, "error", err)
		}
	}
}

func (w *Worker) currentItem(filePath string) (queue.PendingItem, bool) {
	pending, err := w.queue.ListPending()
	if err != nil {
		return queue.PendingItem{}, false
	}
	for _, item := range pending {
		if item.FilePath == filePath {
			return item, true
		}
	}
	return queue.PendingItem{}, false
}

func (w *Worker) maybeCleanup() {
	now := w.now()
	if !w.lastCleanup.IsZero() && now.Sub(w.lastCleanup) < w.config.CleanupEvery {
		return
	}
	w.lastCleanup = now

	deleted, err := w.registry.CleanupUploaded(w.config.CleanupMaxAge)
	if err != nil {
		slog.Error("cleanup sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("cleanup sweep complete", "deleted", deleted)
	}
}

func registryID(r *lifecycle.Registry, filePath string) string {
	record, err := r.FindByPath(filePath)
	if err != nil || record == nil {
		return ""
	}
	return record.ID
}
