package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"reelpilot/internal/archive"
	"reelpilot/internal/checkpoint"
	"reelpilot/internal/lifecycle"
	"reelpilot/internal/queue"
	"reelpilot/internal/quota"
	"reelpilot/internal/uploader"
	"reelpilot/internal/worker"
	"reelpilot/pkg/config"
)

// BuildService wires the publication stack from configuration. The YouTube
// uploader is only constructed when credentials are present; commands that
// never upload (status, cleanup) work without them.
func BuildService(cfg *config.Config) (*Service, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	registry := lifecycle.NewRegistry(cfg.Storage.DataDir)
	uploadQueue := queue.NewQueue(cfg.Storage.DataDir)
	checkpointMgr := checkpoint.NewManager(cfg.Storage.DataDir)

	ledger, err := quota.Open(cfg.Storage.QuotaDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open quota ledger: %w", err)
	}

	var up uploader.Uploader
	if cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "" {
		auth := uploader.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath)
		up = uploader.NewYouTubeClient(auth, cfg.Upload.PrivacyStatus)
	}

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiver = archive.NewArchiver(cfg.Storage.ArchiveDir)
	}

	var mirror *archive.GCSMirror
	if cfg.Archive.Enabled && cfg.Archive.GCSMirror && cfg.GCSBucket != "" {
		mirror, err = archive.NewGCSMirror(context.Background(), cfg.GCSBucket, cfg.Archive.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive mirror: %w", err)
		}
	}

	w := worker.NewWorker(uploadQueue, registry, ledger, up, archiver, worker.Config{
		MaxAttempts:   cfg.Upload.MaxAttempts,
		Window:        time.Duration(cfg.Upload.WindowMinutes) * time.Minute,
		UploadBuffer:  time.Duration(cfg.Upload.BufferHours) * time.Hour,
		DailyQuota:    cfg.Upload.DailyQuota,
		CleanupMaxAge: time.Duration(cfg.Cleanup.MaxAgeHours) * time.Hour,
		CleanupEvery:  time.Duration(cfg.Cleanup.IntervalHours) * time.Hour,
	})

	if mirror != nil {
		w.SetMirror(mirror, cfg.Storage.ArchiveDir)
	}

	return NewService(ServiceOptions{
		Config:     cfg,
		Registry:   registry,
		Queue:      uploadQueue,
		Ledger:     ledger,
		Checkpoint: checkpointMgr,
		Uploader:   up,
		Archiver:   archiver,
		Mirror:     mirror,
		Worker:     w,
	}), nil
}
