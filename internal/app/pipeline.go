package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelpilot/internal/checkpoint"
	"reelpilot/internal/media"
	"reelpilot/internal/schedule"
	"reelpilot/internal/worker"
)

// Pipeline is the surface the content pipeline talks to: register a finished
// video, queue it, and let the worker take it from there.
type Pipeline struct {
	service *Service
}

func NewPipeline(service *Service) *Pipeline {
	return &Pipeline{service: service}
}

// RegisterVideo records a finished video in the lifecycle registry and
// enqueues it for upload at its scheduled publish time.
func (p *Pipeline) RegisterVideo(filePath string, videoType media.Type, topic, scheduledTime string, metadata media.Metadata) (string, error) {
	id, err := p.service.registry.Register(filePath, videoType, topic, scheduledTime, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to register video: %w", err)
	}
	if err := p.service.queue.Enqueue(filePath, videoType, topic, scheduledTime, metadata); err != nil {
		return "", fmt.Errorf("failed to enqueue video: %w", err)
	}

	slog.Info("Video registered for upload",
		"id", id, "type", videoType, "topic", topic, "scheduled", scheduledTime)
	return id, nil
}

// ScheduleLong returns the next long-form publish slot as an ISO-8601
// timestamp in UTC.
func (p *Pipeline) ScheduleLong(now time.Time) string {
	cfg := p.service.cfg.Schedule
	slot := schedule.NextSlot(now, media.TypeLong, schedule.Options{
		Timezone: cfg.Timezone,
		Table:    cfg.LongTable(),
		Buffer:   time.Duration(cfg.BufferHours) * time.Hour,
		Jitter:   time.Duration(cfg.JitterMinutes) * time.Minute,
	})
	return schedule.ISO8601(slot)
}

// ScheduleShort returns the publish slot for the index-th short derived from
// a long-form video publishing at basePublish.
func (p *Pipeline) ScheduleShort(now time.Time, index int, basePublish time.Time) string {
	cfg := p.service.cfg.Schedule
	slot := schedule.ShortSlot(now, index, basePublish, schedule.Options{
		Timezone: cfg.Timezone,
		Table:    cfg.ShortTable(),
		Jitter:   time.Duration(cfg.JitterMinutes) * time.Minute,
	})
	return schedule.ISO8601(slot)
}

func (p *Pipeline) PollOnce(ctx context.Context) (worker.Summary, error) {
	return p.service.worker.PollOnce(ctx)
}

func (p *Pipeline) CleanupUploaded(maxAge time.Duration) (int, error) {
	return p.service.registry.CleanupUploaded(maxAge)
}

func (p *Pipeline) SaveCheckpoint(step string, data map[string]any) error {
	return p.service.checkpoint.Save(step, data)
}

func (p *Pipeline) LoadCheckpoint() (*checkpoint.Record, error) {
	return p.service.checkpoint.Load()
}

func (p *Pipeline) ShouldResume() bool {
	return p.service.checkpoint.ShouldResume()
}

func (p *Pipeline) ClearCheckpoint() error {
	return p.service.checkpoint.Clear()
}
