// Package uploader is the boundary to the video platform. The publication
// core only depends on the Uploader interface; the YouTube implementation
// lives alongside it.
package uploader

import (
	"context"
	"time"
)

type Request struct {
	FilePath      string
	Title         string
	Description   string
	Tags          []string
	ThumbnailPath string
	// PublishAt schedules the video to go live at this UTC instant. Zero
	// means publish immediately with the configured privacy.
	PublishAt time.Time
}

type Response struct {
	ID       string
	URL      string
	Platform string
}

type Uploader interface {
	Upload(ctx context.Context, req Request) (*Response, error)
	InsertComment(ctx context.Context, videoID, text string) (string, error)
	Platform() string
}
