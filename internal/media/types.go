// Package media holds the small shared vocabulary between the content
// pipeline and the publication subsystem.
package media

import (
	"fmt"
	"strings"
)

// Type distinguishes the long-form primary video from its derived shorts.
// Shorts are numbered by position ("short_0", "short_1", ...).
type Type string

const TypeLong Type = "long"

func ShortType(index int) Type {
	return Type(fmt.Sprintf("short_%d", index))
}

func (t Type) IsShort() bool {
	return strings.HasPrefix(string(t), "short")
}

// SEO is the upload-facing description block produced by the content
// collaborators.
type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Metadata travels with a video from registration through upload. It is
// owned by the caller; the publication core persists it for audit and for
// post-upload side effects (thumbnail cleanup, cross-promotion).
type Metadata struct {
	SEO           SEO    `json:"seo_metadata"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	Script        string `json:"script,omitempty"`
	LinkedVideoID string `json:"linked_video_id,omitempty"`
}
