package queue

import (
	"errors"
	"testing"
	"time"

	"reelpilot/internal/media"
)

func testQueue(t *testing.T) *Queue {
	t.Helper()
	q := NewQueue(t.TempDir())
	q.now = func() time.Time { return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC) }
	return q
}

func TestEnqueueAndListPending(t *testing.T) {
	q := testQueue(t)

	err := q.Enqueue("/v/a.mp4", media.TypeLong, "investing", "2025-04-03T15:00:00Z", media.Metadata{
		SEO: media.SEO{Title: "How compounding works"},
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPending() = %d items, want 1", len(pending))
	}
	item := pending[0]
	if item.FilePath != "/v/a.mp4" || item.Attempts != 0 || item.Topic != "investing" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.Metadata.SEO.Title != "How compounding works" {
		t.Errorf("metadata not persisted: %+v", item.Metadata)
	}
}

func TestDequeueOnSuccess(t *testing.T) {
	q := testQueue(t)

	if err := q.Enqueue("/v/a.mp4", media.TypeLong, "t", "2025-04-03T15:00:00Z", media.Metadata{}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("/v/b.mp4", media.ShortType(0), "t", "2025-04-04T15:00:00Z", media.Metadata{}); err != nil {
		t.Fatal(err)
	}

	if err := q.DequeueOnSuccess("/v/a.mp4", "yt1"); err != nil {
		t.Fatalf("DequeueOnSuccess() error: %v", err)
	}

	pending, _ := q.ListPending()
	if len(pending) != 1 || pending[0].FilePath != "/v/b.mp4" {
		t.Errorf("pending after dequeue = %+v", pending)
	}

	uploaded, _ := q.ListUploaded()
	if len(uploaded) != 1 {
		t.Fatalf("uploaded = %d items, want 1", len(uploaded))
	}
	u := uploaded[0]
	if u.VideoID != "yt1" || !u.SafeToDelete || u.Type != media.TypeLong {
		t.Errorf("uploaded item = %+v", u)
	}
}

func TestDequeueOnSuccessIdempotent(t *testing.T) {
	q := testQueue(t)

	if err := q.Enqueue("/v/a.mp4", media.TypeLong, "t", "2025-04-03T15:00:00Z", media.Metadata{}); err != nil {
		t.Fatal(err)
	}

	if err := q.DequeueOnSuccess("/v/a.mp4", "yt1"); err != nil {
		t.Fatal(err)
	}
	if err := q.DequeueOnSuccess("/v/a.mp4", "yt1"); err != nil {
		t.Fatalf("second DequeueOnSuccess() error: %v", err)
	}

	uploaded, _ := q.ListUploaded()
	if len(uploaded) != 1 {
		t.Errorf("uploaded = %d entries after double dequeue, want 1", len(uploaded))
	}
}

func TestRecordFailureKeepsItemPending(t *testing.T) {
	q := testQueue(t)

	if err := q.Enqueue("/v/a.mp4", media.TypeLong, "t", "2025-04-03T15:00:00Z", media.Metadata{}); err != nil {
		t.Fatal(err)
	}

	if err := q.RecordFailure("/v/a.mp4", errors.New("503 backend error")); err != nil {
		t.Fatalf("RecordFailure() error: %v", err)
	}
	if err := q.RecordFailure("/v/a.mp4", errors.New("connection reset")); err != nil {
		t.Fatal(err)
	}

	pending, _ := q.ListPending()
	if len(pending) != 1 {
		t.Fatalf("item dropped from pending after failure")
	}
	item := pending[0]
	if item.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", item.Attempts)
	}
	if item.LastError != "connection reset" {
		t.Errorf("LastError = %q", item.LastError)
	}
	if item.LastAttempt == nil {
		t.Error("LastAttempt not set")
	}
}

func TestRecordFailureUnknownItem(t *testing.T) {
	q := testQueue(t)
	if err := q.RecordFailure("/v/nope.mp4", errors.New("x")); err == nil {
		t.Error("RecordFailure() on unknown item succeeded, want error")
	}
}

func TestLinkRelated(t *testing.T) {
	q := testQueue(t)

	if err := q.Enqueue("/v/short0.mp4", media.ShortType(0), "inflation", "2025-04-04T13:00:00Z",
		media.Metadata{LinkedVideoID: "pending"}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("/v/short1.mp4", media.ShortType(1), "inflation", "2025-04-05T13:00:00Z", media.Metadata{}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("/v/other.mp4", media.ShortType(0), "different topic", "2025-04-05T13:00:00Z",
		media.Metadata{LinkedVideoID: "pending"}); err != nil {
		t.Fatal(err)
	}

	if err := q.LinkRelated("inflation", "yt_long"); err != nil {
		t.Fatalf("LinkRelated() error: %v", err)
	}

	pending, _ := q.ListPending()
	for _, item := range pending {
		want := ""
		switch item.FilePath {
		case "/v/short0.mp4", "/v/short1.mp4":
			want = "yt_long"
		case "/v/other.mp4":
			want = "pending"
		}
		if item.Metadata.LinkedVideoID != want {
			t.Errorf("%s: LinkedVideoID = %q, want %q", item.FilePath, item.Metadata.LinkedVideoID, want)
		}
	}
}

func TestUploadWindow(t *testing.T) {
	tests := []struct {
		name      string
		scheduled string
		buffer    time.Duration
		want      time.Time
		wantErr   bool
	}{
		{
			name:      "oneHourBuffer",
			scheduled: "2025-04-03T15:00:00Z",
			buffer:    time.Hour,
			want:      time.Date(2025, 4, 3, 14, 0, 0, 0, time.UTC),
		},
		{
			name:      "zeroBuffer",
			scheduled: "2025-04-03T15:00:00Z",
			buffer:    0,
			want:      time.Date(2025, 4, 3, 15, 0, 0, 0, time.UTC),
		},
		{
			name:      "garbage",
			scheduled: "soon",
			buffer:    time.Hour,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UploadWindow(tt.scheduled, tt.buffer)
			if tt.wantErr {
				if err == nil {
					t.Fatal("UploadWindow() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("UploadWindow() error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("UploadWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}
