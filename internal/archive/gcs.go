package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSMirror copies archive directories into a bucket so the archive survives
// the machine that produced it.
type GCSMirror struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSMirror(ctx context.Context, bucket, prefix string) (*GCSMirror, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSMirror{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (m *GCSMirror) Close() error {
	return m.client.Close()
}

// MirrorDir uploads every regular file under localDir, keyed by its path
// relative to baseDir so the bucket layout matches the local archive layout.
func (m *GCSMirror) MirrorDir(ctx context.Context, baseDir, localDir string) error {
	return filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return fmt.Errorf("failed to resolve archive path: %w", err)
		}
		return m.uploadFile(ctx, path, m.objectName(rel))
	})
}

// ArchivedDates lists the date directories present in the bucket, oldest
// first.
func (m *GCSMirror) ArchivedDates(ctx context.Context) ([]string, error) {
	bkt := m.client.Bucket(m.bucket)
	query := &storage.Query{Prefix: m.objectName("")}

	seen := make(map[string]bool)
	it := bkt.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		name := strings.TrimPrefix(attrs.Name, m.objectName(""))
		date, _, ok := strings.Cut(name, "/")
		if ok && date != "" {
			seen[date] = true
		}
	}

	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func (m *GCSMirror) uploadFile(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := m.client.Bucket(m.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", objectName, err)
	}
	return nil
}

func (m *GCSMirror) objectName(rel string) string {
	rel = filepath.ToSlash(rel)
	if m.prefix == "" {
		return rel
	}
	if rel == "" {
		return m.prefix + "/"
	}
	return m.prefix + "/" + rel
}
