// Package statestore persists small JSON documents on local disk.
//
// Writes go to a temp file followed by an atomic rename, so readers never
// observe a half-written document. Read-modify-write cycles are serialized
// across processes with an advisory lock on a sidecar file, which is the only
// coordination the daemon and manual invocations need.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Document is a typed handle over a single JSON file. The zero value of T is
// the default returned when the file does not exist or cannot be parsed.
type Document[T any] struct {
	path string
	lock *flock.Flock
}

func NewDocument[T any](dir, name string) *Document[T] {
	path := filepath.Join(dir, name)
	return &Document[T]{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (d *Document[T]) Path() string { return d.path }

func (d *Document[T]) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Load reads the document under a shared lock. A missing file yields the zero
// value. A corrupted file is quarantined as a timestamped backup and the zero
// value is returned, so a bad document degrades bookkeeping instead of
// stopping the caller.
func (d *Document[T]) Load() (T, error) {
	var value T

	if err := d.lock.RLock(); err != nil {
		return value, fmt.Errorf("acquire read lock for %s: %w", d.path, err)
	}
	defer func() { _ = d.lock.Unlock() }()

	return d.read()
}

// Save writes the document under an exclusive lock.
func (d *Document[T]) Save(value T) error {
	if err := d.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock for %s: %w", d.path, err)
	}
	defer func() { _ = d.lock.Unlock() }()

	return d.write(value)
}

// Update runs fn on the current document and writes the result back, holding
// the exclusive lock for the whole read-modify-write. Returning an error from
// fn aborts the update without writing.
func (d *Document[T]) Update(fn func(*T) error) error {
	if err := d.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock for %s: %w", d.path, err)
	}
	defer func() { _ = d.lock.Unlock() }()

	value, err := d.read()
	if err != nil {
		return err
	}
	if err := fn(&value); err != nil {
		return err
	}
	return d.write(value)
}

// Remove deletes the document. A missing file is not an error.
func (d *Document[T]) Remove() error {
	if err := d.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock for %s: %w", d.path, err)
	}
	defer func() { _ = d.lock.Unlock() }()

	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", d.path, err)
	}
	return nil
}

func (d *Document[T]) read() (T, error) {
	var value T

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return value, nil
	}
	if err != nil {
		return value, fmt.Errorf("read %s: %w", d.path, err)
	}

	if err := json.Unmarshal(data, &value); err != nil {
		d.quarantine(err)
		var zero T
		return zero, nil
	}
	return value, nil
}

func (d *Document[T]) write(value T) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", d.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp := d.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", d.path, err)
	}
	return nil
}

// quarantine preserves an unparseable document as a timestamped backup so
// operators can inspect it, then lets the caller proceed with a default.
func (d *Document[T]) quarantine(cause error) {
	backup := fmt.Sprintf("%s.corrupted.%d", d.path, time.Now().Unix())
	if err := os.Rename(d.path, backup); err != nil {
		slog.Warn("Failed to back up corrupted document", "path", d.path, "error", err)
		return
	}
	slog.Warn("Corrupted document quarantined", "path", d.path, "backup", backup, "error", cause)
}
