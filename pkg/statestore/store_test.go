package statestore

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type sampleDoc struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	doc := NewDocument[sampleDoc](dir, "sample.json")

	want := sampleDoc{Name: "clip", Count: 3, Tags: []string{"a", "b"}}
	if err := doc.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := doc.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadMissingReturnsZeroValue(t *testing.T) {
	doc := NewDocument[sampleDoc](t.TempDir(), "missing.json")

	got, err := doc.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Name != "" || got.Count != 0 || got.Tags != nil {
		t.Errorf("Load() on missing file = %+v, want zero value", got)
	}
}

func TestLoadCorruptedQuarantinesFile(t *testing.T) {
	dir := t.TempDir()
	doc := NewDocument[sampleDoc](dir, "broken.json")

	if err := os.WriteFile(doc.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := doc.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Count != 0 {
		t.Errorf("Load() on corrupted file = %+v, want zero value", got)
	}

	if doc.Exists() {
		t.Error("corrupted file should have been moved aside")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var backup string
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupted.") {
			backup = e.Name()
		}
	}
	if backup == "" {
		t.Fatalf("no quarantine backup found, dir contains %v", entries)
	}
	data, err := os.ReadFile(filepath.Join(dir, backup))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{not json" {
		t.Errorf("backup content = %q, want original bytes", data)
	}
}

func TestUpdateReadModifyWrite(t *testing.T) {
	doc := NewDocument[sampleDoc](t.TempDir(), "sample.json")

	if err := doc.Save(sampleDoc{Count: 1}); err != nil {
		t.Fatal(err)
	}

	err := doc.Update(func(d *sampleDoc) error {
		d.Count++
		d.Name = "updated"
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := doc.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Count != 2 || got.Name != "updated" {
		t.Errorf("after Update() = %+v, want Count=2 Name=updated", got)
	}
}

func TestUpdateAbortsWithoutWriting(t *testing.T) {
	doc := NewDocument[sampleDoc](t.TempDir(), "sample.json")

	if err := doc.Save(sampleDoc{Count: 5}); err != nil {
		t.Fatal(err)
	}

	wantErr := os.ErrInvalid
	err := doc.Update(func(d *sampleDoc) error {
		d.Count = 99
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Update() error = %v, want %v", err, wantErr)
	}

	got, err := doc.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Count != 5 {
		t.Errorf("aborted Update() wrote Count=%d, want 5", got.Count)
	}
}

func TestRemove(t *testing.T) {
	doc := NewDocument[sampleDoc](t.TempDir(), "sample.json")

	if err := doc.Save(sampleDoc{Count: 1}); err != nil {
		t.Fatal(err)
	}
	if err := doc.Remove(); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if doc.Exists() {
		t.Error("document still exists after Remove()")
	}

	// Removing twice is fine.
	if err := doc.Remove(); err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
}
