package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
)

func TestExportListing(t *testing.T) {
	dir := t.TempDir()
	s := NewExportService(config.ExportConfig{Enabled: true, Dir: dir})

	files := []entities.RemoteFile{
		{ID: "A", Name: "x.jpg", MimeType: "image/jpeg", Size: 2048},
		{ID: "B", Name: "v.mp4", MimeType: "video/mp4", Size: 4096},
	}

	path, err := s.ExportListing(files, "media.json", 0)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "media.json") {
		t.Fatalf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var out []map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0]["size_formatted"] != "2.00 KB" {
		t.Errorf("size_formatted = %v", out[0]["size_formatted"])
	}
}

func TestExportListingSizeThreshold(t *testing.T) {
	dir := t.TempDir()
	s := NewExportService(config.ExportConfig{Enabled: true, Dir: dir})

	files := []entities.RemoteFile{
		{ID: "A", Name: "small.jpg", Size: 100},
		{ID: "B", Name: "big.mp4", Size: 10 * 1024 * 1024},
	}

	path, err := s.ExportListing(files, "large.json", 1024*1024)
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var out []map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0]["id"] != "B" {
		t.Fatalf("expected only B, got %+v", out)
	}
}

func TestExportListingEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewExportService(config.ExportConfig{Enabled: true, Dir: dir})

	path, err := s.ExportListing(nil, "empty.json", 0)
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Fatal("empty listing should not produce a file")
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.json")); !os.IsNotExist(err) {
		t.Fatal("no file should be written for empty data")
	}
}
