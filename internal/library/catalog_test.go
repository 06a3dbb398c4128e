package library

import (
	"path/filepath"
	"testing"
)

func TestListFiltersAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "top.mp4"), "1234")
	mustWrite(t, filepath.Join(dir, "movie.MKV"), "12")
	mustWrite(t, filepath.Join(dir, "notes.txt"), "skip me")
	mustWrite(t, filepath.Join(dir, "series", "s01", "e01.webm"), "123456")
	mustWrite(t, filepath.Join(dir, "series", "thumb.png"), "skip me too")

	root := NewRoot(dir)
	entries, err := root.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	got := map[string]int64{}
	for _, e := range entries {
		got[e.Name] = e.Size
		if e.LastModified.IsZero() {
			t.Errorf("entry %q has zero LastModified", e.Name)
		}
	}

	want := map[string]int64{
		"top.mp4":             4,
		"movie.MKV":           2,
		"series/s01/e01.webm": 6,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries (%v), want %d", len(got), got, len(want))
	}
	for name, size := range want {
		if got[name] != size {
			t.Errorf("entry %q size = %d, want %d", name, got[name], size)
		}
	}
}

func TestListMissingRootIsEmpty(t *testing.T) {
	root := NewRoot(filepath.Join(t.TempDir(), "does-not-exist"))
	entries, err := root.List()
	if err != nil {
		t.Fatalf("List on missing root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"clip.mp4", "video/mp4"},
		{"clip.WEBM", "video/webm"},
		{"clip.ogg", "video/ogg"},
		{"clip.mkv", "video/x-matroska"},
		{"clip.mov", "video/quicktime"},
		{"clip.avi", "video/x-msvideo"},
		{"clip.flv", "video/x-flv"},
		{"clip.rmvb", "video/mp4"}, // listed but not in the table: default
		{"clip", "video/mp4"},
		{"weird.bin", "video/mp4"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.name); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
