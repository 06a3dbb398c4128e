package library

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// mediaExts is the allow-list of extensions the catalog exposes.
// Anything else under a root (thumbnails, subtitles, partial uploads)
// is invisible to clients.
var mediaExts = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".mkv":  true,
	".rmvb": true,
	".avi":  true,
	".flv":  true,
	".mov":  true,
}

// Entry is one playable file in a catalog listing.
type Entry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// List walks the root recursively and returns every media file as a
// slash-separated path relative to the root, in traversal order.
// Callers that want a presentation order sort the result themselves.
//
// A missing root is "no content yet", not a fault: the result is empty
// and the error is nil. Unreadable subtrees are skipped.
func (r Root) List() ([]Entry, error) {
	entries := []Entry{}

	err := filepath.WalkDir(r.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				// root itself is missing or unreadable
				return nil
			}
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !mediaExts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		rel, err := filepath.Rel(r.dir, p)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, Entry{
			Name:         filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return entries, err
	}
	return entries, nil
}
