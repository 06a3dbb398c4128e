package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound means the requested path does not exist under the root
	// or is not a regular file.
	ErrNotFound = errors.New("file not found")

	// ErrForbidden means the requested path attempted to escape the root.
	// Callers treat this as security-relevant and log it.
	ErrForbidden = errors.New("path escapes content root")
)

// Root is one content root directory. The zero value is unusable; build
// roots with NewRoot at startup.
type Root struct {
	dir string
}

func NewRoot(dir string) Root {
	return Root{dir: filepath.Clean(dir)}
}

func (r Root) Dir() string { return r.dir }

// Exists reports whether the root directory is present on disk.
// A missing root is not a fault for listing (empty catalog) but is
// useful as a readiness signal.
func (r Root) Exists() bool {
	info, err := os.Stat(r.dir)
	return err == nil && info.IsDir()
}

// Resolve maps a slash-separated relative path (already percent-decoded
// by the HTTP layer) to an absolute path under the root.
//
// Any dot segment, NUL byte, backslash, or post-canonicalization escape
// is rejected with ErrForbidden before the filesystem is consulted for
// content. Missing paths and non-regular files return ErrNotFound.
func (r Root) Resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "\x00\\") {
		return "", ErrForbidden
	}
	if hasDotSegments(name) {
		return "", ErrForbidden
	}

	rootAbs, err := filepath.Abs(r.dir)
	if err != nil {
		return "", ErrNotFound
	}

	target := filepath.Join(rootAbs, filepath.FromSlash(name))

	// Join cleans the path, but verify containment explicitly anyway:
	// the invariant is "the final absolute path is a descendant of the
	// root", not "we didn't see a .. on the way in".
	if !strings.HasPrefix(target, rootAbs+string(os.PathSeparator)) {
		return "", ErrForbidden
	}

	// Canonicalize through symlinks so a link inside the root cannot
	// point a request outside of it.
	canonical, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", ErrNotFound
	}
	canonicalRoot, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", ErrNotFound
	}
	if canonical != canonicalRoot && !strings.HasPrefix(canonical, canonicalRoot+string(os.PathSeparator)) {
		return "", ErrForbidden
	}

	info, err := os.Stat(canonical)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}

	return canonical, nil
}

// hasDotSegments reports whether any slash-separated segment is "." or "..".
func hasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
