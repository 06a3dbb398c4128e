// Package library models the two on-disk video roots (public and
// restricted) and everything that touches them: traversal-safe path
// resolution, recursive catalog listing filtered by the media extension
// allow-list, and the extension to MIME type table.
//
// A Root is a pure value over a configured directory; nothing here holds
// state or mutates the filesystem. Requests never reach the filesystem
// with a path that has not been canonicalized and proven to live under
// the root.
package library
