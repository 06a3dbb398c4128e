// Package httprange parses the HTTP Range request header for
// single-range byte requests against a resource of known size.
//
// Only the first range of a bytes= header is honored; multipart range
// responses are deliberately out of scope. Malformed headers degrade to
// "no range" so the caller falls back to a full 200 response, which is
// what every mainstream video player copes with.
package httprange

import (
	"strconv"
	"strings"
)

// Kind classifies the outcome of parsing a Range header.
type Kind int

const (
	// NoRange means the header was absent, malformed, or not a bytes
	// range. Serve the whole resource with a 200.
	NoRange Kind = iota

	// Satisfiable means Start and End hold a valid closed interval
	// within the resource. Serve a 206 with Content-Range.
	Satisfiable

	// Unsatisfiable means the request asked for bytes entirely outside
	// the resource. Serve a 416 with Content-Range: bytes */<size>.
	Unsatisfiable
)

// Result is a parsed byte range. Start and End are inclusive offsets
// and only meaningful when Kind is Satisfiable.
type Result struct {
	Kind  Kind
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r Result) Length() int64 {
	if r.Kind != Satisfiable {
		return 0
	}
	return r.End - r.Start + 1
}

// Parse interprets a Range header value against a resource of size
// bytes. size must be non-negative.
//
// The grammar accepted is "bytes=<start>-<end>", "bytes=<start>-" and
// "bytes=-<suffix>". When several comma-separated ranges are present
// only the first is used. An end past the last byte is clamped. A
// suffix longer than the resource means the whole resource.
func Parse(header string, size int64) Result {
	if header == "" {
		return Result{Kind: NoRange}
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return Result{Kind: NoRange}
	}
	spec := strings.TrimPrefix(header, prefix)
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSpace(spec)

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return Result{Kind: NoRange}
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// Suffix form: last <endStr> bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n < 0 {
			return Result{Kind: NoRange}
		}
		if n == 0 || size == 0 {
			return Result{Kind: Unsatisfiable}
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return Result{Kind: Satisfiable, Start: start, End: size - 1}
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return Result{Kind: NoRange}
	}
	if start >= size {
		return Result{Kind: Unsatisfiable}
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return Result{Kind: NoRange}
		}
		if end < start {
			return Result{Kind: Unsatisfiable}
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return Result{Kind: Satisfiable, Start: start, End: end}
}
