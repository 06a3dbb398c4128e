package library

import (
	"path"
	"strings"
)

// mimeTypes is the fixed extension to MIME table. Browsers pick a
// decoder from this header, so the values are load-bearing; everything
// unknown defaults to video/mp4 (what the original deployment shipped
// and what players cope with best).
var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
}

const defaultMIME = "video/mp4"

// ContentType returns the MIME type for a file name by lowercased
// extension lookup.
func ContentType(name string) string {
	if mt, ok := mimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return mt
	}
	return defaultMIME
}
