package fileserver

import (
	"path/filepath"
	"strings"
)

const DefaultMimeType = "text/plain"

var mimeTypes = map[string]string{
	"html": "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"swf":  "application/x-shockwave-flash",
}

// MimeType maps the extension of the final path element to a content type.
// Matching is case-sensitive; unknown or missing extensions get text/plain.
func MimeType(path string) string {
	name := filepath.Base(path)

	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return DefaultMimeType
	}

	if mime, ok := mimeTypes[name[i+1:]]; ok {
		return mime
	}
	return DefaultMimeType
}
