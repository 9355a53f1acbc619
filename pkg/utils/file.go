package utils

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename reduces an uploader-supplied filename to a safe basename:
// path components are stripped and anything outside [A-Za-z0-9._-] becomes
// an underscore. Returns "" when nothing usable remains.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)

	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	clean := strings.Trim(b.String(), "._")
	if clean == "" || clean == "." || clean == ".." {
		return ""
	}
	return clean
}

// ContentTypeFor returns the MIME type for a filename extension, defaulting
// to a generic binary type for anything unrecognized.
func ContentTypeFor(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
