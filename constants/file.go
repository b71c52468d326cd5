package constants

import (
	"path"
	"strings"
)

// EvidenceExtensions holds the image extensions accepted as vendor delivery evidence.
var EvidenceExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"heif": {},
	"webp": {},
}

// MaxEvidenceImages bounds the number of evidence references on one proof.
const MaxEvidenceImages = 20

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsEvidenceRef reports whether ref looks like an acceptable image reference.
// References without an extension (content-addressed URIs) are accepted.
func IsEvidenceRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ext := NormalizeExt(path.Ext(ref))
	if ext == "" {
		return true
	}
	_, ok := EvidenceExtensions[ext]
	return ok
}
