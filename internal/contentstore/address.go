package contentstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultExtension is assumed for hash-addressed files when the catalog does
// not name one.
const DefaultExtension = "mp3"

// knownExtensions is the sibling set considered by PruneStaleVariants.
var knownExtensions = []string{"mp3", "wav", "ogg", "flac", "aac"}

// AddressFor derives the deterministic cache path for a remote locator. When
// the URL's last path segment carries an extension the sanitized segment is
// used directly; otherwise the full URL is hashed into audio_<hash>.<ext>.
//
// This is the lookup-side base address. It never carries a collision suffix;
// see Store.TargetFor for the write-side quirk.
func (s *Store) AddressFor(url, extension string) string {
	return filepath.Join(s.audioDir, FileNameFor(url, extension))
}

// FileNameFor derives just the deterministic cache file name for a locator.
func FileNameFor(url, extension string) string {
	segment := lastSegment(url)
	if strings.Contains(segment, ".") {
		if name := sanitizeName(segment); name != "" && name != "." {
			return name
		}
	}
	ext := strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return fmt.Sprintf("audio_%08x.%s", hashLocator(url), ext)
}

func lastSegment(url string) string {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return trimmed
}

// sanitizeName keeps alphanumerics, '.', '-', and '_', maps spaces to '_',
// and drops everything else.
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// hashLocator computes the 32-bit DJB2 hash of the full URL.
func hashLocator(url string) uint32 {
	var hash uint32 = 5381
	for i := 0; i < len(url); i++ {
		hash = hash<<5 + hash + uint32(url[i])
	}
	return hash
}

// splitExtension returns the path without its extension and the bare extension.
func splitExtension(path string) (string, string) {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext), strings.TrimPrefix(ext, ".")
}
