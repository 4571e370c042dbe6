package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// CatalogJSON builds a minimal catalog payload from key/url pairs. Each value
// becomes an audio entry pointing at the given remote path.
func CatalogJSON(pairs map[string]string) []byte {
	out := []byte("{")
	first := true
	for key, url := range pairs {
		if !first {
			out = append(out, ',')
		}
		first = false
		out = append(out, []byte(`"`+key+`":{"type":"audio","path":"`+url+`","description":"`+key+`"}`)...)
	}
	return append(out, '}')
}
