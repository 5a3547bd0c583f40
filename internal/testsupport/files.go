package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"podforge/internal/media/wav"
)

// WriteSegmentWAV writes a PCM wave fixture holding the requested number of
// frames of silence at the given format.
func WriteSegmentWAV(t testing.TB, path string, format wav.Format, frames int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	pcm := make([]byte, frames*format.BlockAlign())
	if err := wav.Encode(path, format, pcm); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

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
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
