// Package segments persists synthesized audio segments and rediscovers them
// from disk. The filesystem is the source of truth for stitching: a rescan of
// the output directory, not in-memory run state, decides what gets combined,
// so partially-completed runs can be resumed after a crash.
package segments

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"podforge/internal/media/wav"
	"podforge/internal/script"
)

// MaxIndex is the highest segment index the store accepts. The zero-padded
// three-digit index keeps lexicographic filename order equal to generation
// order; a fourth digit would break that sort, so larger indices are rejected.
const MaxIndex = 999

var segmentNamePattern = regexp.MustCompile(`^segment_\d{3}_[a-z]+\.wav$`)

// Store writes segment files into a fixed output directory. Segments are
// never mutated or deleted once written.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("segment directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Filename returns the canonical segment filename for an index and speaker.
func Filename(index int, speaker script.Speaker) string {
	return fmt.Sprintf("segment_%03d_%s.wav", index, speaker.FileTag())
}

// Persist writes one PCM buffer as a segment wave file and returns its path.
// The index is embedded zero-padded in the filename so that sorting by name
// reproduces generation order regardless of synthesis concurrency.
func (s *Store) Persist(pcm []byte, format wav.Format, speaker script.Speaker, index int) (string, error) {
	if index < 0 || index > MaxIndex {
		return "", fmt.Errorf("segment index %d outside supported range 0-%d", index, MaxIndex)
	}
	path := filepath.Join(s.dir, Filename(index, speaker))
	if err := wav.Encode(path, format, pcm); err != nil {
		return "", fmt.Errorf("persist segment %d: %w", index, err)
	}
	return path, nil
}

// Discover recursively scans dir for files matching the segment naming
// convention and returns their paths sorted by filename. Files named in
// exclude (by base name) are left out.
func Discover(dir string, exclude ...string) ([]string, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if _, excluded := skip[name]; excluded {
			return nil
		}
		if segmentNamePattern.MatchString(name) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan segment directory: %w", err)
	}

	sort.Slice(found, func(i, j int) bool {
		bi, bj := filepath.Base(found[i]), filepath.Base(found[j])
		if bi != bj {
			return bi < bj
		}
		return found[i] < found[j]
	})
	return found, nil
}

// Discover scans the store's own directory.
func (s *Store) Discover(exclude ...string) ([]string, error) {
	return Discover(s.dir, exclude...)
}
