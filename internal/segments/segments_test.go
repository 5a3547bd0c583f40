package segments_test

import (
	"os"
	"path/filepath"
	"testing"

	"podforge/internal/media/wav"
	"podforge/internal/script"
	"podforge/internal/segments"
	"podforge/internal/testsupport"
)

var testFormat = wav.Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

func TestPersistNamesByIndexAndSpeaker(t *testing.T) {
	t.Parallel()

	store, err := segments.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	path, err := store.Persist(make([]byte, 3200), testFormat, script.SpeakerHost, 0)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if got := filepath.Base(path); got != "segment_000_host.wav" {
		t.Fatalf("filename = %q, want segment_000_host.wav", got)
	}

	info, err := wav.ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Format != testFormat || info.Frames != 1600 {
		t.Fatalf("unexpected segment info: %+v", info)
	}
}

func TestPersistRejectsOutOfRangeIndex(t *testing.T) {
	t.Parallel()

	store, err := segments.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for _, index := range []int{-1, 1000, 4200} {
		if _, err := store.Persist(nil, testFormat, script.SpeakerHost, index); err == nil {
			t.Fatalf("expected rejection for index %d", index)
		}
	}
	if _, err := store.Persist(make([]byte, 2), testFormat, script.SpeakerExpert, segments.MaxIndex); err != nil {
		t.Fatalf("index %d should be accepted: %v", segments.MaxIndex, err)
	}
}

func TestDiscoverSortsByNameAcrossSubdirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Written out of index order, one nested a level down.
	testsupport.WriteSegmentWAV(t, filepath.Join(dir, "segment_002_host.wav"), testFormat, 10)
	testsupport.WriteSegmentWAV(t, filepath.Join(dir, "nested", "segment_000_host.wav"), testFormat, 10)
	testsupport.WriteSegmentWAV(t, filepath.Join(dir, "segment_001_expert.wav"), testFormat, 10)

	found, err := segments.Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"segment_000_host.wav", "segment_001_expert.wav", "segment_002_host.wav"}
	if len(found) != len(want) {
		t.Fatalf("found %d segments, want %d", len(found), len(want))
	}
	for i, path := range found {
		if filepath.Base(path) != want[i] {
			t.Fatalf("position %d = %q, want %q", i, filepath.Base(path), want[i])
		}
	}
}

func TestDiscoverIgnoresNonSegmentsAndExcluded(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testsupport.WriteSegmentWAV(t, filepath.Join(dir, "segment_000_host.wav"), testFormat, 10)
	testsupport.WriteSegmentWAV(t, filepath.Join(dir, "final_podcast.wav"), testFormat, 10)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteSegmentWAV(t, filepath.Join(dir, "segment_001_host.wav"), testFormat, 10)

	found, err := segments.Discover(dir, "segment_001_host.wav")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 1 || filepath.Base(found[0]) != "segment_000_host.wav" {
		t.Fatalf("unexpected discovery result: %v", found)
	}
}
