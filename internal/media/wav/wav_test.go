package wav

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeReadInfoRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	format := Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	pcm := make([]byte, 16000*2) // one second of silence

	if err := Encode(path, format, pcm); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Format != format {
		t.Fatalf("format mismatch: got %+v want %+v", info.Format, format)
	}
	if info.Frames != 16000 {
		t.Fatalf("frames = %d, want 16000", info.Frames)
	}
	if d := info.Duration(); math.Abs(d-1.0) > 1e-9 {
		t.Fatalf("duration = %f, want 1.0", d)
	}
}

func TestWriterIncrementalFrames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chunks.wav")
	w, err := NewWriter(path, Format{SampleRate: 8000, Channels: 2, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for range 3 {
		if _, err := w.Write(make([]byte, 400)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if w.Frames() != 300 {
		t.Fatalf("frames = %d, want 300", w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if f.Info.Frames != 300 {
		t.Fatalf("parsed frames = %d, want 300", f.Info.Frames)
	}
	data, err := io.ReadAll(f.Data())
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if len(data) != 1200 {
		t.Fatalf("data length = %d, want 1200", len(data))
	}
}

func TestOpenRejectsNonWave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(path, []byte("not audio at all, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for non-wave file")
	}
}

func TestReadInfoTolerateZeroChannels(t *testing.T) {
	t.Parallel()

	// A structurally valid file whose fmt chunk declares zero channels.
	// The parser must surface it rather than error so callers can skip it.
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(pcmFormatCode))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // channels
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	path := filepath.Join(t.TempDir(), "zero.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Format.Channels != 0 {
		t.Fatalf("channels = %d, want 0", info.Format.Channels)
	}
	if info.Duration() != 0 {
		t.Fatalf("duration = %f, want 0", info.Duration())
	}
}
