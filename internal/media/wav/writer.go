package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Writer streams PCM frames into a WAVE file. The header is written with
// placeholder sizes and patched on Close, so an arbitrary number of frames can
// be appended without knowing the total up front.
type Writer struct {
	f      *os.File
	format Format
	frames int64
	closed bool
}

// NewWriter creates (or truncates) path and writes the canonical 44-byte PCM
// header. The format must be fully specified.
func NewWriter(path string, format Format) (*Writer, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 || format.BitsPerSample <= 0 {
		return nil, fmt.Errorf("incomplete wav format: %+v", format)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, format: format}
	if err := w.writeHeader(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Format returns the fixed output format.
func (w *Writer) Format() Format {
	return w.format
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int64 {
	return w.frames
}

// Write appends raw sample bytes. Partial frames are the caller's bug and are
// still counted by complete frames only.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed wav writer")
	}
	n, err := w.f.Write(p)
	if align := w.format.BlockAlign(); align > 0 {
		w.frames += int64(n) / int64(align)
	}
	return n, err
}

// ReadFrom copies sample bytes from r until EOF.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	if w.closed {
		return 0, errors.New("write to closed wav writer")
	}
	n, err := io.Copy(w.f, r)
	if align := w.format.BlockAlign(); align > 0 {
		w.frames += n / int64(align)
	}
	return n, err
}

// Close patches the RIFF and data chunk sizes and closes the file.
func (w *Writer) Close() error {
	if w == nil || w.closed {
		return nil
	}
	w.closed = true

	dataLen := w.frames * int64(w.format.BlockAlign())
	if err := w.writeHeader(dataLen); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

func (w *Writer) writeHeader(dataLen int64) error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], pcmFormatCode)
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.format.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.format.SampleRate))
	byteRate := w.format.SampleRate * w.format.BlockAlign()
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(w.format.BlockAlign()))
	binary.LittleEndian.PutUint16(header[34:36], uint16(w.format.BitsPerSample))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	if _, err := w.f.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if dataLen > 0 {
		if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seek end: %w", err)
		}
	}
	return nil
}

// Encode writes a complete WAVE file from an in-memory PCM buffer.
func Encode(path string, format Format, pcm []byte) error {
	w, err := NewWriter(path, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
