package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Format describes the PCM layout of a WAVE file.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BlockAlign returns the byte size of one frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// Info combines a file's format with its frame count.
type Info struct {
	Format
	Frames int
}

// Duration returns the playback length in seconds. Zero sample rates yield 0.
func (i Info) Duration() float64 {
	if i.SampleRate <= 0 {
		return 0
	}
	return float64(i.Frames) / float64(i.SampleRate)
}

// ErrNotWave is returned when a file lacks the RIFF/WAVE signature.
var ErrNotWave = errors.New("not a RIFF/WAVE file")

const pcmFormatCode = 1

// File is an open WAVE file positioned at the start of its sample data.
type File struct {
	Info Info

	f    *os.File
	data io.Reader
}

// Open parses the RIFF headers of path and leaves the file positioned at the
// first sample frame. Callers must Close the returned File.
//
// Header fields are reported as stored, including degenerate values such as
// zero channels; callers decide whether to reject them.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, dataLen, err := parseHeaders(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &File{
		Info: info,
		f:    f,
		data: io.LimitReader(f, dataLen),
	}, nil
}

// Data returns a reader over the raw sample bytes.
func (w *File) Data() io.Reader {
	return w.data
}

// Close releases the underlying file handle.
func (w *File) Close() error {
	if w == nil || w.f == nil {
		return nil
	}
	return w.f.Close()
}

// ReadInfo parses just the headers of path.
func ReadInfo(path string) (Info, error) {
	file, err := Open(path)
	if err != nil {
		return Info{}, err
	}
	defer file.Close()
	return file.Info, nil
}

func parseHeaders(r io.Reader) (Info, int64, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Info{}, 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Info{}, 0, ErrNotWave
	}

	var (
		info    Info
		sawFmt  bool
		dataLen int64
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Info{}, 0, errors.New("missing data chunk")
			}
			return Info{}, 0, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return Info{}, 0, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			var fmtBody [16]byte
			if _, err := io.ReadFull(r, fmtBody[:]); err != nil {
				return Info{}, 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			if code := binary.LittleEndian.Uint16(fmtBody[0:2]); code != pcmFormatCode {
				return Info{}, 0, fmt.Errorf("unsupported format code %d (PCM only)", code)
			}
			info.Channels = int(binary.LittleEndian.Uint16(fmtBody[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtBody[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtBody[14:16]))
			sawFmt = true
			if skip := size - 16 + size%2; skip > 0 {
				if err := discard(r, skip); err != nil {
					return Info{}, 0, err
				}
			}
		case "data":
			if !sawFmt {
				return Info{}, 0, errors.New("data chunk before fmt chunk")
			}
			dataLen = size
			if align := info.BlockAlign(); align > 0 {
				info.Frames = int(dataLen) / align
			}
			return info, dataLen, nil
		default:
			skip := size
			if size%2 == 1 {
				skip++
			}
			if err := discard(r, skip); err != nil {
				return Info{}, 0, err
			}
		}
	}
}

func discard(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("skip chunk: %w", err)
	}
	return nil
}
