package capture

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Capture logs hold a raw RTCM frame stream with relative timing, for
// protocol regression work and for feeding the simulator. Line-oriented
// text:
//
//   - blank lines and lines starting with '#' are ignored
//   - "START" resets the time origin (the next record is relative to 0)
//   - data lines are "<t_ns>,<hex>": nanoseconds since START, frame bytes
//
// A START marker surfaces as a Record with a nil Frame.

type Record struct {
	At    time.Duration
	Frame []byte
}

// ReadLog parses an entire capture log.
func ReadLog(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 256)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		tsStr, hexStr, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("capture: line %q has no comma", line)
		}
		tsStr = strings.TrimSpace(tsStr)
		hexStr = strings.ReplaceAll(strings.TrimSpace(hexStr), " ", "")
		if tsStr == "" || hexStr == "" {
			return nil, fmt.Errorf("capture: line %q has an empty field", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil || tsNs < 0 {
			return nil, fmt.Errorf("capture: bad timestamp %q", tsStr)
		}
		frame, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("capture: bad frame hex: %w", err)
		}
		if len(frame) == 0 {
			return nil, fmt.Errorf("capture: empty frame on line %q", line)
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Frame: frame})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFile parses the capture log at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLog(f)
}

// Writer appends frames to a capture log with timing relative to creation.
type Writer struct {
	f      *os.File
	w      *bufio.Writer
	origin time.Time
	closed bool
}

// Create opens path for writing, truncating it, and writes the initial
// START marker.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := w.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: w, origin: time.Now()}, nil
}

// Append records one frame observed at now.
func (cw *Writer) Append(now time.Time, frame []byte) error {
	if cw.closed {
		return errors.New("capture: writer is closed")
	}
	if len(frame) == 0 {
		return errors.New("capture: empty frame")
	}
	d := now.Sub(cw.origin)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(cw.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(frame))
	return err
}

func (cw *Writer) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	if err := cw.w.Flush(); err != nil {
		_ = cw.f.Close()
		return err
	}
	return cw.f.Close()
}
