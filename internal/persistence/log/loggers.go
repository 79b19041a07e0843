package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"snowdrift.dev/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// segment is one open hourly file: entries are JSON-encoded into a buffer
// that feeds the zstd stream.
type segment struct {
	hour string
	path string
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	enc  *json.Encoder
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	buf := bufio.NewWriterSize(zw, 64*1024)
	return &segment{hour: hour, path: path, file: file, zw: zw, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// close ends the zstd frame so the file decodes on its own.
func (s *segment) close() error {
	return errors.Join(s.buf.Flush(), s.zw.Close(), s.file.Close())
}

// TickLogger appends one JSON line per tick to
// <dataDir>/events/events-YYYY-MM-DD-HH.jsonl.zst, starting a new file when
// the UTC hour changes. Files opened again in the same hour get another
// zstd frame appended.
type TickLogger struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	seg     *segment
	records uint64
	opened  []string
}

func NewTickLogger(dataDir string) *TickLogger {
	return &TickLogger{dir: filepath.Join(dataDir, "events"), now: time.Now}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.now().UTC().Format(hourLayout)
	if l.seg == nil || l.seg.hour != hour {
		if err := l.rotate(hour); err != nil {
			return err
		}
	}
	if err := l.seg.enc.Encode(e); err != nil {
		return err
	}
	l.records++
	return nil
}

func (l *TickLogger) rotate(hour string) error {
	if l.seg != nil {
		err := l.seg.close()
		l.seg = nil
		if err != nil {
			return err
		}
	}
	seg, err := openSegment(filepath.Join(l.dir, "events-"+hour+".jsonl.zst"), hour)
	if err != nil {
		return err
	}
	l.seg = seg
	l.opened = append(l.opened, seg.path)
	return nil
}

func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seg == nil {
		return nil
	}
	err := l.seg.close()
	l.seg = nil
	return err
}

// Records is the number of ticks written since construction.
func (l *TickLogger) Records() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records
}

// Segments lists the files this logger opened, oldest first.
func (l *TickLogger) Segments() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.opened...)
}
