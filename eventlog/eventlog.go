package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DownloadEvent is one served (or attempted) download.
type DownloadEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	IP        string    `json:"ip"`
	File      string    `json:"file"`
}

// Log is an append-only record of download events. New records are
// written as JSON lines; older deployments wrote tab-separated
// free-text lines, and the read path normalizes both encodings.
// When the two encodings disagree about history neither is treated as
// authoritative: all parseable lines are merged in timestamp order.
type Log struct {
	path string
	mu   sync.Mutex
}

// New creates a log backed by <dataDir>/downloads.log.
func New(dataDir string) *Log {
	return &Log{path: filepath.Join(dataDir, "downloads.log")}
}

// NewEvent stamps a fresh event for ip and file.
func NewEvent(ip, file string, at time.Time) DownloadEvent {
	return DownloadEvent{
		ID:        uuid.New().String(),
		Timestamp: at.UTC(),
		IP:        ip,
		File:      file,
	}
}

// Append writes one structured record. Callers on the request path
// must log and swallow the error; a failed append never fails a
// download response.
func (l *Log) Append(ev DownloadEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("eventlog: create dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	return nil
}

// maxBytesPerLine bounds how much of the tail is read per requested
// line. Structured records are well under this.
const maxBytesPerLine = 512

// ReadSince returns events stamped at or after since, newest last,
// inspecting at most maxLines records from the tail of the log. A
// missing log reads as empty. Unparseable lines are skipped.
func (l *Log) ReadSince(since time.Time, maxLines int) ([]DownloadEvent, error) {
	if maxLines <= 0 {
		maxLines = 10000
	}
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []DownloadEvent{}, nil
		}
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("eventlog: stat: %w", err)
	}
	budget := int64(maxLines) * maxBytesPerLine
	offset := int64(0)
	if st.Size() > budget {
		offset = st.Size() - budget
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("eventlog: seek: %w", err)
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("eventlog: read: %w", err)
	}

	lines := bytes.Split(bytes.TrimRight(raw, "\n"), []byte{'\n'})
	if offset > 0 && len(lines) > 0 {
		// the first chunk is almost certainly a partial line
		lines = lines[1:]
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	events := make([]DownloadEvent, 0, len(lines))
	for _, line := range lines {
		ev, ok := parseLine(line)
		if !ok {
			continue
		}
		if ev.Timestamp.Before(since) {
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// parseLine normalizes either record encoding into a DownloadEvent.
// Structured lines are JSON objects; legacy lines are
// "RFC3339<TAB>ip<TAB>file" (tabs or spaces).
func parseLine(line []byte) (DownloadEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return DownloadEvent{}, false
	}
	if line[0] == '{' {
		var ev DownloadEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return DownloadEvent{}, false
		}
		if ev.Timestamp.IsZero() || ev.IP == "" {
			return DownloadEvent{}, false
		}
		return ev, true
	}
	fields := strings.Fields(string(line))
	if len(fields) < 3 {
		return DownloadEvent{}, false
	}
	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return DownloadEvent{}, false
	}
	return DownloadEvent{
		Timestamp: ts.UTC(),
		IP:        fields[1],
		File:      strings.Join(fields[2:], " "),
	}, true
}
