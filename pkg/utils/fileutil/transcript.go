package fileutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"
)

// Entry is one evaluated line of a session.
type Entry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Session string    `json:"session,omitempty"`
	Source  string    `json:"source"`
	Output  []string  `json:"output,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Transcript appends entries to a JSON array file. A sibling ".lock" file
// serializes writers across processes.
type Transcript struct {
	path     string
	file     *os.File
	fileLock *flock.Flock
	mu       sync.Mutex
	tailSize int64
}

// OpenTranscript opens or creates the transcript at path.
func OpenTranscript(path string) (*Transcript, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	t := &Transcript{
		path:     path,
		file:     f,
		fileLock: flock.New(path + ".lock"),
		tailSize: 1024,
	}
	if err := t.init(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return t, nil
}

// Path returns the transcript file location.
func (t *Transcript) Path() string {
	return t.path
}

func (t *Transcript) init() error {
	if err := t.fileLock.Lock(); err != nil {
		return err
	}
	defer func() { _ = t.fileLock.Unlock() }()

	fi, err := t.file.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		if _, err := t.file.WriteAt([]byte("[\n]\n"), 0); err != nil {
			return err
		}
		return t.file.Sync()
	}
	head := make([]byte, min(fi.Size(), 16))
	if _, err := t.file.ReadAt(head, 0); err != nil && err != io.EOF {
		return err
	}
	if trimmed := bytes.TrimLeftFunc(head, unicode.IsSpace); len(trimmed) == 0 || trimmed[0] != '[' {
		return errors.New("invalid transcript: missing opening bracket")
	}
	return nil
}

// Append writes one entry and keeps the file a valid JSON array.
func (t *Transcript) Append(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.fileLock.Lock(); err != nil {
		return err
	}
	defer func() { _ = t.fileLock.Unlock() }()

	fi, err := t.file.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()
	tail := min(size, t.tailSize)
	offset := size - tail
	buf := make([]byte, tail)
	if _, err := t.file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return err
	}
	closing := bytes.LastIndexByte(buf, ']')
	if closing == -1 {
		return errors.New("invalid transcript: missing closing bracket")
	}
	// Find the last significant byte before the closing bracket.
	pos := closing - 1
	for pos >= 0 && unicode.IsSpace(rune(buf[pos])) {
		pos--
	}
	if pos < 0 {
		return errors.New("invalid transcript: no content before closing bracket")
	}
	prefix := ",\n  "
	if buf[pos] == '[' {
		prefix = "\n  "
	}
	cut := offset + int64(pos) + 1
	if err := t.file.Truncate(cut); err != nil {
		return err
	}
	out := make([]byte, 0, len(prefix)+len(data)+3)
	out = append(out, prefix...)
	out = append(out, data...)
	out = append(out, "\n]\n"...)
	if _, err := t.file.WriteAt(out, cut); err != nil {
		return err
	}
	return t.file.Sync()
}

// Entries reads back every entry in the transcript.
func (t *Transcript) Entries() ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.fileLock.RLock(); err != nil {
		return nil, err
	}
	defer func() { _ = t.fileLock.Unlock() }()

	raw, err := os.ReadFile(t.path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying file.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
