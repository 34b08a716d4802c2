// Package logtail follows a JSON-lines kill log written by a game server and
// hands every new complete line to a callback.
package logtail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval backs up fsnotify on filesystems that drop events.
const DefaultPollInterval = time.Second

// Tailer follows one file. Lines present when Run starts are skipped.
type Tailer struct {
	path    string
	handle  func(line string)
	poll    time.Duration
	file    *os.File
	offset  int64
	missing bool
}

// New creates a tailer for path. poll <= 0 means DefaultPollInterval.
func New(path string, poll time.Duration, handle func(line string)) *Tailer {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Tailer{path: path, handle: handle, poll: poll}
}

// Run blocks until ctx is cancelled.
func (t *Tailer) Run(ctx context.Context) error {
	absPath, err := filepath.Abs(t.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", t.path, err)
	}
	t.path = filepath.Clean(absPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// the directory is watched so that rotation and late creation are seen
	if err := w.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	if err := t.open(true); err != nil {
		return err
	}
	defer t.close()

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Clean(ev.Name), t.path) {
				continue
			}
			// rotation is detected by file identity in readNew
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				t.readNew()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("logtail: watcher error: %v", err)
		case <-ticker.C:
			t.readNew()
		}
	}
}

// open opens the file; atEnd skips existing content. A missing file is not
// an error: it is picked up once created.
func (t *Tailer) open(atEnd bool) error {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		t.missing = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	t.file = f
	t.missing = false
	t.offset = 0
	if atEnd {
		if t.offset, err = f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			t.file = nil
			return fmt.Errorf("seek %s: %w", t.path, err)
		}
	}
	return nil
}

func (t *Tailer) close() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// readNew delivers complete lines written since the last read. When the path
// names a new file (rotation missed by the watcher) the old one is read to the
// end first and the new one is read from the start.
func (t *Tailer) readNew() {
	if t.file != nil && t.rotated() {
		t.drain()
		t.close()
		t.missing = true
	}
	if t.file == nil {
		if !t.missing {
			return
		}
		if err := t.open(false); err != nil || t.file == nil {
			return
		}
	}
	t.drain()
}

// rotated reports whether the path no longer names the open file.
func (t *Tailer) rotated() bool {
	cur, err := t.file.Stat()
	if err != nil {
		return false
	}
	onDisk, err := os.Stat(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	return err == nil && !os.SameFile(cur, onDisk)
}

// drain reads complete lines after offset. A trailing partial line stays
// unread until its newline arrives.
func (t *Tailer) drain() {
	if t.file == nil {
		return
	}
	info, err := t.file.Stat()
	if err != nil {
		return
	}
	if info.Size() < t.offset {
		t.offset = 0 // truncated
	}
	if info.Size() == t.offset {
		return
	}
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return
	}
	r := bufio.NewReaderSize(t.file, 64*1024)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		t.offset += int64(len(line))
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			t.handle(trimmed)
		}
	}
}
