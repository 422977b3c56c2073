package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// The daemon can run unattended for weeks; the log file self-limits instead
// of relying on external logrotate.
const (
	maxLogSize = 5 * 1024 * 1024
	backupExt  = ".1"
)

// RotatingWriter is a size-capped log file. When the cap is hit the current
// file becomes the single backup and a fresh file starts.
type RotatingWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
	size int64
}

// Setup opens (or creates) the log file at path and tees the stdlib logger
// to stdout and the file.
func Setup(path string) (*RotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	w := &RotatingWriter{
		file: f,
		path: path,
		size: size,
	}
	if size > maxLogSize {
		w.rotate()
	}

	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// A failed reopen during rotation leaves file nil; retry here so one
	// bad moment (disk full, permissions flap) doesn't end file logging
	// for the life of the process.
	if w.file == nil && !w.reopen() {
		// Swallow the line; the stdout side of the tee still has it.
		return len(p), nil
	}

	n, err := w.file.Write(p)
	w.size += int64(n)

	if w.size > maxLogSize {
		w.rotate()
	}

	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()
	w.file = nil
	w.size = 0
	os.Rename(w.path, w.path+backupExt)
	w.reopen()
}

func (w *RotatingWriter) reopen() bool {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return false
	}
	w.file = f
	if info, err := f.Stat(); err == nil {
		w.size = info.Size()
	}
	return true
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
