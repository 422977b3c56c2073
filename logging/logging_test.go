package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteRecoversWithoutOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	// A nil file models a rotation whose reopen failed; the next write
	// must bring file logging back.
	w := &RotatingWriter{path: path}
	defer w.Close()

	if _, err := w.Write([]byte("first line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "first line") {
		t.Errorf("log = %q", data)
	}
}

func TestRotateKeepsOneBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	w := &RotatingWriter{path: path}
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 1024*1024))
	for i := 0; i < 6; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	backup, err := os.Stat(path + backupExt)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if backup.Size() < maxLogSize {
		t.Errorf("backup size = %d, want at least %d", backup.Size(), maxLogSize)
	}
	current, err := os.Stat(path)
	if err != nil {
		t.Fatalf("current file missing: %v", err)
	}
	if current.Size() > maxLogSize {
		t.Errorf("current size = %d, rotation did not reset the file", current.Size())
	}
}
