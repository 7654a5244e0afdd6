package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
)

func TestWatcher_WriteTriggersInvalidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mgr, err := sessionlog.Create(dir)
	if err != nil {
		t.Fatalf("sessionlog.Create: %v", err)
	}
	defer mgr.Close()

	w, err := New(mgr, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Track(path); err != nil {
		t.Fatalf("Track: %v", err)
	}

	go w.Run()

	if err := os.WriteFile(path, []byte("v2"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(mgr.Entries()) > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected an invalidation entry to be recorded after the write")
}
