package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fridgekeep/fridgekeep/agent/internal/config"
	"github.com/fridgekeep/fridgekeep/pkg/types"
)

func testConfig(dir string) config.AgentConfig {
	return config.AgentConfig{
		OwnerID:    "kitchen",
		SpoolDirs:  []string{dir},
		Extensions: []string{".jpg", ".png"},
		IDStrategy: "filename",
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("img"), 0o600); err != nil {
		t.Fatal(err)
	}
}

// startWatcher runs w in the background and returns the channel of emitted requests.
func startWatcher(t *testing.T, w *Watcher) <-chan types.RegisterRequest {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan types.RegisterRequest, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx, func(r types.RegisterRequest) { out <- r }); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return out
}

func next(t *testing.T, ch <-chan types.RegisterRequest) types.RegisterRequest {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for capture")
	}
	return types.RegisterRequest{}
}

func TestRun_EmitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "shelf-1.jpg"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	out := startWatcher(t, New(testConfig(dir)))

	r := next(t, out)
	if r.ID != "shelf-1" {
		t.Errorf("ID: got %q, want shelf-1", r.ID)
	}
	if r.OwnerID != "kitchen" {
		t.Errorf("OwnerID: got %q", r.OwnerID)
	}
	if r.Location != filepath.Join(dir, "shelf-1.jpg") {
		t.Errorf("Location: got %q", r.Location)
	}
	select {
	case extra := <-out:
		t.Errorf("unexpected emit for %q", extra.Location)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRun_EmitsNewFilesOnce(t *testing.T) {
	dir := t.TempDir()
	w := New(testConfig(dir))
	out := startWatcher(t, w)
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "door.PNG")
	writeFile(t, path)
	// A second write to the same file must not register it again.
	writeFile(t, path)

	r := next(t, out)
	if r.ID != "door" {
		t.Errorf("ID: got %q, want door", r.ID)
	}
	select {
	case dup := <-out:
		t.Errorf("duplicate emit for %q", dup.Location)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSetOwner_AppliesToLaterCaptures(t *testing.T) {
	dir := t.TempDir()
	w := New(testConfig(dir))
	out := startWatcher(t, w)
	time.Sleep(50 * time.Millisecond)

	w.SetOwner("garage")
	writeFile(t, filepath.Join(dir, "freezer.jpg"))

	if r := next(t, out); r.OwnerID != "garage" {
		t.Errorf("OwnerID: got %q, want garage", r.OwnerID)
	}
}

func TestIDFor(t *testing.T) {
	w := New(testConfig(t.TempDir()))
	if got := w.idFor("/spool/a.b.jpg"); got != "a.b" {
		t.Errorf("filename strategy: got %q, want a.b", got)
	}

	w.strategy = "uuid"
	w.newUUID = func() string { return "fixed-uuid" }
	if got := w.idFor("/spool/a.jpg"); got != "fixed-uuid" {
		t.Errorf("uuid strategy: got %q", got)
	}
}

func TestMatches(t *testing.T) {
	w := New(testConfig(t.TempDir()))
	tests := map[string]bool{
		"/s/a.jpg":      true,
		"/s/a.JPG":      true,
		"/s/a.png":      true,
		"/s/a.heic":     false,
		"/s/.a.jpg":     false,
		"/s/a.jpg.part": false,
	}
	for path, want := range tests {
		if got := w.matches(path); got != want {
			t.Errorf("matches(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRun_MissingDir(t *testing.T) {
	w := New(testConfig(filepath.Join(t.TempDir(), "absent")))
	if err := w.Run(context.Background(), func(types.RegisterRequest) {}); err == nil {
		t.Fatal("expected error for missing spool dir")
	}
}
