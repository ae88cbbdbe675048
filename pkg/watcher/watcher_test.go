package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// startPolling starts a watcher in polling mode with short intervals so
// tests do not depend on platform fsnotify behavior.
func startPolling(t *testing.T, path string, opts ...Option) *Watcher {
	t.Helper()
	opts = append(opts,
		WithForcePoll(true),
		WithPollInterval(10*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
	)
	w, err := New(path, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "url: https://old.example.com\n")

	w := startPolling(t, path)
	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	// Ensure the mtime moves even on coarse-grained filesystems.
	time.Sleep(20 * time.Millisecond)
	writeFile(t, path, "url: https://new.example.com\n")

	select {
	case <-w.Changed():
	case <-time.After(3 * time.Second):
		t.Fatal("change never reported")
	}
}

func TestWatcher_DetectsCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	w := startPolling(t, path)

	writeFile(t, path, "url: https://example.com\n")

	select {
	case <-w.Changed():
	case <-time.After(3 * time.Second):
		t.Fatal("file creation never reported")
	}
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "url: https://example.com\n")

	errCh := make(chan error, 1)
	w := startPolling(t, path, WithOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}))
	_ = w

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if err != ErrFileRemoved {
			t.Errorf("expected ErrFileRemoved, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("removal never reported")
	}
}

func TestWatcher_OnChangeCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "a\n")

	var changes atomic.Int64
	startPolling(t, path, WithOnChange(func() { changes.Add(1) }))

	time.Sleep(20 * time.Millisecond)
	writeFile(t, path, "b\n")

	deadline := time.Now().Add(3 * time.Second)
	for changes.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("callback never invoked")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcher_StartTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "a\n")

	w := startPolling(t, path)
	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "a\n")

	w := startPolling(t, path)
	w.Stop()
	w.Stop()
	if w.IsStarted() {
		t.Error("watcher still started after stop")
	}
}

func TestWatcher_ForcePollEnv(t *testing.T) {
	t.Setenv("REDTICK_FORCE_POLL", "1")

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "a\n")

	w, err := New(path, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Error("REDTICK_FORCE_POLL=1 should force polling mode")
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)

	var fired atomic.Int64
	for i := 0; i < 10; i++ {
		d.Trigger(func() { fired.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("expected a burst to coalesce into 1 invocation, got %d", got)
	}
}

func TestDebouncer_CancelDropsPending(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)

	var fired atomic.Int64
	d.Trigger(func() { fired.Add(1) })
	d.Cancel()

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("cancelled trigger still fired %d times", got)
	}
}
