package exportbridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchProfileReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.toml")
	if err := os.WriteFile(path, []byte("program = \"first\"\n"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	profile, err := LoadExecProfile(path)
	if err != nil {
		t.Fatalf("LoadExecProfile() error = %v", err)
	}
	bridge := NewExecBridge(profile)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.WatchProfile(ctx, path) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Invalid profiles keep the previous one.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(path, []byte("timeout_seconds = 5\n"), 0o644); err != nil {
			t.Fatalf("write invalid profile: %v", err)
		}
		if err := os.WriteFile(path, []byte("program = \"second\"\n"), 0o644); err != nil {
			t.Fatalf("write profile: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		if bridge.currentProfile().Program == "second" {
			return
		}
	}
	t.Fatalf("profile program = %q, want second", bridge.currentProfile().Program)
}
