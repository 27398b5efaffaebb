package ml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"iotdetect/flow"
)

func TestReloaderKeepsPreviousModelOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detector.json.gz")
	if err := WriteArtifact(path, treeArtifact("v1")); err != nil {
		t.Fatal(err)
	}

	r, err := NewReloader("detector", path, ReloaderOptions{ExpectFeatures: flow.NumFeatures, CacheSize: 16})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Info().Version != "v1" || r.Info().Name != "detector" {
		t.Fatalf("unexpected info: %+v", r.Info())
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if r.Info().Version != "v1" {
		t.Fatalf("expected previous model to stay loaded, got %+v", r.Info())
	}
	if _, _, err := r.Predict(make([]float64, flow.NumFeatures)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewReloaderFailsWithoutArtifact(t *testing.T) {
	if _, err := NewReloader("classifier", filepath.Join(t.TempDir(), "none.json"), ReloaderOptions{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestReloaderWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.json")
	if err := WriteArtifact(path, treeArtifact("v1")); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan error, 4)
	r, err := NewReloader("classifier", path, ReloaderOptions{
		ExpectFeatures: flow.NumFeatures,
		Debounce:       10 * time.Millisecond,
		OnReload:       func(name string, err error) { reloaded <- err },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	// Give the watcher time to register before replacing the file.
	time.Sleep(100 * time.Millisecond)
	if err := WriteArtifact(path, treeArtifact("v2")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for r.Info().Version != "v2" {
		select {
		case err := <-reloaded:
			if err != nil {
				t.Fatalf("reload failed: %v", err)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for reload, version %q", r.Info().Version)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned error: %v", err)
	}
}
