package acquisition

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pendantdrop/internal/models"
)

func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return path
}

// TestLoadImagePathsSortsAndSkipsDirs verifies lexicographic ordering and
// directory filtering
func TestLoadImagePathsSortsAndSkipsDirs(t *testing.T) {
	dir := t.TempDir()
	b := writeTestImage(t, dir, "b_frame.png")
	a := writeTestImage(t, dir, "a_frame.png")
	sub := filepath.Join(dir, "subdir")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	ls := NewLocalStorage(0.5)
	if err := ls.LoadImagePaths([]string{b, sub, a}); err != nil {
		t.Fatalf("LoadImagePaths failed: %v", err)
	}

	paths := ls.LoadedPaths()
	if len(paths) != 2 {
		t.Fatalf("Expected 2 loaded paths, got %d", len(paths))
	}
	if paths[0] != a || paths[1] != b {
		t.Errorf("Expected lexicographic order [%s %s], got %v", a, b, paths)
	}
}

// TestLoadImagePathsBadImage verifies an undecodable file fails the load
func TestLoadImagePathsBadImage(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "not_an_image.png")
	if err := os.WriteFile(bad, []byte("plainly not a png"), 0644); err != nil {
		t.Fatalf("Failed to write bad file: %v", err)
	}

	ls := NewLocalStorage(1)
	if err := ls.LoadImagePaths([]string{bad}); err == nil {
		t.Error("Expected an error loading an undecodable image")
	}
}

// TestScheduledImagesTimestamps verifies frame-interval timestamping and
// immediate resolution
func TestScheduledImagesTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "frame_000.png")
	writeTestImage(t, dir, "frame_001.png")
	writeTestImage(t, dir, "frame_002.png")

	paths := []string{
		filepath.Join(dir, "frame_000.png"),
		filepath.Join(dir, "frame_001.png"),
		filepath.Join(dir, "frame_002.png"),
	}

	ls := NewLocalStorage(2.5)
	if err := ls.LoadImagePaths(paths); err != nil {
		t.Fatalf("LoadImagePaths failed: %v", err)
	}

	scheduled := ls.ScheduledImages()
	if len(scheduled) != 3 {
		t.Fatalf("Expected 3 scheduled images, got %d", len(scheduled))
	}

	for i, s := range scheduled {
		frame, err := s.Read(context.Background())
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		want := float64(i) * 2.5
		if frame.Timestamp != want {
			t.Errorf("Frame %d timestamp = %f, expected %f", i, frame.Timestamp, want)
		}
		if frame.Image == nil {
			t.Errorf("Frame %d carries no image", i)
		}
	}
}

// TestFrameFutureResolve verifies Read suspends until resolution
func TestFrameFutureResolve(t *testing.T) {
	fut := NewFrameFuture()

	got := make(chan models.Frame, 1)
	go func() {
		f, err := fut.Read(context.Background())
		if err != nil {
			t.Errorf("Read failed: %v", err)
		}
		got <- f
	}()

	frame := models.Frame{Image: image.NewGray(image.Rect(0, 0, 2, 2)), Timestamp: 7}
	fut.Resolve(frame)

	select {
	case f := <-got:
		if f.Timestamp != 7 {
			t.Errorf("Expected timestamp 7, got %f", f.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not resolve")
	}

	// Later resolutions are ignored.
	fut.Resolve(models.Frame{Timestamp: 99})
	f, err := fut.Read(context.Background())
	if err != nil {
		t.Fatalf("Second Read failed: %v", err)
	}
	if f.Timestamp != 7 {
		t.Errorf("Expected first resolution to win, got timestamp %f", f.Timestamp)
	}
}

// TestFrameFutureFail verifies error propagation
func TestFrameFutureFail(t *testing.T) {
	fut := NewFrameFuture()
	wantErr := errors.New("camera unplugged")
	fut.Fail(wantErr)

	_, err := fut.Read(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected %v, got %v", wantErr, err)
	}
}

// TestFrameFutureContextCancelled verifies Read honours the context
func TestFrameFutureContextCancelled(t *testing.T) {
	fut := NewFrameFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fut.Read(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
