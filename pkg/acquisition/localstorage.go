// Package acquisition supplies scheduled images to the analysis layer.
// The local-storage acquirer loads a sequence of image files from disk and
// exposes each as a ScheduledImage whose read resolves immediately;
// FrameFuture covers callers that schedule capture externally.
package acquisition

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"pendantdrop/internal/models"
	"pendantdrop/pkg/analysis"
)

// LocalStorage loads drop images from the local filesystem. Paths are
// sorted lexicographically so a numbered capture sequence keeps its order;
// directories are ignored.
type LocalStorage struct {
	// FrameInterval is the synthetic capture spacing, in seconds, used to
	// assign timestamps to the loaded sequence.
	FrameInterval float64

	frames []models.Frame
	paths  []string
}

// NewLocalStorage creates an empty acquirer with the given synthetic
// frame interval in seconds.
func NewLocalStorage(frameInterval float64) *LocalStorage {
	if frameInterval <= 0 {
		frameInterval = 1
	}
	return &LocalStorage{FrameInterval: frameInterval}
}

// LoadImagePaths decodes the images at the given paths, replacing any
// previously loaded sequence. A path that cannot be decoded fails the
// whole load.
func (l *LocalStorage) LoadImagePaths(paths []string) error {
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("stat image path: %w", err)
		}
		if info.IsDir() {
			continue
		}
		kept = append(kept, p)
	}
	sort.Strings(kept)

	frames := make([]models.Frame, 0, len(kept))
	for i, p := range kept {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open image %q: %w", p, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("decode image %q: %w", p, err)
		}
		frames = append(frames, models.Frame{
			Image:     img,
			Timestamp: float64(i) * l.FrameInterval,
		})
	}

	l.frames = frames
	l.paths = kept
	return nil
}

// LoadedPaths returns the paths of the last successful load, in the order
// their frames are scheduled.
func (l *LocalStorage) LoadedPaths() []string {
	return append([]string(nil), l.paths...)
}

// ScheduledImages returns one immediately resolved ScheduledImage per
// loaded frame.
func (l *LocalStorage) ScheduledImages() []analysis.ScheduledImage {
	out := make([]analysis.ScheduledImage, len(l.frames))
	for i, f := range l.frames {
		out[i] = loadedFrame{frame: f}
	}
	return out
}

// loadedFrame is a ScheduledImage whose capture already happened.
type loadedFrame struct {
	frame models.Frame
}

func (s loadedFrame) Read(ctx context.Context) (models.Frame, error) {
	select {
	case <-ctx.Done():
		return models.Frame{}, ctx.Err()
	default:
		return s.frame, nil
	}
}

// FrameFuture is a ScheduledImage resolved manually by the capture side.
// Read suspends until Resolve or Fail is called; both are single-use.
type FrameFuture struct {
	once  sync.Once
	done  chan struct{}
	frame models.Frame
	err   error
}

// NewFrameFuture creates an unresolved frame future.
func NewFrameFuture() *FrameFuture {
	return &FrameFuture{done: make(chan struct{})}
}

// Resolve completes the future with a captured frame. Later calls to
// Resolve or Fail are ignored.
func (f *FrameFuture) Resolve(frame models.Frame) {
	f.once.Do(func() {
		f.frame = frame
		close(f.done)
	})
}

// Fail completes the future with an error.
func (f *FrameFuture) Fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Read suspends until the future resolves or the context ends.
func (f *FrameFuture) Read(ctx context.Context) (models.Frame, error) {
	select {
	case <-f.done:
		return f.frame, f.err
	case <-ctx.Done():
		return models.Frame{}, ctx.Err()
	}
}
