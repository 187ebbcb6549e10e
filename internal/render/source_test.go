package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestSequence(t *testing.T, dir string, frames int, c color.RGBA) {
	t.Helper()
	for i := 0; i < frames; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 6))
		for y := 0; y < 6; y++ {
			for x := 0; x < 8; x++ {
				img.Set(x, y, c)
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
}

func TestSolidSource_FrameAt(t *testing.T) {
	tracks := []TrackDescriptor{videoTrack("v0", 2*time.Second)}
	src := NewSolidSource(tracks, map[TrackID]Color{"v0": {R: 1, A: 1}})

	buf, ok := src.FrameAt("v0", time.Second)
	if !ok {
		t.Fatal("expected frame within duration")
	}
	if buf.Width != 1280 || buf.Height != 720 {
		t.Errorf("frame size = %dx%d", buf.Width, buf.Height)
	}
	if got := buf.At(0, 0); got != [4]byte{255, 0, 0, 255} {
		t.Errorf("pixel = %v", got)
	}

	if _, ok := src.FrameAt("v0", 3*time.Second); ok {
		t.Error("expected absence beyond duration")
	}
	if _, ok := src.FrameAt("missing", 0); ok {
		t.Error("expected absence for unknown track")
	}
}

func TestSolidSource_buffers_not_shared(t *testing.T) {
	tracks := []TrackDescriptor{videoTrack("v0", time.Second)}
	src := NewSolidSource(tracks, nil)

	a, _ := src.FrameAt("v0", 0)
	b, _ := src.FrameAt("v0", 0)
	if &a.Data[0] == &b.Data[0] {
		t.Error("each request must own its buffer")
	}
}

func TestImageSequenceSource(t *testing.T) {
	dir := t.TempDir()
	writeTestSequence(t, dir, 6, color.RGBA{0, 0, 255, 255})

	src := NewImageSequenceSource(dir, 3)
	tracks, err := src.Tracks()
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected one track, got %d", len(tracks))
	}
	tr := tracks[0]
	if tr.Kind != MediaVideo || tr.NaturalWidth != 8 || tr.NaturalHeight != 6 {
		t.Errorf("track = %+v", tr)
	}
	if tr.Duration != 2*time.Second {
		t.Errorf("duration = %v, want 2s (6 frames at 3 fps)", tr.Duration)
	}

	buf, ok := src.FrameAt("video-0", 500*time.Millisecond)
	if !ok {
		t.Fatal("expected frame at 500ms")
	}
	if got := buf.At(4, 3); got != [4]byte{0, 0, 255, 255} {
		t.Errorf("pixel = %v, want blue", got)
	}

	if _, ok := src.FrameAt("video-0", 10*time.Second); ok {
		t.Error("expected absence past the sequence end")
	}
}

func TestImageSequenceSource_empty_dir(t *testing.T) {
	src := NewImageSequenceSource(t.TempDir(), 30)
	if _, err := src.Tracks(); err == nil {
		t.Error("expected error for sequence with no frames")
	}
}
