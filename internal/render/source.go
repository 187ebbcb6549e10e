package render

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FrameSource is the decode/demux collaborator boundary: track enumeration
// plus "get decoded source pixel buffer for track X at timestamp T".
// Implementations must be safe for concurrent FrameAt calls; returned buffers
// become owned by the caller and must not be retained by the source.
type FrameSource interface {
	// Tracks enumerates the source tracks. I/O failures are returned as an
	// error and surface as a build error in the Builder.
	Tracks() ([]TrackDescriptor, error)

	// FrameAt returns the decoded frame for the track at ts, or ok=false
	// when no frame is available at that timestamp.
	FrameAt(id TrackID, ts time.Duration) (*FrameBuffer, bool)
}

// SolidSource is a FrameSource whose video tracks decode to frames of a
// single constant color. Used by tests and the demo server in place of a real
// container decoder.
type SolidSource struct {
	tracks []TrackDescriptor
	colors map[TrackID]Color
}

// NewSolidSource returns a source exposing the given tracks. Each video track
// decodes to frames of its configured color (missing entries decode to
// opaque black).
func NewSolidSource(tracks []TrackDescriptor, colors map[TrackID]Color) *SolidSource {
	if colors == nil {
		colors = make(map[TrackID]Color)
	}
	return &SolidSource{tracks: tracks, colors: colors}
}

// Tracks implements FrameSource.Tracks.
func (s *SolidSource) Tracks() ([]TrackDescriptor, error) {
	out := make([]TrackDescriptor, len(s.tracks))
	copy(out, s.tracks)
	return out, nil
}

// FrameAt implements FrameSource.FrameAt. Every request gets a fresh buffer;
// source buffers are never shared between concurrent renders.
func (s *SolidSource) FrameAt(id TrackID, ts time.Duration) (*FrameBuffer, bool) {
	for _, t := range s.tracks {
		if t.ID != id || t.Kind != MediaVideo {
			continue
		}
		if ts < 0 || ts >= t.Duration {
			return nil, false
		}
		w, h := t.NaturalWidth, t.NaturalHeight
		if w <= 0 || h <= 0 {
			return nil, false
		}
		buf, err := NewFrameBuffer(w, h, FormatRGBA)
		if err != nil {
			return nil, false
		}
		c, ok := s.colors[id]
		if !ok {
			c = Color{A: 1}
		}
		buf.Fill(c)
		return buf, true
	}
	return nil, false
}

// ImageSequenceSource decodes a directory of numbered PNG frames as a single
// video track at a fixed frame rate. Frames are decoded lazily and cached.
type ImageSequenceSource struct {
	dir       string
	frameRate int

	mu     sync.Mutex
	files  []string
	frames map[int]*image.RGBA
	size   image.Point
}

// NewImageSequenceSource scans dir for .png files, sorted by name. The scan
// itself is deferred to Tracks so directory I/O failures surface as build
// errors.
func NewImageSequenceSource(dir string, frameRate int) *ImageSequenceSource {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &ImageSequenceSource{
		dir:       dir,
		frameRate: frameRate,
		frames:    make(map[int]*image.RGBA),
	}
}

// Tracks implements FrameSource.Tracks. The sequence exposes one video track
// whose duration is len(frames)/frameRate and whose natural size is taken
// from the first frame.
func (s *ImageSequenceSource) Tracks() ([]TrackDescriptor, error) {
	if err := s.scan(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.files) == 0 {
		return nil, fmt.Errorf("image sequence %s: no png frames", s.dir)
	}
	return []TrackDescriptor{{
		ID:            "video-0",
		Kind:          MediaVideo,
		NaturalWidth:  s.size.X,
		NaturalHeight: s.size.Y,
		Duration:      time.Duration(len(s.files)) * time.Second / time.Duration(s.frameRate),
	}}, nil
}

// FrameAt implements FrameSource.FrameAt.
func (s *ImageSequenceSource) FrameAt(id TrackID, ts time.Duration) (*FrameBuffer, bool) {
	if id != "video-0" || ts < 0 {
		return nil, false
	}
	if err := s.scan(); err != nil {
		return nil, false
	}
	idx := int(ts * time.Duration(s.frameRate) / time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= len(s.files) {
		return nil, false
	}
	img, ok := s.frames[idx]
	if !ok {
		var err error
		img, err = decodePNG(s.files[idx])
		if err != nil {
			return nil, false
		}
		s.frames[idx] = img
	}

	b := img.Bounds()
	buf, err := NewFrameBuffer(b.Dx(), b.Dy(), FormatRGBA)
	if err != nil {
		return nil, false
	}
	// Copy out so callers own their buffer exclusively.
	for y := 0; y < b.Dy(); y++ {
		copy(buf.Data[y*buf.Stride:(y+1)*buf.Stride], img.Pix[y*img.Stride:y*img.Stride+b.Dx()*bytesPerPixel])
	}
	return buf, true
}

func (s *ImageSequenceSource) scan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files != nil {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan image sequence: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(files)
	if len(files) > 0 {
		first, err := decodePNG(files[0])
		if err != nil {
			return fmt.Errorf("scan image sequence: %w", err)
		}
		s.size = first.Bounds().Size()
		s.frames[0] = first
	}
	s.files = files
	return nil
}

func decodePNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return rgba, nil
}
