package render

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// ExportPreset is plain configuration for an export: output geometry, frame
// rate, and quality tier. Preset enumeration lives with the UI collaborator.
type ExportPreset struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate int    `json:"frame_rate"`
	Quality   string `json:"quality"`
}

// ExportError is the typed failure returned by exporters.
type ExportError struct {
	Stage string
	Err   error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Stage, e.Err) }
func (e *ExportError) Unwrap() error { return e.Err }

// Exporter is the encode/export collaborator boundary: write the pipeline's
// current Composition to disk at a given preset. The encode pipeline's
// internals are out of scope; this repo ships a PNG frame-sequence
// implementation used for testing and debugging.
type Exporter interface {
	Export(ctx context.Context, p *Pipeline, preset ExportPreset) error
}

// PNGSequenceExporter renders every presentation timestamp of the current
// Composition and writes one PNG per frame into Dir, named frame_%06d.png.
type PNGSequenceExporter struct {
	Dir string

	// Parallelism bounds concurrent frame renders; <= 0 means 4.
	Parallelism int
}

// Export implements Exporter.
func (e *PNGSequenceExporter) Export(ctx context.Context, p *Pipeline, preset ExportPreset) error {
	comp := p.Composition()
	if comp == nil {
		return &ExportError{Stage: "build", Err: ErrNoComposition}
	}
	fps := preset.FrameRate
	if fps <= 0 {
		fps = comp.Video.FrameRate
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return &ExportError{Stage: "prepare", Err: err}
	}

	step := time.Second / time.Duration(fps)
	total := int(comp.Duration / step)

	g, ctx := errgroup.WithContext(ctx)
	limit := e.Parallelism
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i := 0; i < total; i++ {
		g.Go(func() error {
			ts := time.Duration(i) * step
			frame, err := p.RenderFrame(ctx, ts)
			if err != nil {
				return &ExportError{Stage: "render", Err: err}
			}
			path := filepath.Join(e.Dir, fmt.Sprintf("frame_%06d.png", i))
			if err := writePNG(path, frame); err != nil {
				return &ExportError{Stage: "encode", Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

func writePNG(path string, frame *FrameBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame.RGBA()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
