package render

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestPNGSequenceExporter_Export(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPipeline(PipelineConfig{
		Store:     store,
		Source:    NewSolidSource([]TrackDescriptor{videoTrack("v0", time.Second)}, nil),
		Log:       quietLogger(),
		Strategy:  StrategyFill,
		FrameRate: 10,
		Workers:   2,
	})
	defer p.Teardown()

	state := DefaultProjectState()
	state.Fill = Color{B: 1, A: 1}
	if _, err := p.BuildOrRebuild(state); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	exp := &PNGSequenceExporter{Dir: dir, Parallelism: 2}
	if err := exp.Export(context.Background(), p, ExportPreset{FrameRate: 10}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	// 1 second at 10 fps.
	if len(entries) != 10 {
		t.Errorf("exported %d frames, want 10", len(entries))
	}
}

func TestPNGSequenceExporter_requires_composition(t *testing.T) {
	p := NewPipeline(PipelineConfig{
		Store:  NewInMemoryStore(),
		Source: NewSolidSource([]TrackDescriptor{videoTrack("v0", time.Second)}, nil),
		Log:    quietLogger(),
	})
	defer p.Teardown()

	exp := &PNGSequenceExporter{Dir: t.TempDir()}
	err := exp.Export(context.Background(), p, ExportPreset{})

	var exportErr *ExportError
	if !errors.As(err, &exportErr) {
		t.Fatalf("err = %v, want *ExportError", err)
	}
	if !errors.Is(err, ErrNoComposition) {
		t.Errorf("err = %v, want wrapped ErrNoComposition", err)
	}
}
