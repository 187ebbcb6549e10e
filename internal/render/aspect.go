package render

// resizeComposition builds the replacement Composition for a new aspect mode:
// same placed tracks, frame rate, instructions, and strategy, new fixed
// output dimensions, next version. The prior Composition is discarded by the
// caller, never mutated, so concurrent readers keep a consistent view.
func resizeComposition(old *Composition, mode AspectMode) *Composition {
	width, height := mode.RenderSize()

	next := &Composition{
		Tracks:   old.Tracks,
		Duration: old.Duration,
		Version:  old.Version + 1,
		Video: VideoDescriptor{
			FrameRate:    old.Video.FrameRate,
			RenderWidth:  width,
			RenderHeight: height,
			Instructions: old.Video.Instructions,
			Strategy:     old.Video.Strategy,
		},
	}
	return next
}
