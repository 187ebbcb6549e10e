package render

import (
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/draw"
)

// ErrMissingSourceFrame is returned when a required source track has no
// decoded frame at the requested timestamp. Fatal to that frame only.
var ErrMissingSourceFrame = errors.New("missing source frame")

// Compositor is the per-frame entry point. For a requested timestamp and a
// render instruction it retrieves the required source frames, resolves the
// current Project State for the instruction's session, and produces one
// output frame.
//
// Render is a pure function of (instruction, timestamp, store snapshot); it
// mutates no shared state, so distinct frame requests can run concurrently.
type Compositor struct {
	store  Store
	source FrameSource
	format PixelFormat
}

// NewCompositor returns a Compositor producing frames in the given output
// pixel format.
func NewCompositor(store Store, source FrameSource, format PixelFormat) *Compositor {
	if format == "" {
		format = FormatBGRA
	}
	return &Compositor{store: store, source: source, format: format}
}

// Format returns the output pixel format of rendered frames.
func (c *Compositor) Format() PixelFormat { return c.format }

// Render produces the output frame for ts under the given instruction and
// video descriptor.
//
// The frame request progresses source resolution, then state resolution, then
// rendering; a failure at any stage completes only this request. Store
// absence is not a failure: the default project state applies.
func (c *Compositor) Render(instr Instruction, desc VideoDescriptor, ts time.Duration) (*FrameBuffer, error) {
	sources := make([]*FrameBuffer, 0, len(instr.TrackIDs))
	for _, id := range instr.TrackIDs {
		// Presentation time maps to source time through the instruction's
		// source start, so trimmed compositions sample past the lead-in.
		buf, ok := c.source.FrameAt(id, instr.SourceStart+ts)
		if !ok {
			return nil, fmt.Errorf("%w: track %q at %v", ErrMissingSourceFrame, id, ts)
		}
		sources = append(sources, buf)
	}

	// The store snapshot is taken atomically here; a concurrent update is
	// observed either entirely or not at all.
	state, ok := c.store.Get(instr.Session)
	if !ok {
		state = DefaultProjectState()
	}

	out, err := NewFrameBuffer(desc.RenderWidth, desc.RenderHeight, c.format)
	if err != nil {
		return nil, err
	}

	switch desc.Strategy {
	case StrategyPassThrough:
		c.renderPassThrough(out, sources)
	case StrategyOverlay:
		c.renderOverlay(out, state)
	default:
		out.Fill(state.Fill)
	}
	return out, nil
}

// renderOverlay composites the project overlay, fit-scaled and centered, over
// the solid fill. An absent or degenerate overlay falls back to plain fill.
func (c *Compositor) renderOverlay(out *FrameBuffer, state ProjectState) {
	out.Fill(state.Fill)

	ov := state.Overlay
	if ov == nil || ov.Width <= 0 || ov.Height <= 0 {
		return
	}

	sw, sh, ox, oy := fitRect(out.Width, out.Height, ov.Width, ov.Height)
	if sw <= 0 || sh <= 0 {
		return
	}

	scaled := image.NewRGBA(image.Rect(0, 0, sw, sh))
	src := ov.RGBA()
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
	// Source-over, not replacement: transparent overlay pixels show the
	// fill through.
	out.blendRGBA(scaled, ox, oy)
}

// renderPassThrough resamples the single required source frame into the
// output at the output's size and format, with no other transform.
func (c *Compositor) renderPassThrough(out *FrameBuffer, sources []*FrameBuffer) {
	if len(sources) == 0 {
		out.Fill(Color{})
		return
	}
	src := sources[0].RGBA()
	if src.Bounds().Dx() == out.Width && src.Bounds().Dy() == out.Height {
		out.blitRGBA(src, 0, 0)
		return
	}
	scaled := image.NewRGBA(image.Rect(0, 0, out.Width, out.Height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
	out.blitRGBA(scaled, 0, 0)
}
