package render

import "time"

// SessionID is an opaque token that scopes one pipeline's Project State entry
// in the shared store. It is minted once per pipeline and removed on teardown.
type SessionID string

// TrackID identifies a source track within a FrameSource (e.g. "video-0").
type TrackID string

// MediaKind distinguishes video from audio source tracks.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// AspectMode selects one of exactly two fixed output sizes.
type AspectMode string

const (
	AspectWide AspectMode = "wide" // 1920x1080
	AspectTall AspectMode = "tall" // 1080x1920
)

// RenderSize returns the fixed output pixel size for the mode.
// Unknown modes fall back to wide.
func (m AspectMode) RenderSize() (width, height int) {
	if m == AspectTall {
		return 1080, 1920
	}
	return 1920, 1080
}

// Color is a 4-channel color with normalized [0,1] components.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// ProjectState is the immutable-per-version value describing render
// parameters. The store holds the latest write for a session; updates are
// total replacements, never partial patches.
type ProjectState struct {
	Fill    Color
	Aspect  AspectMode
	Trimmed bool

	// Overlay is an optional immutable image composited over the fill by
	// StrategyOverlay. Callers must not mutate the buffer after setting it.
	Overlay *FrameBuffer

	// Revision is an identity field bumped on each update. It is excluded
	// from Equal so that state changes are detected by content, not by
	// allocation.
	Revision int64
}

// Equal reports structural equality over the rendering-relevant fields.
// Revision is deliberately ignored; the overlay is compared by reference.
func (s ProjectState) Equal(o ProjectState) bool {
	return s.Fill == o.Fill &&
		s.Aspect == o.Aspect &&
		s.Trimmed == o.Trimmed &&
		s.Overlay == o.Overlay
}

// DefaultProjectState is the documented fallback used when no Project State
// has been set (or it was removed) for a session: transparent black fill,
// wide aspect, untrimmed, no overlay.
func DefaultProjectState() ProjectState {
	return ProjectState{Aspect: AspectWide}
}

// TrackDescriptor describes one source track as enumerated by the decode
// collaborator: media kind, natural size, duration, preferred transform.
type TrackDescriptor struct {
	ID            TrackID       `json:"id"`
	Kind          MediaKind     `json:"kind"`
	NaturalWidth  int           `json:"natural_width"`
	NaturalHeight int           `json:"natural_height"`
	Duration      time.Duration `json:"duration"`

	// Rotation is the preferred transform carried from the source container,
	// in degrees clockwise. Carried through placement unmodified.
	Rotation int `json:"rotation"`
}

// TimeRange is a half-open time interval [Start, Start+Duration).
type TimeRange struct {
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// End returns the exclusive end of the range.
func (r TimeRange) End() time.Duration { return r.Start + r.Duration }

// Contains reports whether ts falls inside the range.
func (r TimeRange) Contains(ts time.Duration) bool {
	return ts >= r.Start && ts < r.End()
}

// Instruction is an immutable time-ranged descriptor of what source tracks
// feed one composited output. It carries the owning session identifier so the
// compositor can resolve the live Project State at render time.
type Instruction struct {
	Range    TimeRange
	Session  SessionID
	TrackIDs []TrackID

	// SourceStart is the source-time position of the range's start: a
	// presentation timestamp ts samples source time SourceStart+ts. For a
	// trimmed composition this is the trim lead-in, so the excluded head of
	// the source is never rendered.
	SourceStart time.Duration
}

// PlacedTrack is a source track inserted into the composition timeline with
// absolute time placement.
type PlacedTrack struct {
	Track TrackDescriptor
	At    time.Duration
	Range TimeRange
}

// Strategy selects the per-frame rendering behavior. It is a configuration
// choice made when the pipeline is constructed, not a per-frame decision.
type Strategy string

const (
	// StrategyFill writes the project fill color into every output pixel.
	StrategyFill Strategy = "fill"
	// StrategyOverlay composites the project overlay, fit-scaled and
	// centered, over the fill. Falls back to StrategyFill when no overlay
	// is set.
	StrategyOverlay Strategy = "overlay"
	// StrategyPassThrough copies the single required source frame into the
	// output with format conversion only.
	StrategyPassThrough Strategy = "passthrough"
)

// VideoDescriptor is the video render configuration of a Composition: frame
// rate, output geometry, the instruction list, and the strategy binding.
type VideoDescriptor struct {
	FrameRate    int
	RenderWidth  int
	RenderHeight int
	Instructions []Instruction
	Strategy     Strategy
}

// Composition is an ordered list of placed source tracks paired with exactly
// one video render descriptor. A Composition is never mutated in place;
// rebuilding aspect or trim produces a new one and the old is discarded, so
// readers never observe inconsistent intermediate geometry.
type Composition struct {
	Tracks   []PlacedTrack
	Video    VideoDescriptor
	Duration time.Duration

	// Version increases monotonically across rebuilds of the same pipeline
	// so downstream consumers can invalidate caches deterministically.
	Version uint64
}

// InstructionAt returns the instruction covering ts, if any.
func (c *Composition) InstructionAt(ts time.Duration) (Instruction, bool) {
	for _, instr := range c.Video.Instructions {
		if instr.Range.Contains(ts) {
			return instr, true
		}
	}
	return Instruction{}, false
}
