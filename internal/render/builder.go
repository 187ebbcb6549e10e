package render

import (
	"errors"
	"fmt"
	"time"
)

// TrimLeadIn is the fixed duration excluded from the start of the source when
// trim mode is enabled.
const TrimLeadIn = time.Second

// DefaultFrameRate is used when the builder is constructed with a
// non-positive frame rate.
const DefaultFrameRate = 30

var (
	// ErrNoVideoTrack is returned when the sources contain no video track;
	// no instruction can be produced without one.
	ErrNoVideoTrack = errors.New("no video track in sources")

	// ErrEmptyTimeRange is returned when the computed time range has
	// zero or negative duration (including the trim clamp case).
	ErrEmptyTimeRange = errors.New("empty time range")
)

// Builder constructs Compositions from source track descriptors and a
// Project State. Only geometry decisions (render size, trim range) are baked
// at build time; content decisions (fill color, overlay) are re-resolved per
// frame from the Store so edits take effect without rebuilding.
type Builder struct {
	session   SessionID
	frameRate int
	strategy  Strategy
}

// NewBuilder returns a Builder that tags instructions with session.
// frameRate <= 0 falls back to DefaultFrameRate.
func NewBuilder(session SessionID, frameRate int, strategy Strategy) *Builder {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Builder{session: session, frameRate: frameRate, strategy: strategy}
}

// Build constructs a Composition from the given source tracks bound to the
// given Project State. On failure no partial Composition is returned.
func (b *Builder) Build(tracks []TrackDescriptor, state ProjectState) (*Composition, error) {
	video, audio, err := splitTracks(tracks)
	if err != nil {
		return nil, err
	}
	if len(video) == 0 {
		return nil, ErrNoVideoTrack
	}

	// The first video track defines the timeline extent.
	selected, err := selectRange(video[0].Duration, state.Trimmed)
	if err != nil {
		return nil, err
	}

	placed := make([]PlacedTrack, 0, len(video)+len(audio))
	trackIDs := make([]TrackID, 0, len(video))
	for _, t := range video {
		placed = append(placed, PlacedTrack{Track: t, At: 0, Range: selected})
		trackIDs = append(trackIDs, t.ID)
	}
	// Audio carries through unmodified, time-aligned to the video range.
	for _, t := range audio {
		placed = append(placed, PlacedTrack{Track: t, At: 0, Range: selected})
	}

	width, height := state.Aspect.RenderSize()
	instr := Instruction{
		Range:       TimeRange{Start: 0, Duration: selected.Duration},
		Session:     b.session,
		TrackIDs:    trackIDs,
		SourceStart: selected.Start,
	}

	return &Composition{
		Tracks: placed,
		Video: VideoDescriptor{
			FrameRate:    b.frameRate,
			RenderWidth:  width,
			RenderHeight: height,
			Instructions: []Instruction{instr},
			Strategy:     b.strategy,
		},
		Duration: selected.Duration,
	}, nil
}

// BuildFromSource enumerates tracks from the decode collaborator and builds.
// Track-enumeration I/O failures surface as a build error rather than a
// panic.
func (b *Builder) BuildFromSource(src FrameSource, state ProjectState) (*Composition, error) {
	tracks, err := src.Tracks()
	if err != nil {
		return nil, fmt.Errorf("load source tracks: %w", err)
	}
	return b.Build(tracks, state)
}

// selectRange applies the trim policy to the source duration. When trimming,
// the selection excludes TrimLeadIn from the start; if that would produce a
// non-positive duration the range clamps to empty and the build fails.
func selectRange(sourceDuration time.Duration, trimmed bool) (TimeRange, error) {
	if sourceDuration <= 0 {
		return TimeRange{}, fmt.Errorf("%w: source duration %v", ErrEmptyTimeRange, sourceDuration)
	}
	if !trimmed {
		return TimeRange{Start: 0, Duration: sourceDuration}, nil
	}
	remaining := sourceDuration - TrimLeadIn
	if remaining <= 0 {
		return TimeRange{}, fmt.Errorf("%w: trim lead-in %v >= source duration %v", ErrEmptyTimeRange, TrimLeadIn, sourceDuration)
	}
	return TimeRange{Start: TrimLeadIn, Duration: remaining}, nil
}

// splitTracks partitions descriptors by kind and rejects zero-or-negative
// insertion durations.
func splitTracks(tracks []TrackDescriptor) (video, audio []TrackDescriptor, err error) {
	for _, t := range tracks {
		if t.Duration <= 0 {
			return nil, nil, fmt.Errorf("%w: track %q duration %v", ErrEmptyTimeRange, t.ID, t.Duration)
		}
		switch t.Kind {
		case MediaVideo:
			video = append(video, t)
		case MediaAudio:
			audio = append(audio, t)
		default:
			return nil, nil, fmt.Errorf("track %q: unknown media kind %q", t.ID, t.Kind)
		}
	}
	return video, audio, nil
}
