package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"render-orchestrator/internal/platform/metrics"
)

// ErrNoComposition is returned when a frame is requested before a successful
// build, or for a timestamp outside every instruction's range.
var ErrNoComposition = errors.New("no composition for timestamp")

// PipelineConfig collects the collaborators and configuration of one
// Pipeline. Store and Source are required; Metrics may be nil to disable
// metric recording (e.g. in tests).
type PipelineConfig struct {
	Store     Store
	Source    FrameSource
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Format    PixelFormat
	Strategy  Strategy
	FrameRate int
	Workers   int
}

// Pipeline owns one render session: its session identifier, its current
// Composition, and its Project Store entry. The store itself is shared
// process-wide; the pipeline only ever touches its own key.
type Pipeline struct {
	session    SessionID
	store      Store
	source     FrameSource
	builder    *Builder
	compositor *Compositor
	sched      *Scheduler
	log        *slog.Logger
	metrics    *metrics.Metrics

	mu            sync.RWMutex
	comp          *Composition
	invalidations chan uint64
}

// NewPipeline mints a fresh session identifier and seeds the store with the
// default project state. The caller must Teardown the pipeline to release
// the store entry.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyFill
	}
	session := SessionID(uuid.NewString())

	p := &Pipeline{
		session:    session,
		store:      cfg.Store,
		source:     cfg.Source,
		builder:    NewBuilder(session, cfg.FrameRate, cfg.Strategy),
		compositor: NewCompositor(cfg.Store, cfg.Source, cfg.Format),
		sched:      NewScheduler(cfg.Workers),
		log:        cfg.Log,
		metrics:    cfg.Metrics,
	}
	p.store.Set(session, DefaultProjectState())
	// Buffered so consumers that poll late still observe the latest version.
	p.invalidations = make(chan uint64, 1)
	return p
}

// Session returns the pipeline's session identifier.
func (p *Pipeline) Session() SessionID { return p.session }

// Composition returns the current Composition, or nil before the first
// successful build.
func (p *Pipeline) Composition() *Composition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.comp
}

// Invalidations exposes composition version changes. A value is published on
// every swap (rebuild or aspect change); stale values are coalesced, so a
// receive always observes the newest version.
func (p *Pipeline) Invalidations() <-chan uint64 {
	return p.invalidations
}

// BuildOrRebuild stores the given project state and (re)builds the
// Composition from the source's tracks. Build failures propagate
// synchronously and leave the prior Composition in place.
func (p *Pipeline) BuildOrRebuild(state ProjectState) (*Composition, error) {
	p.store.Set(p.session, state)

	comp, err := p.builder.BuildFromSource(p.source, state)
	if err != nil {
		p.log.Error("composition build failed",
			slog.String("session", string(p.session)),
			slog.String("error", err.Error()))
		return nil, err
	}

	p.mu.Lock()
	if p.comp != nil {
		comp.Version = p.comp.Version + 1
	}
	p.comp = comp
	p.mu.Unlock()

	p.notifyInvalidation(comp.Version)
	if p.metrics != nil {
		p.metrics.IncBuilds()
	}
	p.log.Info("composition built",
		slog.String("session", string(p.session)),
		slog.Uint64("version", comp.Version),
		slog.Int("width", comp.Video.RenderWidth),
		slog.Int("height", comp.Video.RenderHeight),
		slog.Duration("duration", comp.Duration))
	return comp, nil
}

// UpdateProject replaces the session's project state. Updates are total
// replacements; in-flight frames observe either the prior or the new value.
// An aspect change additionally swaps in a resized Composition.
//
// The revision bump happens under the pipeline mutex so that concurrent
// updaters cannot mint the same revision.
func (p *Pipeline) UpdateProject(state ProjectState) error {
	p.mu.Lock()
	prev, had := p.store.Get(p.session)
	if had {
		state.Revision = prev.Revision + 1
	}
	p.store.Set(p.session, state)
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.IncProjectUpdates()
	}

	if had && prev.Aspect != state.Aspect {
		return p.SetAspect(state.Aspect)
	}
	if had && prev.Trimmed != state.Trimmed {
		// Trim changes timeline geometry, not just content; rebuild.
		_, err := p.BuildOrRebuild(state)
		return err
	}
	return nil
}

// SetAspect recomputes output dimensions for the new mode, swaps in a new
// Composition reusing the prior frame rate and instruction list, and
// publishes the new version so downstream consumers re-evaluate the current
// frame instead of serving geometry cached against the old object.
func (p *Pipeline) SetAspect(mode AspectMode) error {
	p.mu.Lock()
	if p.comp == nil {
		p.mu.Unlock()
		return fmt.Errorf("set aspect: %w", ErrNoComposition)
	}
	next := resizeComposition(p.comp, mode)
	p.comp = next
	p.mu.Unlock()

	p.notifyInvalidation(next.Version)
	p.log.Info("aspect changed",
		slog.String("session", string(p.session)),
		slog.String("mode", string(mode)),
		slog.Uint64("version", next.Version))
	return nil
}

// RenderFrame synchronously produces the output frame for the presentation
// timestamp ts. The current Project Store value is read at invocation time,
// not at instruction-authoring time.
func (p *Pipeline) RenderFrame(ctx context.Context, ts time.Duration) (*FrameBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	comp := p.comp
	p.mu.RUnlock()
	if comp == nil {
		return nil, ErrNoComposition
	}
	instr, ok := comp.InstructionAt(ts)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoComposition, ts)
	}

	frame, err := p.compositor.Render(instr, comp.Video, ts)
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncFrameFailures()
		}
		p.log.Debug("frame render failed",
			slog.String("session", string(p.session)),
			slog.Duration("ts", ts),
			slog.String("error", err.Error()))
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.IncFramesRendered()
	}
	return frame, nil
}

// RenderAsync dispatches a frame request to the render workers. deliver
// receives the typed result unless CancelPending intervenes first.
func (p *Pipeline) RenderAsync(ts time.Duration, deliver func(FrameResult)) {
	p.sched.Submit(func() FrameResult {
		frame, err := p.RenderFrame(context.Background(), ts)
		return FrameResult{Timestamp: ts, Frame: frame, Err: err}
	}, deliver)
}

// CancelPending blocks until all dispatched frame requests have drained.
// No pre-barrier request delivers a result after it returns.
func (p *Pipeline) CancelPending() {
	p.sched.CancelPending()
}

// Teardown drains pending work and removes the session's store entry.
// Idempotent.
func (p *Pipeline) Teardown() {
	p.CancelPending()
	p.store.Remove(p.session)
	p.log.Info("pipeline torn down", slog.String("session", string(p.session)))
}

// notifyInvalidation publishes version, replacing any unconsumed older one.
func (p *Pipeline) notifyInvalidation(version uint64) {
	for {
		select {
		case p.invalidations <- version:
			return
		default:
			select {
			case <-p.invalidations:
			default:
			}
		}
	}
}
