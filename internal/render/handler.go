package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"render-orchestrator/internal/platform/metrics"
)

// Handler exposes the render pipeline control surface over HTTP using go-chi.
type Handler struct {
	mgr     *Manager
	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
	workers int
}

// NewHandler returns a Handler that creates pipelines against the given
// shared store. Metrics may be nil to disable metric recording (e.g. in
// tests). workers bounds each pipeline's render concurrency.
func NewHandler(mgr *Manager, store Store, log *slog.Logger, m *metrics.Metrics, workers int) *Handler {
	return &Handler{mgr: mgr, store: store, log: log, metrics: m, workers: workers}
}

// Routes mounts all pipeline endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/pipelines", h.CreatePipeline)
	r.Route("/pipelines/{pipeline_id}", func(r chi.Router) {
		r.Get("/", h.GetComposition)
		r.Put("/project", h.UpdateProject)
		r.Post("/aspect", h.SetAspect)
		r.Get("/frames/{ts_ms}", h.RenderFrame)
		r.Post("/cancel", h.CancelPending)
		r.Delete("/", h.Teardown)
	})
}

type trackRequest struct {
	ID            TrackID   `json:"id"`
	Kind          MediaKind `json:"kind"`
	NaturalWidth  int       `json:"natural_width"`
	NaturalHeight int       `json:"natural_height"`
	DurationMS    int64     `json:"duration_ms"`
	Color         *Color    `json:"color,omitempty"`
}

type projectRequest struct {
	Fill    Color      `json:"fill"`
	Aspect  AspectMode `json:"aspect"`
	Trimmed bool       `json:"trimmed"`

	// OverlayPNG is an optional base64-encoded PNG composited by the
	// overlay strategy.
	OverlayPNG string `json:"overlay_png,omitempty"`
}

type createPipelineRequest struct {
	Tracks    []trackRequest  `json:"tracks"`
	Project   *projectRequest `json:"project,omitempty"`
	Strategy  Strategy        `json:"strategy,omitempty"`
	Format    PixelFormat     `json:"format,omitempty"`
	FrameRate int             `json:"frame_rate,omitempty"`
}

type compositionResponse struct {
	Session      SessionID     `json:"session"`
	Version      uint64        `json:"version"`
	RenderWidth  int           `json:"render_width"`
	RenderHeight int           `json:"render_height"`
	FrameRate    int           `json:"frame_rate"`
	Strategy     Strategy      `json:"strategy"`
	DurationMS   int64         `json:"duration_ms"`
	Instructions []Instruction `json:"instructions"`
}

// CreatePipeline handles POST /pipelines. The request describes the source
// tracks (decoded by the in-process solid source in place of a real
// container decoder) and the initial project state.
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req createPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid create body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	tracks := make([]TrackDescriptor, 0, len(req.Tracks))
	colors := make(map[TrackID]Color)
	for _, t := range req.Tracks {
		tracks = append(tracks, TrackDescriptor{
			ID:            t.ID,
			Kind:          t.Kind,
			NaturalWidth:  t.NaturalWidth,
			NaturalHeight: t.NaturalHeight,
			Duration:      time.Duration(t.DurationMS) * time.Millisecond,
		})
		if t.Color != nil {
			colors[t.ID] = *t.Color
		}
	}

	state := DefaultProjectState()
	if req.Project != nil {
		var err error
		state, err = projectStateFromRequest(*req.Project)
		if err != nil {
			h.log.Debug("invalid project state", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	p := NewPipeline(PipelineConfig{
		Store:     h.store,
		Source:    NewSolidSource(tracks, colors),
		Log:       h.log,
		Metrics:   h.metrics,
		Format:    req.Format,
		Strategy:  req.Strategy,
		FrameRate: req.FrameRate,
		Workers:   h.workers,
	})
	comp, err := p.BuildOrRebuild(state)
	if err != nil {
		p.Teardown()
		h.writeBuildError(w, err)
		return
	}
	h.mgr.Add(p)

	h.log.Info("pipeline created",
		slog.String("session", string(p.Session())),
		slog.Int("tracks", len(tracks)))
	writeJSON(w, http.StatusCreated, toCompositionResponse(p.Session(), comp))
}

// GetComposition handles GET /pipelines/{pipeline_id}. It returns a manifest
// of the current composition geometry and instruction list.
func (h *Handler) GetComposition(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}
	comp := p.Composition()
	if comp == nil {
		w.WriteHeader(http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, toCompositionResponse(p.Session(), comp))
}

// UpdateProject handles PUT /pipelines/{pipeline_id}/project. The new state
// replaces the old wholesale; frames already in flight observe either value,
// never a mix.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	state, err := projectStateFromRequest(req)
	if err != nil {
		h.log.Debug("invalid project state", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := p.UpdateProject(state); err != nil {
		h.writeBuildError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAspect handles POST /pipelines/{pipeline_id}/aspect.
// Body: {"aspect": "wide"|"tall"}.
func (h *Handler) SetAspect(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Aspect AspectMode `json:"aspect"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Aspect != AspectWide && req.Aspect != AspectTall {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	state, found := h.store.Get(p.Session())
	if !found {
		state = DefaultProjectState()
	}
	state.Aspect = req.Aspect
	if err := p.UpdateProject(state); err != nil {
		h.writeBuildError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenderFrame handles GET /pipelines/{pipeline_id}/frames/{ts_ms} and
// responds with the rendered frame as PNG. A per-frame failure never affects
// other in-flight or future requests.
func (h *Handler) RenderFrame(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}

	ms, err := strconv.ParseInt(chi.URLParam(r, "ts_ms"), 10, 64)
	if err != nil || ms < 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ts := time.Duration(ms) * time.Millisecond

	frame, err := p.RenderFrame(r.Context(), ts)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingSourceFrame), errors.Is(err, ErrNoComposition):
			w.WriteHeader(http.StatusNotFound)
		default:
			h.log.Error("render frame failed",
				slog.String("session", string(p.Session())),
				slog.Int64("ts_ms", ms),
				slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, frame.RGBA()); err != nil {
		h.log.Debug("png encode failed", slog.String("error", err.Error()))
	}
}

// CancelPending handles POST /pipelines/{pipeline_id}/cancel. It returns only
// after all dispatched frame work has drained.
func (h *Handler) CancelPending(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}
	p.CancelPending()
	w.WriteHeader(http.StatusNoContent)
}

// Teardown handles DELETE /pipelines/{pipeline_id}. Idempotent: a second
// delete of the same id is a 404, the store entry is gone either way.
func (h *Handler) Teardown(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.mgr.Remove(p.Session())
	p.Teardown()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Pipeline, bool) {
	id := SessionID(chi.URLParam(r, "pipeline_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	p, ok := h.mgr.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return nil, false
	}
	return p, true
}

// writeBuildError maps configuration errors to 422; anything else is a 500.
func (h *Handler) writeBuildError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrNoVideoTrack) || errors.Is(err, ErrEmptyTimeRange) {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func projectStateFromRequest(req projectRequest) (ProjectState, error) {
	state := ProjectState{
		Fill:    req.Fill,
		Aspect:  req.Aspect,
		Trimmed: req.Trimmed,
	}
	if state.Aspect == "" {
		state.Aspect = AspectWide
	}
	if req.OverlayPNG != "" {
		raw, err := base64.StdEncoding.DecodeString(req.OverlayPNG)
		if err != nil {
			return ProjectState{}, err
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return ProjectState{}, err
		}
		b := img.Bounds()
		buf, err := NewFrameBuffer(b.Dx(), b.Dy(), FormatRGBA)
		if err != nil {
			return ProjectState{}, err
		}
		rgba := buf.RGBA()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				rgba.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
			}
		}
		state.Overlay = buf
	}
	return state, nil
}

func toCompositionResponse(session SessionID, comp *Composition) compositionResponse {
	return compositionResponse{
		Session:      session,
		Version:      comp.Version,
		RenderWidth:  comp.Video.RenderWidth,
		RenderHeight: comp.Video.RenderHeight,
		FrameRate:    comp.Video.FrameRate,
		Strategy:     comp.Video.Strategy,
		DurationMS:   comp.Duration.Milliseconds(),
		Instructions: comp.Video.Instructions,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
