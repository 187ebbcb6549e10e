package render

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T) (*Handler, *chi.Mux) {
	t.Helper()
	store := NewInMemoryStore()
	mgr := NewManager()
	h := NewHandler(mgr, store, quietLogger(), nil, 2)
	r := chi.NewRouter()
	h.Routes(r)
	return h, r
}

func createTestPipeline(t *testing.T, r *chi.Mux, body map[string]any) compositionResponse {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pipeline: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp compositionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp
}

func defaultCreateBody() map[string]any {
	return map[string]any{
		"tracks": []map[string]any{{
			"id":             "v0",
			"kind":           "video",
			"natural_width":  640,
			"natural_height": 360,
			"duration_ms":    5000,
			"color":          map[string]float64{"r": 1, "a": 1},
		}},
		"project": map[string]any{
			"fill":   map[string]float64{"r": 1, "a": 1},
			"aspect": "wide",
		},
		"strategy": "fill",
	}
}

func TestHandler_CreatePipeline(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	if resp.Session == "" {
		t.Error("expected session id in response")
	}
	if resp.RenderWidth != 1920 || resp.RenderHeight != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", resp.RenderWidth, resp.RenderHeight)
	}
	if resp.DurationMS != 5000 {
		t.Errorf("duration = %dms, want 5000ms", resp.DurationMS)
	}
}

func TestHandler_CreatePipeline_bad_request(t *testing.T) {
	_, r := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_CreatePipeline_no_video_track(t *testing.T) {
	_, r := newTestHandler(t)

	body := defaultCreateBody()
	body["tracks"] = []map[string]any{{
		"id": "a0", "kind": "audio", "duration_ms": 5000,
	}}
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/pipelines", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_RenderFrame_png(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	req := httptest.NewRequest(http.MethodGet, "/pipelines/"+string(resp.Session)+"/frames/0", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 1920 || b.Dy() != 1080 {
		t.Errorf("frame size = %dx%d", b.Dx(), b.Dy())
	}
	cr, _, _, ca := img.At(10, 10).RGBA()
	if cr>>8 != 255 || ca>>8 != 255 {
		t.Errorf("fill pixel = %v, want opaque red", img.At(10, 10))
	}
}

func TestHandler_RenderFrame_out_of_range(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	// Beyond the composition duration: no instruction covers it.
	req := httptest.NewRequest(http.MethodGet, "/pipelines/"+string(resp.Session)+"/frames/999999", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_UpdateProject_changes_fill(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	update, _ := json.Marshal(map[string]any{
		"fill":   map[string]float64{"g": 1, "a": 1},
		"aspect": "wide",
	})
	req := httptest.NewRequest(http.MethodPut, "/pipelines/"+string(resp.Session)+"/project", bytes.NewReader(update))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update: expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/pipelines/"+string(resp.Session)+"/frames/0", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	_, cg, _, _ := img.At(10, 10).RGBA()
	if cg>>8 != 255 {
		t.Errorf("after update pixel = %v, want green", img.At(10, 10))
	}
}

func TestHandler_SetAspect(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	body, _ := json.Marshal(map[string]string{"aspect": "tall"})
	req := httptest.NewRequest(http.MethodPost, "/pipelines/"+string(resp.Session)+"/aspect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("aspect: expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/pipelines/"+string(resp.Session)+"/", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var manifest compositionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.RenderWidth != 1080 || manifest.RenderHeight != 1920 {
		t.Errorf("size after aspect change = %dx%d, want 1080x1920", manifest.RenderWidth, manifest.RenderHeight)
	}
	if manifest.Version == resp.Version {
		t.Error("composition version must advance on aspect change")
	}
}

func TestHandler_SetAspect_invalid_mode(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	body, _ := json.Marshal(map[string]string{"aspect": "square"})
	req := httptest.NewRequest(http.MethodPost, "/pipelines/"+string(resp.Session)+"/aspect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Teardown(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	req := httptest.NewRequest(http.MethodDelete, "/pipelines/"+string(resp.Session)+"/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("teardown: expected 204, got %d", rec.Code)
	}

	// Gone afterwards.
	req = httptest.NewRequest(http.MethodGet, "/pipelines/"+string(resp.Session)+"/frames/0", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("render after teardown: expected 404, got %d", rec.Code)
	}
}

func TestHandler_Cancel(t *testing.T) {
	_, r := newTestHandler(t)
	resp := createTestPipeline(t, r, defaultCreateBody())

	req := httptest.NewRequest(http.MethodPost, "/pipelines/"+string(resp.Session)+"/cancel", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("cancel: expected 204, got %d", rec.Code)
	}
}

func TestHandler_unknown_pipeline(t *testing.T) {
	_, r := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/pipelines/nope/frames/0", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
