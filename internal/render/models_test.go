package render

import (
	"testing"
	"time"
)

func TestProjectState_Equal_ignores_revision(t *testing.T) {
	a := ProjectState{Fill: Color{R: 1, A: 1}, Aspect: AspectWide, Revision: 1}
	b := ProjectState{Fill: Color{R: 1, A: 1}, Aspect: AspectWide, Revision: 99}

	if !a.Equal(b) {
		t.Error("states differing only in Revision must be equal")
	}

	b.Fill.G = 0.5
	if a.Equal(b) {
		t.Error("states with different fills must not be equal")
	}
}

func TestProjectState_Equal_overlay_by_reference(t *testing.T) {
	ov, err := NewFrameBuffer(2, 2, FormatRGBA)
	if err != nil {
		t.Fatal(err)
	}
	a := ProjectState{Overlay: ov}
	b := ProjectState{Overlay: ov}
	c := ProjectState{}

	if !a.Equal(b) {
		t.Error("same overlay reference must compare equal")
	}
	if a.Equal(c) {
		t.Error("overlay vs no overlay must not compare equal")
	}
}

func TestAspectMode_RenderSize(t *testing.T) {
	if w, h := AspectWide.RenderSize(); w != 1920 || h != 1080 {
		t.Errorf("wide = %dx%d", w, h)
	}
	if w, h := AspectTall.RenderSize(); w != 1080 || h != 1920 {
		t.Errorf("tall = %dx%d", w, h)
	}
	// Unknown modes never produce a third size.
	if w, h := AspectMode("square").RenderSize(); w != 1920 || h != 1080 {
		t.Errorf("unknown mode = %dx%d, want wide fallback", w, h)
	}
}

func TestTimeRange_Contains(t *testing.T) {
	r := TimeRange{Start: time.Second, Duration: 2 * time.Second}

	cases := []struct {
		ts   time.Duration
		want bool
	}{
		{0, false},
		{time.Second, true},
		{2 * time.Second, true},
		{3 * time.Second, false}, // exclusive end
		{4 * time.Second, false},
	}
	for _, tc := range cases {
		if got := r.Contains(tc.ts); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.ts, got, tc.want)
		}
	}
}

func TestComposition_InstructionAt(t *testing.T) {
	comp := &Composition{
		Video: VideoDescriptor{
			Instructions: []Instruction{{
				Range:   TimeRange{Start: 0, Duration: 5 * time.Second},
				Session: "s1",
			}},
		},
	}

	if _, ok := comp.InstructionAt(time.Second); !ok {
		t.Error("expected instruction at 1s")
	}
	if _, ok := comp.InstructionAt(5 * time.Second); ok {
		t.Error("expected no instruction at the exclusive end")
	}
}
