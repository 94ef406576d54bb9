// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package picking

import (
	"errors"
	"image"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/gridedit/grid"
)

// quadSource serves axis-aligned cells given directly in clip space.
type quadSource []grid.Vertices

func (q quadSource) Vertices(slot int) (high, low grid.Vertices) {
	return q[slot], grid.Vertices{}
}

func rect(x0, y0, x1, y1 float32) grid.Vertices {
	var v grid.Vertices
	set := func(c int, x, y float32) { v[2*c], v[2*c+1] = x, y }
	set(grid.CornerTL, x0, y1)
	set(grid.CornerTR, x1, y1)
	set(grid.CornerBL, x0, y0)
	set(grid.CornerBR, x1, y0)
	return v
}

// quadrants covers the viewport with four cells:
// 0 bottom-left, 1 bottom-right, 2 top-left, 3 top-right.
func quadrants() quadSource {
	return quadSource{
		rect(-1, -1, 0, 0),
		rect(0, -1, 1, 0),
		rect(-1, 0, 0, 1),
		rect(0, 0, 1, 1),
	}
}

func testView() View {
	return View{Matrix: mgl64.Ident4(), Width: 4, Height: 4, PixelRatio: 1}
}

type countingRenderer struct {
	Renderer
	calls int
	log   *[]string
}

func (c *countingRenderer) RenderIDs(req Request) ([]byte, error) {
	c.calls++
	if c.log != nil {
		*c.log = append(*c.log, "render")
	}
	return c.Renderer.RenderIDs(req)
}

type logFlusher struct {
	log *[]string
	err error
}

func (f logFlusher) Flush() error {
	*f.log = append(*f.log, "flush")
	return f.err
}

func TestBrush(t *testing.T) {
	e := NewEngine(NewSoftwareRenderer(quadrants()), nil)
	scene := Scene{Count: 4}

	tests := []struct {
		at     Point
		want   uint32
		wantOK bool
	}{
		{Point{0.5, 3.5}, 0, true},
		{Point{3.5, 3.5}, 1, true},
		{Point{0.5, 0.5}, 2, true},
		{Point{3.5, 0.5}, 3, true},
		{Point{2.5, 1.5}, 3, true},
	}
	for _, tt := range tests {
		id, ok, err := e.Brush(testView(), scene, tt.at)
		if err != nil {
			t.Fatalf("Brush(%v): %v", tt.at, err)
		}
		if ok != tt.wantOK || id != tt.want {
			t.Errorf("Brush(%v) = %d,%v want %d,%v", tt.at, id, ok, tt.want, tt.wantOK)
		}
	}
}

func TestBrushMiss(t *testing.T) {
	e := NewEngine(NewSoftwareRenderer(quadrants()), nil)

	// Slot 3 is beyond the live count and is not drawn.
	_, ok, err := e.Brush(testView(), Scene{Count: 3}, Point{3.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected no hit over an undrawn cell")
	}

	_, ok, err = e.Brush(testView(), Scene{}, Point{1, 1})
	if err != nil || ok {
		t.Errorf("empty scene: ok=%v err=%v", ok, err)
	}
}

func TestBrushInvalidView(t *testing.T) {
	e := NewEngine(NewSoftwareRenderer(quadrants()), nil)
	_, _, err := e.Brush(View{Matrix: mgl64.Ident4()}, Scene{Count: 4}, Point{})
	if !errors.Is(err, ErrInvalidView) {
		t.Errorf("expected ErrInvalidView, got %v", err)
	}
}

func TestBox(t *testing.T) {
	r := &countingRenderer{Renderer: NewSoftwareRenderer(quadrants())}
	e := NewEngine(r, nil)
	scene := Scene{Count: 4}

	ids, err := e.Box(testView(), scene, Point{0, 0}, Point{4, 4})
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []uint32{0, 1, 2, 3}) {
		t.Errorf("full box = %v", ids)
	}

	// Corners in reverse order select the bottom-left pixel only.
	ids, err = e.Box(testView(), scene, Point{1.9, 3.9}, Point{0.2, 2.1})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []uint32{0}) {
		t.Errorf("small box = %v, want [0]", ids)
	}

	calls := r.calls
	ids, err = e.Box(testView(), scene, Point{1.2, 1.2}, Point{1.8, 1.9})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 || ids == nil {
		t.Errorf("empty box = %#v, want empty non-nil", ids)
	}
	if r.calls != calls {
		t.Error("empty box must not render")
	}
}

func TestLastDrawnWins(t *testing.T) {
	src := append(quadrants(), rect(-1, -1, 1, 1))
	e := NewEngine(NewSoftwareRenderer(src), nil)

	ids, err := e.Box(testView(), Scene{Count: 5}, Point{0, 0}, Point{4, 4})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []uint32{4}) {
		t.Errorf("ids = %v, want [4]", ids)
	}
}

func TestFlushBeforeRender(t *testing.T) {
	var log []string
	r := &countingRenderer{Renderer: NewSoftwareRenderer(quadrants()), log: &log}
	e := NewEngine(r, logFlusher{log: &log})

	if _, _, err := e.Brush(testView(), Scene{Count: 4}, Point{1, 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Box(testView(), Scene{Count: 4}, Point{0, 0}, Point{2, 2}); err != nil {
		t.Fatal(err)
	}
	want := []string{"flush", "render", "flush", "render"}
	if !slices.Equal(log, want) {
		t.Errorf("order = %v, want %v", log, want)
	}

	boom := errors.New("boom")
	e = NewEngine(r, logFlusher{log: &log, err: boom})
	if _, _, err := e.Brush(testView(), Scene{Count: 4}, Point{1, 1}); !errors.Is(err, boom) {
		t.Errorf("expected flush error, got %v", err)
	}
}

func TestBoxTargetSize(t *testing.T) {
	tests := []struct {
		w, h, pr float64
		wantW    int
		wantH    int
	}{
		{800, 600, 1, 800, 600},
		{800, 600, 2, 800, 600},
		{801, 600, 1.25, 800, 600},
		{800, 600, 0, 800, 600},
	}
	for _, tt := range tests {
		v := View{Width: tt.w, Height: tt.h, PixelRatio: tt.pr}
		w, h := v.BoxTargetSize()
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("BoxTargetSize(%g,%g,%g) = %d,%d want %d,%d", tt.w, tt.h, tt.pr, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestBoxRegion(t *testing.T) {
	tests := []struct {
		a, b Point
		want image.Rectangle
	}{
		{Point{10.7, 20.2}, Point{3.1, 5.9}, image.Rect(3, 5, 10, 20)},
		{Point{-5, -5}, Point{500, 500}, image.Rect(0, 0, 100, 50)},
		{Point{4.2, 4.2}, Point{4.8, 9}, image.Rectangle{}},
	}
	for _, tt := range tests {
		got := BoxRegion(tt.a, tt.b, 100, 50)
		if !got.Eq(tt.want) {
			t.Errorf("BoxRegion(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPickingMatrixCentresPointer(t *testing.T) {
	v := View{Width: 200, Height: 100}
	p := Point{50, 25}
	nx, ny := v.NDC(p)
	clip := v.PickingMatrix(p).Mul4x1(mgl64.Vec4{nx, ny, 0, 1})
	if !mgl64.FloatEqual(clip[0], 0) || !mgl64.FloatEqual(clip[1], 0) {
		t.Errorf("pointer maps to %v, want origin", clip)
	}

	// One CSS pixel to the right lands on the target edge.
	nx2, _ := v.NDC(Point{p.X + 1, p.Y})
	clip = v.PickingMatrix(p).Mul4x1(mgl64.Vec4{nx2, ny, 0, 1})
	if !mgl64.FloatEqual(clip[0], 1) {
		t.Errorf("neighbour x = %g, want 1", clip[0])
	}
}

func TestShift(t *testing.T) {
	eye := [2]float64{0.8123456789012, 0.3987654321098}
	hx, lx := grid.SplitFloat(eye[0])
	hy, ly := grid.SplitFloat(eye[1])

	s := Shift([2]float32{hx, hy}, [2]float32{lx, ly}, eye)
	if s != ([4]float32{}) {
		t.Errorf("origin at eye shift = %v, want zero", s)
	}

	s = Shift([2]float32{hx - 0.25, hy}, [2]float32{lx, ly}, eye)
	if s[0] != -0.25 {
		t.Errorf("high x shift = %g, want -0.25", s[0])
	}
}

func TestCodec(t *testing.T) {
	for _, id := range []uint32{0, 1, 255, 256, 0x00ABCDEF, 0xFFFFFFFE} {
		b := EncodeID(id)
		got, ok := DecodeID(b[:], int(min(uint64(id)+1, 1<<40)))
		if !ok || got != id {
			t.Errorf("round trip %#x = %#x,%v", id, got, ok)
		}
	}
	if _, ok := DecodeID([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 1<<40); ok {
		t.Error("sentinel decoded as an id")
	}
	b := EncodeID(7)
	if _, ok := DecodeID(b[:], 7); ok {
		t.Error("id equal to count must be discarded")
	}

	px := make([]byte, 0, 24)
	for _, id := range []uint32{3, Sentinel, 1, 3, 9, 1} {
		e := EncodeID(id)
		px = append(px, e[:]...)
	}
	if got := DecodeRegion(px, 5); !slices.Equal(got, []uint32{3, 1}) {
		t.Errorf("DecodeRegion = %v, want [3 1]", got)
	}
}

func TestTargetRegion(t *testing.T) {
	tg := NewTarget(3, 2)
	if tg.ID(0, 0) != Sentinel {
		t.Fatal("new target must be cleared to the sentinel")
	}
	tg.SetID(1, 1, 42)
	tg.SetID(5, 5, 1)
	px := tg.Region(image.Rect(1, 1, 3, 2))
	if len(px) != 8 {
		t.Fatalf("region bytes = %d, want 8", len(px))
	}
	if id, ok := DecodeID(px, 100); !ok || id != 42 {
		t.Errorf("region first pixel = %d,%v", id, ok)
	}
}
