package renderer

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/linuxmatters/sonogen/internal/config"
)

var black = color.NRGBA{A: 0xFF}

func newTestPainter(t *testing.T, width, height int, mode config.Mode) (*Canvas, *Painter) {
	t.Helper()
	canvas, err := NewCanvas(width, height, nil)
	if err != nil {
		t.Fatalf("NewCanvas failed: %v", err)
	}
	return canvas, NewPainter(canvas, -100, mode, black)
}

// TestCurve_Continuity verifies both curve segments meet at (TX, TY) and the
// curve spans 0..1.
func TestCurve_Continuity(t *testing.T) {
	below := curveK * config.ShadeTX * config.ShadeTX
	above := curveM*config.ShadeTX + curveB

	if math.Abs(below-config.ShadeTY) > 1e-9 || math.Abs(above-config.ShadeTY) > 1e-9 {
		t.Errorf("segments at TX = %g / %g, want %g", below, above, config.ShadeTY)
	}
	if got := Curve(0); got != 0 {
		t.Errorf("Curve(0) = %g, want 0", got)
	}
	if got := Curve(1); math.Abs(got-1) > 1e-9 {
		t.Errorf("Curve(1) = %g, want 1", got)
	}

	prev := Curve(0)
	for i := 1; i <= 100; i++ {
		v := Curve(float64(i) / 100)
		if v < prev {
			t.Fatalf("Curve not monotonic at %d%%: %g < %g", i, v, prev)
		}
		prev = v
	}
}

func TestShade(t *testing.T) {
	testCases := []struct {
		name   string
		db     float64
		want   uint8
		wantOK bool
	}{
		{"at floor", -100, 0, false},
		{"below floor", -120, 0, false},
		{"quadratic segment", -50, 150, true},
		{"linear segment", -10, 245, true},
		{"full scale", 0, 255, true},
		{"above 0 dB clamps", 6, 255, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Shade(tc.db, -100)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("Shade(%g) = (%d, %v), want (%d, %v)", tc.db, got, ok, tc.want, tc.wantOK)
			}
		})
	}

	if _, ok := Shade(math.NaN(), -100); ok {
		t.Error("Shade(NaN) should leave the pixel untouched")
	}
}

// TestPaintColumn_Overlay paints bands -100, -50, -10 and 0 dB on a 4-row canvas.
func TestPaintColumn_Overlay(t *testing.T) {
	canvas, painter := newTestPainter(t, 2, 4, config.ModeOverlay)

	if err := painter.PaintColumn([]float32{-100, -50, -10, 0}, 0); err != nil {
		t.Fatalf("PaintColumn failed: %v", err)
	}

	want := []uint8{255, 245, 150, 0} // alpha by row, top to bottom
	for row, alpha := range want {
		px, _ := canvas.At(0, row)
		if px.A != alpha {
			t.Errorf("row %d alpha = %d, want %d", row, px.A, alpha)
		}
		if px.R != 0 || px.G != 0 || px.B != 0 {
			t.Errorf("row %d colour = %v, want black ink", row, px)
		}
	}

	// Lowest band sits at the floor, so the bottom pixel stays untouched
	if px, _ := canvas.At(0, 3); px != (color.NRGBA{}) {
		t.Errorf("bottom row = %v, want untouched", px)
	}
	if painter.Columns() != 1 {
		t.Errorf("Columns() = %d, want 1", painter.Columns())
	}
}

func TestPaintColumn_Solid(t *testing.T) {
	canvas, painter := newTestPainter(t, 1, 2, config.ModeSolid)

	if err := painter.PaintColumn([]float32{-10, 0}, 0); err != nil {
		t.Fatalf("PaintColumn failed: %v", err)
	}

	top, _ := canvas.At(0, 0)
	if top != (color.NRGBA{A: 0xFF}) {
		t.Errorf("0 dB pixel = %v, want opaque black", top)
	}
	bottom, _ := canvas.At(0, 1)
	if bottom.A != 0xFF || bottom.R != 10 || bottom.R != bottom.G || bottom.G != bottom.B {
		t.Errorf("-10 dB pixel = %v, want opaque gray 10", bottom)
	}
}

func TestPaintColumn_Bounds(t *testing.T) {
	canvas, painter := newTestPainter(t, 3, 2, config.ModeOverlay)

	for _, col := range []int{-1, 3} {
		if err := painter.PaintColumn([]float32{0}, col); !errors.Is(err, ErrColumnOutOfRange) {
			t.Errorf("PaintColumn(col %d) = %v, want ErrColumnOutOfRange", col, err)
		}
	}

	// Extra bands above the canvas are dropped
	if err := painter.PaintColumn([]float32{0, 0, 0, 0, 0}, 2); err != nil {
		t.Fatalf("PaintColumn with extra bands failed: %v", err)
	}
	for row := 0; row < canvas.Height(); row++ {
		if px, _ := canvas.At(2, row); px.A != 0xFF {
			t.Errorf("row %d alpha = %d, want 255", row, px.A)
		}
	}

	// Fewer bands than rows leave the top untouched
	if err := painter.PaintColumn([]float32{0}, 1); err != nil {
		t.Fatalf("PaintColumn with short column failed: %v", err)
	}
	if px, _ := canvas.At(1, 0); px.A != 0 {
		t.Errorf("top row alpha = %d, want 0", px.A)
	}
	if painter.Columns() != 2 {
		t.Errorf("Columns() = %d, want 2", painter.Columns())
	}
}
