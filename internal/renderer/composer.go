package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/linuxmatters/sonogen/internal/config"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
)

// Composer produces the final image from a painted canvas and its level track.
type Composer struct {
	face         font.Face
	resolution   float64
	maxFrequency float64
	noiseFloor   float64
	grid         bool
}

// Layout is the geometry of a grid image.
type Layout struct {
	BorderLeft   int
	BorderBottom int
	TrackHeight  float64 // amplitude sub-graph height
	Width        int
	Height       int
}

// NewComposer creates a composer for the given run options.
func NewComposer(cfg *config.Config) (*Composer, error) {
	face, err := LoadFont(config.FontSize)
	if err != nil {
		return nil, err
	}

	return &Composer{
		face:         face,
		resolution:   cfg.Resolution,
		maxFrequency: cfg.MaxFrequency,
		noiseFloor:   cfg.NoiseFloor,
		grid:         cfg.DrawGrid,
	}, nil
}

// Layout computes borders from the widest axis label so that no label is clipped.
func (c *Composer) Layout(width, height int) Layout {
	nKhz := int(c.maxFrequency / 1000)
	freqWidth, textHeight := measureText(c.face, fmt.Sprintf("%dk", nKhz))
	dbWidth, _ := measureText(c.face, fmt.Sprintf("%.0fdB", c.noiseFloor))
	textWidth := max(freqWidth, dbWidth)

	borderL := config.GridMarkerSmall + textWidth + config.GridMarkerSmall + config.GridMarkerLarge
	borderB := config.GridMarkerLarge + textHeight + config.GridMarkerSmall + config.GridMarkerLarge
	track := float64(height) / config.LevelTrackRatio

	return Layout{
		BorderLeft:   borderL,
		BorderBottom: borderB,
		TrackHeight:  track,
		Width:        borderL + width,
		Height:       int(float64(borderB+height) + track),
	}
}

// Compose returns the opaque output image. Without a grid it is the canvas
// over white; with a grid it adds axes, ticks, labels and the amplitude graph.
func (c *Composer) Compose(canvas *Canvas, levels *LevelTrack) *image.RGBA {
	if !c.grid {
		dc := gg.NewContext(canvas.Width(), canvas.Height())
		dc.SetRGB(1, 1, 1)
		dc.Clear()

		dst := dc.Image().(*image.RGBA)
		draw.Draw(dst, dst.Bounds(), canvas.Image(), image.Point{}, draw.Over)
		return dst
	}
	return c.composeGrid(canvas, levels)
}

func (c *Composer) composeGrid(canvas *Canvas, levels *LevelTrack) *image.RGBA {
	width, height := canvas.Width(), canvas.Height()
	layout := c.Layout(width, height)
	fw, fh := float64(width), float64(height)

	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(c.face)

	// Origin at the spectrogram's bottom-left, y up, pixel-aligned lines
	dc.Push()
	dc.Scale(1, -1)
	dc.Translate(float64(layout.BorderLeft), -fh)
	dc.Translate(-0.5, -0.5)

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(config.AxisLineWidth)
	dc.MoveTo(0, fh)
	dc.LineTo(0, 0)
	dc.LineTo(fw, 0)
	dc.Stroke()

	for _, tick := range FrequencyTicks(height, c.maxFrequency) {
		y := float64(tick.Pos)

		dc.SetRGB(0, 0, 0)
		dc.DrawLine(-tick.Marker, y, 0, y)
		dc.Stroke()

		dc.SetRGBA(0, 0, 0, tick.Alpha)
		dc.DrawLine(0, y, fw, y)
		dc.Stroke()

		if tick.Label != "" {
			w, h := measureText(c.face, tick.Label)
			tx := -(config.GridMarkerLarge + config.GridMarkerSmall) - float64(w)
			ty := math.Min(y+float64(h)/2, fh)
			drawLabel(dc, tick.Label, tx, ty)
		}
	}

	for _, tick := range TimeTicks(width, c.resolution) {
		x := float64(tick.Pos)

		dc.SetRGB(0, 0, 0)
		dc.DrawLine(x, -tick.Marker, x, 0)
		dc.Stroke()

		if tick.Label != "" {
			w, _ := measureText(c.face, tick.Label)
			tx := math.Min(x-float64(w)/2, fw-float64(w))
			ty := float64(-(config.GridMarkerLarge + config.GridMarkerSmall))
			drawLabel(dc, tick.Label, tx, ty)
		}
	}

	// Amplitude sub-graph below the time labels; +1 keeps its bottom axis on the image
	dc.Translate(0, float64(-layout.BorderBottom+1))
	c.drawLevels(dc, levels, fw, layout.TrackHeight)

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(config.AxisLineWidth)
	dc.MoveTo(0, 0)
	dc.LineTo(0, -layout.TrackHeight)
	dc.LineTo(fw, -layout.TrackHeight)
	dc.Stroke()

	for _, tick := range LevelTicks(layout.TrackHeight) {
		y := float64(tick.Pos)

		dc.DrawLine(-tick.Marker, y, 0, y)
		dc.Stroke()

		if tick.Label != "" {
			w, h := measureText(c.face, tick.Label)
			tx := -(config.GridMarkerMed + config.GridMarkerSmall) - float64(w)
			ty := math.Max(y+float64(h)/2, -layout.TrackHeight+float64(h))
			drawLabel(dc, tick.Label, tx, ty)
		}
	}
	dc.Pop()

	dst := dc.Image().(*image.RGBA)
	draw.Draw(dst, image.Rect(layout.BorderLeft, 0, layout.BorderLeft+width, height),
		canvas.Image(), image.Point{}, draw.Over)
	return dst
}

// drawLevels fills the area under the level curve, clipped to the track.
// An empty track draws nothing.
func (c *Composer) drawLevels(dc *gg.Context, levels *LevelTrack, width, track float64) {
	if levels == nil || levels.Len() == 0 {
		return
	}
	points := levels.Points()

	dc.Push()
	dc.DrawRectangle(0, 0, width, -track)
	dc.Clip()

	dc.Push()
	dc.Scale(c.resolution, track/config.LevelRangeDB)
	dc.MoveTo(0, -config.LevelRangeDB)
	for _, p := range points {
		dc.LineTo(p.Seconds, p.DB)
	}
	dc.LineTo(points[len(points)-1].Seconds, -config.LevelRangeDB)
	dc.Pop()

	// gg gradients live in device space
	x0, y0 := dc.TransformPoint(0, 0)
	x1, y1 := dc.TransformPoint(0, -config.LevelRangeDB)
	gradient := gg.NewLinearGradient(x0, y0, x1, y1)
	gradient.AddColorStop(0.0, levelFill(0.7))
	gradient.AddColorStop(0.2, levelFill(0.8))
	gradient.AddColorStop(0.7, levelFill(1.0))

	dc.SetFillStyle(gradient)
	dc.FillPreserve()

	dc.SetLineWidth(config.LevelLineWidth)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetRGB(config.LevelStrokeR, config.LevelStrokeG, config.LevelStrokeB)
	dc.Stroke()
	dc.Pop()

	// Pop keeps the mask
	dc.ResetClip()
}

// drawLabel renders text with its top-left corner at (x, y) in the current
// coordinate system. Glyphs are drawn unflipped in device space.
func drawLabel(dc *gg.Context, text string, x, y float64) {
	dx, dy := dc.TransformPoint(math.Trunc(x), math.Trunc(y))

	dc.Push()
	dc.Identity()
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(text, dx, dy, 0, 1)
	dc.Pop()
}

func levelFill(alpha float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(math.Round(config.LevelFillR * 0xFF)),
		G: uint8(math.Round(config.LevelFillG * 0xFF)),
		B: uint8(math.Round(config.LevelFillB * 0xFF)),
		A: uint8(math.Round(alpha * 0xFF)),
	}
}
