package report

import (
	"fmt"

	"qcar/car"
	"qcar/track"

	"github.com/fogleman/gg"
)

// RenderFrame draws the car outline, its radar rays and the start-line markers over the
// track bitmap and saves the result as a PNG at @path.
func RenderFrame(path string, trk *track.Track, c *car.Car, readings []car.Reading) error {
	dc := gg.NewContextForImage(trk.Image())

	if trk.HasStartLine() {
		top, bottom := trk.StartLineRects()
		dc.SetRGB(0, 0.6, 0)
		dc.SetLineWidth(1)
		for _, r := range []struct{ x, y, w, h float64 }{
			{float64(top.Min.X), float64(top.Min.Y), float64(top.Dx()), float64(top.Dy())},
			{float64(bottom.Min.X), float64(bottom.Min.Y), float64(bottom.Dx()), float64(bottom.Dy())},
		} {
			dc.DrawRectangle(r.x, r.y, r.w, r.h)
			dc.Stroke()
		}
	}

	// Radar
	dc.SetRGB(0, 1, 0)
	dc.SetLineWidth(1)
	for _, r := range readings {
		dc.DrawLine(c.Center.X, c.Center.Y, float64(r.Point.X), float64(r.Point.Y))
		dc.Stroke()
		dc.DrawCircle(float64(r.Point.X), float64(r.Point.Y), 5)
		dc.Fill()
	}

	// Corners 0/1 lie on the heading axis and 2/3 across it, so they are visited alternately.
	dc.ClearPath()
	for _, i := range []int{0, 2, 1, 3} {
		dc.LineTo(c.Corners[i].X, c.Corners[i].Y)
	}
	dc.ClosePath()
	if c.Alive() {
		dc.SetRGB(0.1, 0.3, 0.9)
	} else {
		dc.SetRGB(0.9, 0.1, 0.1)
	}
	dc.Fill()

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("render frame: %w", err)
	}
	return nil
}
