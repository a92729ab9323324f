// Package track loads race track bitmaps. Pixel colors carry the semantics:
// the border color marks walls, pure green marks the start line, and everything
// else is drivable surface.
package track

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
)

// MarkerSize is the width and height in pixels of the rectangle spanned by each start-line marker.
const MarkerSize = 10

var (
	// Green is the exact start-line marker color.
	Green = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	// White is the default border color.
	White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Pose is a position and heading in degrees.
type Pose struct {
	X, Y  float64
	Angle float64
}

// Track is a read-only, pixel addressable map surface.
type Track struct {
	img         image.Image
	width       int
	height      int
	borderColor color.NRGBA
	start       Pose
	// The start-line markers, as found by the left and right column scans.
	top, bottom image.Point
	hasLine     bool
}

// Load opens and decodes the image at @path and builds a Track from it.
func Load(path string, borderColor color.Color) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load track: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load track %s: %w", path, err)
	}

	return New(img, borderColor), nil
}

// New builds a Track from an already decoded image and derives its start pose.
// Images without green markers degrade silently to the zero pose.
func New(img image.Image, borderColor color.Color) *Track {
	bounds := img.Bounds()
	trk := &Track{
		img:         img,
		width:       bounds.Dx(),
		height:      bounds.Dy(),
		borderColor: toNRGBA(borderColor),
	}
	trk.setStartingPosition()
	return trk
}

// Width returns the map width in pixels.
func (trk *Track) Width() int { return trk.width }

// Height returns the map height in pixels.
func (trk *Track) Height() int { return trk.height }

// Image returns the backing bitmap.
func (trk *Track) Image() image.Image { return trk.img }

// BorderColor returns the wall sentinel color.
func (trk *Track) BorderColor() color.NRGBA { return trk.borderColor }

// Start returns the start pose derived from the green markers.
func (trk *Track) Start() Pose { return trk.start }

// StartLine returns the two marker points: the first hit of the left-to-right
// scan and the first hit of the right-to-left scan.
func (trk *Track) StartLine() (top, bottom image.Point) {
	return trk.top, trk.bottom
}

// HasStartLine reports whether both marker scans found a green pixel.
func (trk *Track) HasStartLine() bool { return trk.hasLine }

// StartLineRects returns the marker rectangles a car must overlap to touch the line.
func (trk *Track) StartLineRects() (top, bottom image.Rectangle) {
	return markerRect(trk.top), markerRect(trk.bottom)
}

// At returns the pixel color at map coordinates x, y.
func (trk *Track) At(x, y int) color.NRGBA {
	min := trk.img.Bounds().Min
	return toNRGBA(trk.img.At(min.X+x, min.Y+y))
}

// OutOfBounds reports whether x, y lies outside the map.
func (trk *Track) OutOfBounds(x, y int) bool {
	return x < 0 || x >= trk.width || y < 0 || y >= trk.height
}

// IsBorder reports whether x, y is off the map or a wall pixel.
func (trk *Track) IsBorder(x, y int) bool {
	return trk.OutOfBounds(x, y) || trk.At(x, y) == trk.borderColor
}

// findPixel scans columns from @start toward @end by @step, each column top to bottom,
// returning the first pixel satisfying @match.
func (trk *Track) findPixel(start, end, step int, match func(color.NRGBA) bool) (image.Point, bool) {
	for x := start; x != end; x += step {
		for y := 0; y < trk.height; y++ {
			if match(trk.At(x, y)) {
				return image.Pt(x, y), true
			}
		}
	}
	return image.Point{}, false
}

// setStartingPosition locates the start-line markers and derives the start pose
// as their midpoint, headed along the vector from the left marker to the right one.
// Only the first match of each scan is used; disconnected green regions are not disambiguated,
// and a single small patch yields a heading of 0.
func (trk *Track) setStartingPosition() {
	isGreen := func(c color.NRGBA) bool { return c == Green }

	left, leftOk := trk.findPixel(0, trk.width, 1, isGreen)
	right, rightOk := trk.findPixel(trk.width-1, -1, -1, isGreen)
	if !leftOk || !rightOk {
		trk.start = Pose{}
		return
	}

	trk.top, trk.bottom = left, right
	trk.hasLine = true
	// atan2(dy, dx): a horizontal marker pair heads along +x, i.e. 0. Swapping the
	// arguments would turn a single patch to 90.
	angle := math.Atan2(float64(right.Y-left.Y), float64(right.X-left.X)) * 180 / math.Pi
	trk.start = Pose{
		X:     float64(floorDiv(left.X+right.X, 2)),
		Y:     float64(floorDiv(left.Y+right.Y, 2)),
		Angle: angle,
	}
}

func markerRect(p image.Point) image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+MarkerSize, p.Y+MarkerSize)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func toNRGBA(c color.Color) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}
