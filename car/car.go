// Package car implements the kinematic car: its motion on a track surface,
// border collisions, the engine check, start/finish line crossing, and radar.
package car

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// The canonical 5-action schema.
const (
	NO_OP = iota
	DECELERATE
	ACCELERATE
	TURN_LEFT
	TURN_RIGHT
	NUM_ACTIONS
)

// Surface is the map a car drives on. A track.Track satisfies it.
type Surface interface {
	Width() int
	Height() int
	IsBorder(x, y int) bool
}

// Config holds the size and speed constants that distinguished the car variants.
type Config struct {
	// Size is the sprite width and height in pixels.
	Size float64 `yaml:"size"`
	// BorderEdge is the margin kept between the car and the map edges.
	BorderEdge float64 `yaml:"borderedge"`
	MinSpeed   float64 `yaml:"minspeed"`
	MaxSpeed   float64 `yaml:"maxspeed"`
	// TurnStep is the heading change in degrees of a single turn action.
	TurnStep float64 `yaml:"turnstep"`
	// SpeedStep is the speed change of a single accelerate/decelerate action.
	SpeedStep float64 `yaml:"speedstep"`
}

// DefaultConfig returns the small-car constants.
func DefaultConfig() Config {
	return Config{
		Size:       15,
		BorderEdge: 5,
		MinSpeed:   0,
		MaxSpeed:   30,
		TurnStep:   45,
		SpeedStep:  1,
	}
}

// StartLine holds the two start-line marker rectangles. A zero StartLine is never touched.
type StartLine struct {
	Top, Bottom image.Rectangle
}

// Car is a kinematic point-and-square car. Angles are in degrees; an angle of 0
// heads toward +x and positive angles turn counter-clockwise on screen.
type Car struct {
	cfg     Config
	surface Surface
	line    StartLine

	Position   r2.Vec
	Center     r2.Vec
	Corners    [4]r2.Vec
	Angle      float64
	StartAngle float64
	Speed      float64
	// Distance accumulates speed per tick, not Euclidean displacement.
	Distance     float64
	Ticks        int
	SpeedChanges int
	// Angles is the history of heading changes.
	Angles []float64

	alive bool
}

// New places a car at x, y with the given heading and speed.
func New(
	cfg Config,
	surface Surface,
	x, y, angle, speed float64,
	line StartLine,
) *Car {
	c := &Car{
		cfg:        cfg,
		surface:    surface,
		line:       line,
		Position:   r2.Vec{X: x, Y: y},
		Angle:      angle,
		StartAngle: angle,
		Speed:      speed,
		alive:      true,
	}
	c.Center = c.center()
	c.updateCorners()
	return c
}

// Config returns the constants the car was built with.
func (c *Car) Config() Config { return c.cfg }

// Alive reports whether the car is still running. Death is terminal.
func (c *Car) Alive() bool { return c.alive }

// Kill forces the car dead, e.g. when it has stalled.
func (c *Car) Kill() { c.alive = false }

// Update advances the car one tick: move along the heading, clamp to the map margins,
// recompute center and corners, then run the collision and engine checks.
func (c *Car) Update() {
	size, edge := c.cfg.Size, c.cfg.BorderEdge
	rad := radians(360 - c.Angle)

	c.Position.X += c.Speed * math.Cos(rad)
	c.Position.X = math.Min(math.Max(edge, c.Position.X), float64(c.surface.Width())-size-edge)

	c.Position.Y += c.Speed * math.Sin(rad)
	c.Position.Y = math.Min(math.Max(edge, c.Position.Y), float64(c.surface.Height())-size-edge)

	c.Center = c.center()
	c.Distance += c.Speed
	c.Ticks++

	c.updateCorners()
	c.CheckCollision()
	c.CheckEngine()
}

func (c *Car) center() r2.Vec {
	half := c.cfg.Size / 2
	return r2.Add(c.Position, r2.Vec{X: half, Y: half})
}

// Corners sit half a car-length from the center along the heading and along heading-90.
func (c *Car) updateCorners() {
	length := c.cfg.Size / 2
	corner := func(l, angle float64) r2.Vec {
		rad := radians(360 - angle)
		return r2.Vec{
			X: c.Center.X + l*math.Cos(rad),
			Y: c.Center.Y + l*math.Sin(rad),
		}
	}
	c.Corners = [4]r2.Vec{
		corner(length, c.Angle),
		corner(-length, c.Angle),
		corner(length, c.Angle-90),
		corner(-length, c.Angle-90),
	}
}

func (c *Car) outOfBounds(x, y float64) bool {
	return x < 0 || x >= float64(c.surface.Width()) || y < 0 || y >= float64(c.surface.Height())
}

// IsCollision reports whether any corner is off the map or on a border pixel, or any pixel
// rasterized along the segments joining consecutive corners is a border pixel. Segments are
// stepped along x, so a segment whose ends share an integer x contributes no samples.
func (c *Car) IsCollision() bool {
	for _, p := range c.Corners {
		if c.outOfBounds(p.X, p.Y) || c.surface.IsBorder(int(p.X), int(p.Y)) {
			return true
		}
	}

	for i := range c.Corners {
		next := c.Corners[(i+1)%len(c.Corners)]
		x1, y1 := int(c.Corners[i].X), int(c.Corners[i].Y)
		x2, y2 := int(next.X), int(next.Y)

		for x := min(x1, x2); x < max(x1, x2); x++ {
			y := int(float64(y2-y1)/float64(x2-x1)*float64(x-x1) + float64(y1))
			if c.surface.IsBorder(x, y) {
				return true
			}
		}
	}

	return false
}

// CheckCollision marks the car dead if it touches a border.
func (c *Car) CheckCollision() {
	if c.IsCollision() {
		c.alive = false
	}
}

// CheckEngine marks the car dead once its speed has dropped to zero.
func (c *Car) CheckEngine() {
	if c.Speed <= 0 {
		c.Speed = 0
		c.alive = false
	}
}

// Move applies one of the 5 discrete actions. Unknown actions are no-ops.
func (c *Car) Move(action int) {
	switch action {
	case DECELERATE:
		c.ChangeSpeed(-c.cfg.SpeedStep)
	case ACCELERATE:
		c.ChangeSpeed(c.cfg.SpeedStep)
	case TURN_LEFT:
		c.ChangeAngle(c.cfg.TurnStep)
	case TURN_RIGHT:
		c.ChangeAngle(-c.cfg.TurnStep)
	}
}

// ChangeAngle turns the car by @delta degrees.
func (c *Car) ChangeAngle(delta float64) {
	c.Angle += delta
	c.Angles = append(c.Angles, delta)
}

// ChangeSpeed adds @delta to the speed, clamped to [MinSpeed, MaxSpeed].
func (c *Car) ChangeSpeed(delta float64) {
	switch {
	case c.Speed+delta < c.cfg.MinSpeed:
		c.Speed = c.cfg.MinSpeed
	case c.Speed+delta > c.cfg.MaxSpeed:
		c.Speed = c.cfg.MaxSpeed
	default:
		c.Speed += delta
	}

	if delta != 0 {
		c.SpeedChanges++
	}
}

// Rect is the car's integer bounding rectangle.
func (c *Car) Rect() image.Rectangle {
	x, y, size := int(c.Position.X), int(c.Position.Y), int(c.cfg.Size)
	return image.Rect(x, y, x+size, y+size)
}

// TouchesLine reports whether the car overlaps either start-line marker.
func (c *Car) TouchesLine() bool {
	rect := c.Rect()
	return rect.Overlaps(c.line.Top) || rect.Overlaps(c.line.Bottom)
}

// HasTouchedFinish classifies a start/finish line crossing: +1 in the correct direction,
// -1 in the wrong direction, 0 when not touching the line or when the heading has
// drifted more than 45 degrees from the starting heading.
func (c *Car) HasTouchedFinish() int {
	if !c.TouchesLine() {
		return 0
	}
	if headingDeviation(c.Angle, c.StartAngle) > 45 {
		return 0
	}
	if c.isOnLeftSideOfLine() {
		return 1
	}
	return -1
}

func (c *Car) isOnLeftSideOfLine() bool {
	lineX := float64(c.line.Top.Min.X)
	return c.Corners[0].X < lineX || c.Corners[1].X < lineX
}

// headingDeviation compares both headings reduced to [0, 360).
func headingDeviation(a, b float64) float64 {
	return math.Abs(mod360(a) - mod360(b))
}

func mod360(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	return r
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
