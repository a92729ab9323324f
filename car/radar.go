package car

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// RadarConfig describes the rays cast from the car center, relative to its heading.
type RadarConfig struct {
	Angles    []float64 `yaml:"angles"`
	MaxLength int       `yaml:"maxlength"`
	// ExtendedCast casts the ray at ExtendedAngle a second time, out to ExtendedLength,
	// and appends that reading right after the regular one. Off by default; when on,
	// the asymmetry term compares the two casts of the same ray.
	ExtendedCast   bool    `yaml:"extendedcast"`
	ExtendedAngle  float64 `yaml:"extendedangle"`
	ExtendedLength int     `yaml:"extendedlength"`
}

// DefaultRadarConfig returns two side rays of length 200.
func DefaultRadarConfig() RadarConfig {
	return RadarConfig{
		Angles:         []float64{-90, 90},
		MaxLength:      200,
		ExtendedAngle:  0,
		ExtendedLength: 300,
	}
}

// Reading is where a ray stopped and its integer distance from the car center.
type Reading struct {
	Angle    float64
	Point    image.Point
	Distance int
}

// Radar casts rays pixel by pixel until they reach a border pixel or their length limit.
type Radar struct {
	cfg RadarConfig
}

func NewRadar(cfg RadarConfig) *Radar {
	return &Radar{cfg: cfg}
}

// Scan returns one reading per configured angle, in order.
func (r *Radar) Scan(c *Car) (readings []Reading) {
	for _, degree := range r.cfg.Angles {
		readings = append(readings, r.cast(c, degree, r.cfg.MaxLength))
		if r.cfg.ExtendedCast && degree == r.cfg.ExtendedAngle {
			readings = append(readings, r.cast(c, degree, r.cfg.ExtendedLength))
		}
	}
	return
}

func (r *Radar) cast(c *Car, degree float64, maxLength int) Reading {
	rad := radians(360 - (c.Angle + degree))
	at := func(length int) (int, int) {
		return int(c.Center.X + float64(length)*math.Cos(rad)),
			int(c.Center.Y + float64(length)*math.Sin(rad))
	}

	length := 0
	x, y := at(length)
	for !c.surface.IsBorder(x, y) && length < maxLength {
		length++
		x, y = at(length)
	}

	dist := r2.Norm(r2.Sub(r2.Vec{X: float64(x), Y: float64(y)}, c.Center))
	return Reading{
		Angle:    degree,
		Point:    image.Pt(x, y),
		Distance: int(dist),
	}
}

// Asymmetry is the absolute difference between the first two readings' distances.
func Asymmetry(readings []Reading) float64 {
	if len(readings) < 2 {
		return 0
	}
	return math.Abs(float64(readings[0].Distance - readings[1].Distance))
}
