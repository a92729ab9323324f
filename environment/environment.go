// Package environment wraps a track and a car into an episodic Reset/Step environment
// over the discrete action set, computing rewards and the discretized state.
package environment

import (
	"errors"
	"fmt"
	"math"

	"qcar/car"
	"qcar/track"
)

var (
	ErrRenderMode    = errors.New("unsupported render mode")
	ErrStartTooSmall = errors.New("track too small for the car and its border margins")
	ErrRewardFunc    = errors.New("unknown reward function")
	ErrEpisodeDone   = errors.New("episode is over, call Reset")
)

// RenderModes lists the accepted render modes. "frames" makes the driver write PNG snapshots.
var RenderModes = []string{"", "none", "frames"}

type Config struct {
	RenderMode string          `yaml:"rendermode"`
	Reward     string          `yaml:"reward"`
	StartSpeed float64         `yaml:"startspeed"`
	Car        car.Config      `yaml:"car"`
	Radar      car.RadarConfig `yaml:"radar"`
}

func DefaultConfig() Config {
	return Config{
		Reward:     "radar",
		StartSpeed: 5,
		Car:        car.DefaultConfig(),
		Radar:      car.DefaultRadarConfig(),
	}
}

// Env is a single car on a single track. It is not safe for concurrent use.
type Env struct {
	cfg    Config
	track  *track.Track
	line   car.StartLine
	radar  *car.Radar
	reward RewardFunc

	car      *car.Car
	readings []car.Reading
	state    State
	steps    int
	done     bool
}

// New validates @cfg against @trk and builds an environment ready for Reset.
func New(trk *track.Track, cfg Config) (*Env, error) {
	if !validRenderMode(cfg.RenderMode) {
		return nil, fmt.Errorf("%w: %q", ErrRenderMode, cfg.RenderMode)
	}

	name := cfg.Reward
	if name == "" {
		name = "radar"
	}
	reward, ok := Rewards[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRewardFunc, cfg.Reward)
	}

	need := cfg.Car.Size + 2*cfg.Car.BorderEdge
	if float64(trk.Width()) < need || float64(trk.Height()) < need {
		return nil, fmt.Errorf("%w: %dx%d, need %.0f", ErrStartTooSmall, trk.Width(), trk.Height(), need)
	}

	env := &Env{
		cfg:    cfg,
		track:  trk,
		radar:  car.NewRadar(cfg.Radar),
		reward: reward,
		done:   true,
	}
	if trk.HasStartLine() {
		top, bottom := trk.StartLineRects()
		env.line = car.StartLine{Top: top, Bottom: bottom}
	}
	return env, nil
}

func validRenderMode(mode string) bool {
	for _, m := range RenderModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Reset places a fresh car at the start pose, shifted up by half a car, and advances it one tick.
func (env *Env) Reset() TimeStep {
	pose := env.track.Start()
	y := pose.Y - math.Floor(env.cfg.Car.Size/2)

	env.car = car.New(env.cfg.Car, env.track, pose.X, y, pose.Angle, env.cfg.StartSpeed, env.line)
	env.car.Update()
	env.readings = env.radar.Scan(env.car)
	env.state = StateOf(env.car)
	env.steps = 0
	// A car spawned into a wall has no steps to take.
	env.done = !env.car.Alive()

	return TimeStep{
		stepType: First,
		State:    env.state,
		Outcome:  env.outcome(),
	}
}

// Step applies @action for one tick. A car whose discretized position did not change is
// considered stalled and killed. Stepping after the last step returns ErrEpisodeDone.
func (env *Env) Step(action int) (TimeStep, error) {
	if env.done || env.car == nil {
		return TimeStep{}, ErrEpisodeDone
	}

	c := env.car
	prevDistance := c.Distance
	prev := env.state

	c.Move(action)
	c.Update()
	env.readings = env.radar.Scan(c)
	c.CheckEngine()

	env.state = StateOf(c)
	if env.state == prev {
		c.Kill()
	}

	finish := c.HasTouchedFinish()
	reward := env.reward(Signal{
		Car:          c,
		Readings:     env.readings,
		Finish:       finish,
		PrevDistance: prevDistance,
	})

	env.steps++
	ts := TimeStep{
		stepType: Mid,
		Reward:   reward,
		State:    env.state,
		Outcome:  env.outcome(),
		Finish:   finish,
		Number:   env.steps,
	}
	if !c.Alive() {
		ts.stepType = Last
		env.done = true
	}
	return ts, nil
}

func (env *Env) outcome() Outcome {
	c := env.car
	switch {
	case c.Alive():
		return Running
	case c.IsCollision():
		return Collision
	case c.Speed <= 0:
		return Engine
	default:
		return Stall
	}
}

// StateOf truncates the car position to integers.
func StateOf(c *car.Car) State {
	return State{X: int(c.Position.X), Y: int(c.Position.Y)}
}

// Car returns the current episode's car, nil before the first Reset.
func (env *Env) Car() *car.Car { return env.car }

// Readings returns the radar readings of the last tick.
func (env *Env) Readings() []car.Reading { return env.readings }

func (env *Env) State() State { return env.state }

func (env *Env) Track() *track.Track { return env.track }

func (env *Env) Config() Config { return env.cfg }

// Rendering reports whether the driver should write frame snapshots.
func (env *Env) Rendering() bool { return env.cfg.RenderMode == "frames" }
