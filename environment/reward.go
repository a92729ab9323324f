package environment

import (
	"qcar/car"
)

const (
	FINISH_REWARD    = 10000.0
	CRASH_PENALTY    = 10.0
	NORMALIZED_BONUS = 100000.0
)

// Signal is everything a reward function may look at after a step.
type Signal struct {
	Car      *car.Car
	Readings []car.Reading
	// Finish is the line classification of the car after the step.
	Finish int
	// PrevDistance is the car's traveled distance before the step.
	PrevDistance float64
}

// RewardFunc maps the post-step signal to a scalar reward.
type RewardFunc func(Signal) float64

// Rewards holds the named reward variants selectable from configuration.
var Rewards = map[string]RewardFunc{
	"radar":      RadarReward,
	"normalized": NormalizedReward,
}

// RadarReward pays for finishing in the right direction, punishes the wrong direction,
// and otherwise pays the traveled distance minus the radar asymmetry. Stalls and
// collisions cost a flat penalty plus the asymmetry. The pre-step distance is subtracted
// from every case.
func RadarReward(s Signal) float64 {
	diff := car.Asymmetry(s.Readings)

	var r float64
	switch {
	case s.Finish == -1:
		r = -FINISH_REWARD
	case s.Finish == 1:
		r = FINISH_REWARD
	case s.Car.Speed == 0, s.Car.IsCollision():
		r = -CRASH_PENALTY - diff
	default:
		r = s.Car.Distance - diff
	}
	return r - s.PrevDistance
}

// NormalizedReward is the distance in half car-lengths plus a large bonus per finish
// direction, less a penalty for colliding and another for being dead.
func NormalizedReward(s Signal) float64 {
	a := 0.0
	if s.Car.IsCollision() {
		a = -CRASH_PENALTY
	}
	if !s.Car.Alive() {
		a -= CRASH_PENALTY
	}
	return s.Car.Distance/(s.Car.Config().Size/2) + float64(s.Finish)*NORMALIZED_BONUS + a
}
