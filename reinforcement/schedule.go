package reinforcement

import "math"

// Schedule is a linear decay toward a floor, stepped once per tick.
type Schedule struct {
	Value float64
	Decay float64
	Floor float64
}

// Step decays the value and returns it.
func (s *Schedule) Step() float64 {
	s.Value = math.Max(s.Value-s.Decay, s.Floor)
	return s.Value
}

// NewSchedule reads @name, @name+"Decay" and @name+"Min" from the hyper-parameters.
func (cfg *TrainingConfig) NewSchedule(name string, value, decay, floor float64) *Schedule {
	return &Schedule{
		Value: cfg.GetHyperParamOrDefault(name, value),
		Decay: cfg.GetHyperParamOrDefault(name+"Decay", decay),
		Floor: cfg.GetHyperParamOrDefault(name+"Min", floor),
	}
}
