package reinforcement

import (
	"math"
	"sync/atomic"

	"qcar/atomic_float"
)

// Stats are the live training figures, written by the driver and read by observers.
type Stats struct {
	Epsilon    *atomic_float.AtomicFloat64
	Alpha      *atomic_float.AtomicFloat64
	BestReward *atomic_float.AtomicFloat64
	LastReward *atomic_float.AtomicFloat64
	// RewardSum is the sum of every recorded reward, for the mean.
	RewardSum *atomic_float.AtomicFloat64
	episodes   atomic.Int64
	finishes   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Episodes   int64   `json:"episodes"`
	Finishes   int64   `json:"finishes"`
	Epsilon    float64 `json:"epsilon"`
	Alpha      float64 `json:"alpha"`
	BestReward float64 `json:"bestReward"`
	LastReward float64 `json:"lastReward"`
	MeanReward float64 `json:"meanReward"`
}

func NewStats() *Stats {
	return &Stats{
		Epsilon:    atomic_float.New(0),
		Alpha:      atomic_float.New(0),
		BestReward: atomic_float.New(math.Inf(-1)),
		LastReward: atomic_float.New(0),
		RewardSum:  atomic_float.New(0),
	}
}

// Record folds a finished episode into the stats.
func (s *Stats) Record(result EpisodeResult) {
	s.Epsilon.Set(result.Epsilon)
	s.Alpha.Set(result.Alpha)
	s.BestReward.Max(result.Reward)
	s.LastReward.Set(result.Reward)
	s.RewardSum.Add(result.Reward)
	s.episodes.Add(1)
	if result.Finished {
		s.finishes.Add(1)
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	best := s.BestReward.Read()
	// JSON has no infinities.
	if math.IsInf(best, -1) {
		best = 0
	}
	episodes := s.episodes.Load()
	mean := 0.0
	if episodes > 0 {
		mean = s.RewardSum.Read() / float64(episodes)
	}
	return StatsSnapshot{
		Episodes:   episodes,
		Finishes:   s.finishes.Load(),
		Epsilon:    s.Epsilon.Read(),
		Alpha:      s.Alpha.Read(),
		BestReward: best,
		LastReward: s.LastReward.Read(),
		MeanReward: mean,
	}
}
