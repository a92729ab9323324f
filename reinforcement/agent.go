package reinforcement

import (
	"qcar/car"
	"qcar/environment"

	"golang.org/x/exp/rand"
)

// EXPLORE_ACTIONS is the size of the action subset sampled for states with no values yet:
// no-op, decelerate, accelerate and turn-left.
const EXPLORE_ACTIONS = 4

// Agent is an epsilon-greedy tabular Q-learner. Epsilon and alpha are owned by the caller.
type Agent struct {
	table          *Table
	rng            *rand.Rand
	exploreActions int
}

// NewAgent returns an agent over @table whose random choices are seeded by @seed.
func NewAgent(table *Table, seed uint64) *Agent {
	return &Agent{
		table:          table,
		rng:            rand.New(rand.NewSource(seed)),
		exploreActions: EXPLORE_ACTIONS,
	}
}

func (a *Agent) Table() *Table { return a.table }

// SelectAction picks the greedy action of @s, or a random one from the reduced subset if
// @s was never visited. With probability @epsilon that choice is replaced by a uniformly
// random action over the full action set.
func (a *Agent) SelectAction(s environment.State, epsilon float64) int {
	var best int
	if _, ok := a.table.Lookup(s); ok {
		best = a.table.ArgMax(s)
	} else {
		best = a.rng.Intn(a.exploreActions)
	}

	if a.rng.Float64() < epsilon {
		return a.rng.Intn(car.NUM_ACTIONS)
	}
	return best
}

// Update applies the one-step Q-learning rule:
//
//	Q[s,a] += alpha * (reward + gamma * max Q[next] - Q[s,a])
func (a *Agent) Update(s environment.State, action int, reward float64, next environment.State, alpha, gamma float64) {
	target := reward + gamma*a.table.Max(next)
	q := a.table.GetOrInsert(s)
	a.table.Set(s, action, q[action]+alpha*(target-q[action]))
}
