package environment

import "fmt"

// StepType denotes whether a TimeStep is the first, a middle, or the last step of an episode.
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// Outcome is why an episode ended, or Running if it has not.
type Outcome int

const (
	Running Outcome = iota
	Collision
	Stall
	Engine
	Timeout
	TickLimit
	Cancelled
)

var outcomeNames = map[Outcome]string{
	Running:   "running",
	Collision: "collision",
	Stall:     "stall",
	Engine:    "engine",
	Timeout:   "timeout",
	TickLimit: "tick-limit",
	Cancelled: "cancelled",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText lets outcomes serialize by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(name string) (Outcome, error) {
	for o, n := range outcomeNames {
		if n == name {
			return o, nil
		}
	}
	return Running, fmt.Errorf("unknown outcome %q", name)
}

// State is the discretized car position: the truncated integer (x, y) pair.
type State struct {
	X, Y int
}

// TimeStep packages a single step of the car-track interaction.
type TimeStep struct {
	stepType StepType
	Reward   float64
	State    State
	Outcome  Outcome
	// Finish is the start/finish line classification observed after the step: +1, -1 or 0.
	Finish int
	Number int
}

// First returns whether the TimeStep starts an episode.
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether the TimeStep is neither first nor last.
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether the car died on this step.
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  State: (%d,%d)  |  " +
		"Outcome: %v  |  Step Number:  %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.State.X, t.State.Y, t.Outcome, t.Number)
}
