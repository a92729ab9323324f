// views contains the live training views, derived from the Episode view-model.
package views

import (
	"fmt"

	"qcar/reinforcement"
)

// Episode is the view-model of one finished episode together with the running stats at
// the time it finished. Fields are immediately usable as view parameters.
type Episode struct {
	Number      int
	Reward      float64
	FinalReward float64
	Ticks       int
	Outcome     string
	Finished    bool
	Stats       reinforcement.StatsSnapshot
}

// NewEpisode builds the view-model of @result. @stats should be read after the
// result was recorded so that the two agree.
func NewEpisode(result reinforcement.EpisodeResult, stats reinforcement.StatsSnapshot) Episode {
	return Episode{
		Number:      result.Episode,
		Reward:      result.Reward,
		FinalReward: result.FinalReward,
		Ticks:       result.Ticks,
		Outcome:     result.Outcome.String(),
		Finished:    result.Finished,
		Stats:       stats,
	}
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.4f", f)
}
