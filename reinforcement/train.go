package reinforcement

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"qcar/environment"
	"qcar/report"
)

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	Episode int `json:"episode"`
	// Reward is the recorded reward: the episode maximum or its final reward, per config.
	Reward      float64             `json:"reward"`
	FinalReward float64             `json:"finalReward"`
	Ticks       int                 `json:"ticks"`
	Outcome     environment.Outcome `json:"outcome"`
	// Finished is set if the car touched the finish line in the correct direction.
	Finished bool    `json:"finished"`
	Epsilon  float64 `json:"epsilon"`
	Alpha    float64 `json:"alpha"`
}

// ProgressFunc is a callback by which the training method lends progress details.
// ProgressFunc is synchronous/blocking and should be defined to complete quickly.
type ProgressFunc func(context.Context, EpisodeResult)

// Rewards extracts the recorded reward of each result, in order.
func Rewards(results []EpisodeResult) []float64 {
	rewards := make([]float64, len(results))
	for i, r := range results {
		rewards[i] = r.Reward
	}
	return rewards
}

// Train runs cfg.Episodes episodes of epsilon-greedy Q-learning on @env, sharing the agent's
// table across all of them. Epsilon and alpha decay every tick. Training stops early when
// @ctx is done; the results gathered so far are returned. @stats and @progressFn may be nil.
func Train(
	ctx context.Context,
	env *environment.Env,
	agent *Agent,
	cfg *TrainingConfig,
	stats *Stats,
	progressFn ProgressFunc,
) ([]EpisodeResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, _ := cfg.EpisodeTimeout()

	epsilon := cfg.NewSchedule("epsilon", 1.0, 0.00013, 0.01)
	alpha := cfg.NewSchedule("alpha", 1.0, 0.00013, 0.01)
	gamma := cfg.GetHyperParamOrDefault("gamma", 0.8)

	if env.Rendering() && cfg.SnapshotEvery > 0 {
		if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
			return nil, fmt.Errorf("snapshot dir: %w", err)
		}
	}

	results := make([]EpisodeResult, 0, cfg.Episodes)
	var finishes []int
	start := time.Now()

	for ep := 0; ep < cfg.Episodes; ep++ {
		if ctx.Err() != nil {
			break
		}
		if cfg.LogEvery > 0 && ep%cfg.LogEvery == 0 {
			log.Printf("episode %d, %d states", ep, agent.Table().Len())
		}

		result, err := runEpisode(ctx, env, agent, ep, epsilon, alpha, gamma, timeout, cfg)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if result.Finished {
			finishes = append(finishes, ep)
		}

		if env.Rendering() && cfg.SnapshotEvery > 0 && ep%cfg.SnapshotEvery == 0 {
			path := filepath.Join(cfg.SnapshotDir, fmt.Sprintf("episode_%06d.png", ep))
			if err := report.RenderFrame(path, env.Track(), env.Car(), env.Readings()); err != nil {
				return results, err
			}
		}

		if stats != nil {
			stats.Record(result)
		}
		if progressFn != nil {
			progressFn(ctx, result)
		}
	}

	log.Printf("finish crossings at episodes: %v", finishes)
	log.Printf("trained %d episodes in %v", len(results), time.Since(start))
	return results, nil
}

func runEpisode(
	ctx context.Context,
	env *environment.Env,
	agent *Agent,
	ep int,
	epsilon, alpha *Schedule,
	gamma float64,
	timeout time.Duration,
	cfg *TrainingConfig,
) (EpisodeResult, error) {
	ts := env.Reset()
	started := time.Now()

	result := EpisodeResult{Episode: ep, Outcome: ts.Outcome}
	maxReward := math.Inf(-1)
	stepped := false

	noteFinish := func(finish int) {
		if finish == 1 && !result.Finished {
			result.Finished = true
			log.Printf("Touched finish at ep: %d", ep)
		}
	}
	noteFinish(env.Car().HasTouchedFinish())

	for env.Car().Alive() {
		if ctx.Err() != nil {
			result.Outcome = environment.Cancelled
			break
		}
		if timeout > 0 && time.Since(started) > timeout {
			result.Outcome = environment.Timeout
			break
		}
		if cfg.MaxTicks > 0 && ts.Number >= cfg.MaxTicks {
			result.Outcome = environment.TickLimit
			break
		}

		eps := epsilon.Step()
		lr := alpha.Step()

		state := env.State()
		action := agent.SelectAction(state, eps)
		next, err := env.Step(action)
		if err != nil {
			return result, err
		}
		agent.Update(state, action, next.Reward, next.State, lr, gamma)

		maxReward = math.Max(maxReward, next.Reward)
		result.FinalReward = next.Reward
		result.Outcome = next.Outcome
		stepped = true
		noteFinish(next.Finish)
		ts = next
	}

	result.Ticks = ts.Number
	result.Epsilon = epsilon.Value
	result.Alpha = alpha.Value
	switch {
	case !stepped:
		result.Reward = 0
	case cfg.Record == "final":
		result.Reward = result.FinalReward
	default:
		result.Reward = maxReward
	}
	return result, nil
}
