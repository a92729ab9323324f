package reinforcement

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qcar/car"
	"qcar/environment"
	"qcar/track"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	Convey("Given an empty table", t, func() {
		table := NewTable()
		s := environment.State{X: 3, Y: 4}

		Convey("Unseen states read as zero without being inserted by Lookup", func() {
			q, ok := table.Lookup(s)
			So(ok, ShouldBeFalse)
			So(q, ShouldResemble, ActionValues{})
			So(table.Len(), ShouldEqual, 0)
		})

		Convey("GetOrInsert inserts the zero vector", func() {
			So(table.GetOrInsert(s), ShouldResemble, ActionValues{})
			_, ok := table.Lookup(s)
			So(ok, ShouldBeTrue)
			So(table.Len(), ShouldEqual, 1)
		})

		Convey("ArgMax breaks ties toward the first action", func() {
			So(table.ArgMax(s), ShouldEqual, 0)
			table.Set(s, car.ACCELERATE, 2)
			table.Set(s, car.TURN_RIGHT, 2)
			So(table.ArgMax(s), ShouldEqual, car.ACCELERATE)
			So(table.Max(s), ShouldEqual, 2)
		})

		Convey("A saved table loads back with the same values", func() {
			table.Set(s, car.TURN_LEFT, -1.5)
			table.Set(environment.State{X: 9, Y: 9}, car.NO_OP, 7)

			var buf bytes.Buffer
			So(table.Save(&buf), ShouldBeNil)
			loaded := NewTable()
			So(loaded.Load(&buf), ShouldBeNil)
			So(loaded.Len(), ShouldEqual, 2)
			q, _ := loaded.Lookup(s)
			So(q[car.TURN_LEFT], ShouldEqual, -1.5)

			path := filepath.Join(t.TempDir(), "q.gob")
			So(table.SaveFile(path), ShouldBeNil)
			fromFile := NewTable()
			So(fromFile.LoadFile(path), ShouldBeNil)
			So(fromFile.Max(environment.State{X: 9, Y: 9}), ShouldEqual, 7)
		})

		Convey("Loading garbage is an error", func() {
			So(table.Load(bytes.NewBufferString("not a gob")), ShouldNotBeNil)
			So(table.LoadFile(filepath.Join(t.TempDir(), "missing.gob")), ShouldNotBeNil)
		})
	})
}

func TestAgent(t *testing.T) {
	Convey("Given an agent", t, func() {
		agent := NewAgent(NewTable(), 42)
		s := environment.State{X: 1, Y: 1}
		next := environment.State{X: 2, Y: 1}

		Convey("Update satisfies the Q-learning identity exactly", func() {
			for _, tc := range []struct{ alpha, gamma float64 }{{0, 0}, {0.5, 0.8}, {1, 1}, {0.13, 0.37}} {
				agent.Table().Set(s, car.ACCELERATE, 3.25)
				agent.Table().Set(next, car.TURN_LEFT, 11)
				old := 3.25
				r := -4.0
				agent.Update(s, car.ACCELERATE, r, next, tc.alpha, tc.gamma)
				q, _ := agent.Table().Lookup(s)
				So(q[car.ACCELERATE], ShouldEqual, old+tc.alpha*(r+tc.gamma*11-old))
			}
		})

		Convey("Updating from unseen states starts from zero", func() {
			agent.Update(s, car.NO_OP, 10, next, 0.5, 0.9)
			q, _ := agent.Table().Lookup(s)
			So(q[car.NO_OP], ShouldEqual, 5)
		})

		Convey("Greedy selection on a visited state takes the argmax", func() {
			agent.Table().Set(s, car.TURN_RIGHT, 1)
			for i := 0; i < 20; i++ {
				So(agent.SelectAction(s, 0), ShouldEqual, car.TURN_RIGHT)
			}
		})

		Convey("Greedy selection on an unvisited state stays in the reduced subset", func() {
			for i := 0; i < 200; i++ {
				a := agent.SelectAction(environment.State{X: i, Y: -i}, 0)
				So(a, ShouldBeBetweenOrEqual, 0, EXPLORE_ACTIONS-1)
			}
		})

		Convey("Full exploration covers every action", func() {
			seen := map[int]bool{}
			for i := 0; i < 1000; i++ {
				seen[agent.SelectAction(s, 1)] = true
			}
			So(len(seen), ShouldEqual, car.NUM_ACTIONS)
		})
	})
}

func TestSchedule(t *testing.T) {
	Convey("A schedule decays linearly to its floor", t, func() {
		s := &Schedule{Value: 1, Decay: 0.25, Floor: 0.4}
		So(s.Step(), ShouldEqual, 0.75)
		So(s.Step(), ShouldEqual, 0.5)
		So(s.Step(), ShouldEqual, 0.4)
		So(s.Step(), ShouldEqual, 0.4)
	})

	Convey("Schedules read their parameters from the hyper-parameters", t, func() {
		cfg := &TrainingConfig{HyperParams: []HyperParameter{{Key: "alphaDecay", Val: 0.5}}}
		s := cfg.NewSchedule("alpha", 1, 0.1, 0.01)
		So(s.Value, ShouldEqual, 1)
		So(s.Decay, ShouldEqual, 0.5)
		So(s.Floor, ShouldEqual, 0.01)
	})
}

const testConfig = `kind: training
def:
  episodes: 10
  episodeDeadline: 5s
  record: final
  trainingDeadline:
    duration: 1m
  hyperParams:
    - key: gamma
      val: 0.5
  track:
    path: tracks/test.png
    borderColor: [0, 0, 0]
  environment:
    reward: normalized
    car:
      size: 10
`

func TestConfig(t *testing.T) {
	Convey("When reading a config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")

		Convey("The def section is decoded over the defaults", func() {
			So(os.WriteFile(path, []byte(testConfig), 0o644), ShouldBeNil)
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.Episodes, ShouldEqual, 10)
			So(cfg.Record, ShouldEqual, "final")
			So(cfg.GetHyperParamOrDefault("gamma", 0.8), ShouldEqual, 0.5)
			So(cfg.GetHyperParamOrDefault("epsilon", 0.7), ShouldEqual, 0.7)
			So(cfg.Track.Path, ShouldEqual, "tracks/test.png")
			So(cfg.Environment.Reward, ShouldEqual, "normalized")
			So(cfg.Environment.Car.Size, ShouldEqual, 10)
			So(cfg.Environment.Car.MaxSpeed, ShouldEqual, 30)

			border, err := cfg.Track.Border()
			So(err, ShouldBeNil)
			So(border, ShouldResemble, color.NRGBA{A: 255})

			timeout, err := cfg.EpisodeTimeout()
			So(err, ShouldBeNil)
			So(timeout, ShouldEqual, 5*time.Second)

			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			_, hasDeadline := ctx.Deadline()
			So(hasDeadline, ShouldBeTrue)
		})

		Convey("A missing file is an error", func() {
			_, err := FromYaml(filepath.Join(dir, "nope.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("Invalid values are rejected", func() {
			cfg := DefaultTrainingConfig()
			cfg.Record = "mean"
			So(errors.Is(cfg.Validate(), ErrRecordMode), ShouldBeTrue)

			cfg = DefaultTrainingConfig()
			cfg.Episodes = 0
			So(cfg.Validate(), ShouldEqual, ErrNoEpisodes)

			cfg = DefaultTrainingConfig()
			cfg.Track.BorderColor = []uint8{1, 2}
			So(errors.Is(cfg.Validate(), ErrBorderColor), ShouldBeTrue)

			cfg = DefaultTrainingConfig()
			cfg.Environment.Car.Size = 0
			So(errors.Is(cfg.Validate(), ErrCarConfig), ShouldBeTrue)

			cfg = DefaultTrainingConfig()
			cfg.Environment.Car.MinSpeed = 10
			cfg.Environment.Car.MaxSpeed = 5
			So(errors.Is(cfg.Validate(), ErrCarConfig), ShouldBeTrue)

			cfg = DefaultTrainingConfig()
			cfg.Environment.Radar.MaxLength = -1
			So(errors.Is(cfg.Validate(), ErrCarConfig), ShouldBeTrue)

			So(DefaultTrainingConfig().Validate(), ShouldBeNil)

			cfg = DefaultTrainingConfig()
			cfg.TrainingDeadline = map[string]string{"duration": "soon"}
			_, _, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

// Returns a gray track with a 3 pixel white frame.
func newTrack(w, h int) *track.Track {
	gray := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			if x < 3 || y < 3 || x >= w-3 || y >= h-3 {
				img.SetNRGBA(x, y, track.White)
			} else {
				img.SetNRGBA(x, y, gray)
			}
		}
	}
	return track.New(img, track.White)
}

func TestTrain(t *testing.T) {
	Convey("Given a small open track", t, func() {
		env, err := environment.New(newTrack(200, 100), environment.DefaultConfig())
		So(err, ShouldBeNil)

		cfg := DefaultTrainingConfig()
		cfg.Episodes = 5
		cfg.MaxTicks = 20
		cfg.LogEvery = 0
		agent := NewAgent(NewTable(), cfg.Seed)
		stats := NewStats()

		Convey("Every episode is recorded and reported", func() {
			var progress []int
			results, err := Train(context.Background(), env, agent, cfg, stats,
				func(_ context.Context, r EpisodeResult) { progress = append(progress, r.Episode) })
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 5)
			So(progress, ShouldResemble, []int{0, 1, 2, 3, 4})
			So(agent.Table().Len(), ShouldBeGreaterThan, 0)

			for _, r := range results {
				So(r.Ticks, ShouldBeBetweenOrEqual, 0, 20)
				So(r.Outcome, ShouldNotEqual, environment.Running)
				So(r.Epsilon, ShouldBeLessThan, 1)
			}
			So(len(Rewards(results)), ShouldEqual, 5)

			snap := stats.Snapshot()
			So(snap.Episodes, ShouldEqual, 5)
			So(snap.Epsilon, ShouldEqual, results[4].Epsilon)
		})

		Convey("Recording the maximum never reports less than the final reward", func() {
			cfg.Episodes = 20
			cfg.Record = "max"
			results, err := Train(context.Background(), env, agent, cfg, stats, nil)
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 20)
			for _, r := range results {
				So(r.Ticks, ShouldBeGreaterThan, 0)
				So(r.Reward, ShouldBeGreaterThanOrEqualTo, r.FinalReward)
			}
		})

		Convey("Recording the final reward reports the last step's reward", func() {
			cfg.Episodes = 20
			cfg.Record = "final"
			results, err := Train(context.Background(), env, agent, cfg, stats, nil)
			So(err, ShouldBeNil)
			for _, r := range results {
				So(r.Reward, ShouldEqual, r.FinalReward)
			}
		})

		Convey("An episode past its wall-clock deadline ends before stepping and records 0", func() {
			cfg.EpisodeDeadline = "1ns"
			results, err := Train(context.Background(), env, agent, cfg, stats, nil)
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 5)
			for _, r := range results {
				So(r.Outcome, ShouldEqual, environment.Timeout)
				So(r.Ticks, ShouldEqual, 0)
				So(r.Reward, ShouldEqual, 0)
			}
		})

		Convey("Cancelling from the progress callback stops after that episode", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			results, err := Train(ctx, env, agent, cfg, stats, func(_ context.Context, r EpisodeResult) {
				if r.Episode == 1 {
					cancel()
				}
			})
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 2)
			So(stats.Snapshot().Episodes, ShouldEqual, 2)
		})

		Convey("An episode whose context ends mid-run is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			epsilon := cfg.NewSchedule("epsilon", 1.0, 0.00013, 0.01)
			alpha := cfg.NewSchedule("alpha", 1.0, 0.00013, 0.01)
			result, err := runEpisode(ctx, env, agent, 0, epsilon, alpha, 0.8, 0, cfg)
			So(err, ShouldBeNil)
			So(result.Outcome, ShouldEqual, environment.Cancelled)
			So(result.Ticks, ShouldEqual, 0)
			So(result.Reward, ShouldEqual, 0)
		})

		Convey("The stats keep a running mean of the recorded rewards", func() {
			results, err := Train(context.Background(), env, agent, cfg, stats, nil)
			So(err, ShouldBeNil)
			sum := 0.0
			for _, r := range results {
				sum += r.Reward
			}
			So(stats.Snapshot().MeanReward, ShouldAlmostEqual, sum/float64(len(results)), 1e-9)
			So(NewStats().Snapshot().MeanReward, ShouldEqual, 0)
		})

		Convey("A cancelled context stops before the first episode", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			results, err := Train(ctx, env, agent, cfg, nil, nil)
			So(err, ShouldBeNil)
			So(results, ShouldBeEmpty)
		})

		Convey("An invalid config is refused", func() {
			cfg.Episodes = 0
			_, err := Train(context.Background(), env, agent, cfg, nil, nil)
			So(err, ShouldEqual, ErrNoEpisodes)
		})
	})
}

func TestShowPolicy(t *testing.T) {
	Convey("Given a table with a few visited states", t, func() {
		table := NewTable()
		table.Set(environment.State{X: 1, Y: 1}, car.ACCELERATE, 1)
		table.Set(environment.State{X: 2, Y: 2}, car.TURN_LEFT, 5)
		table.Set(environment.State{X: 12, Y: 3}, car.TURN_RIGHT, 2)
		table.Set(environment.State{X: 5, Y: 15}, car.DECELERATE, 1)
		table.Set(environment.State{X: 99, Y: 99}, car.ACCELERATE, 1)

		Convey("Each square shows the action of its best state", func() {
			var buf bytes.Buffer
			So(table.ShowPolicy(&buf, 20, 20, 10), ShouldBeNil)
			So(buf.String(), ShouldEqual, "<>\nv \n")
		})

		Convey("Values are summarized", func() {
			var buf bytes.Buffer
			So(table.ShowValues(&buf), ShouldBeNil)
			So(buf.String(), ShouldEqual, "states: 5  min: 1.00  max: 5.00  mean: 2.00\n")
		})

		Convey("An empty table says so", func() {
			var buf bytes.Buffer
			So(NewTable().ShowValues(&buf), ShouldBeNil)
			So(buf.String(), ShouldEqual, "no visited states\n")
		})
	})
}
