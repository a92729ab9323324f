/*
Qcar trains a tabular Q-learning agent to drive a small car around a rasterized track. The car
sees only its integer position; the agent learns, by trial and error, which of five actions
(no-op, decelerate, accelerate, turn left, turn right) to take there. Walls are the border-colored
pixels of the track image and two green pixels mark the start/finish line.

Training progress can be watched live in a browser (-addr), recorded to a SQLite history (-history),
and the learned table saved and reloaded between runs (-save, -load). A reward plot is written
at the end.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"time"

	"qcar/environment"
	"qcar/history"
	"qcar/reinforcement"
	"qcar/report"
	"qcar/server"
	"qcar/track"

	"golang.org/x/sync/errgroup"
)

const defaultConfigPath = "./config.yaml"

// Pixel size of the squares of the debug policy printout.
const POLICY_CELL = 10

type options struct {
	configPath  string
	trackPath   string
	loadTable   string
	saveTable   string
	plotPath    string
	historyPath string
	addr        string
	episodes    int
	debug       bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fset := flag.NewFlagSet("qcar", flag.ContinueOnError)
	fset.StringVar(&opts.configPath, "config", defaultConfigPath, "training config yaml")
	fset.StringVar(&opts.trackPath, "track", "", "track image, overrides the config")
	fset.StringVar(&opts.loadTable, "load", "", "load a saved action-value table before training")
	fset.StringVar(&opts.saveTable, "save", "", "save the action-value table after training")
	fset.StringVar(&opts.plotPath, "plot", "rewards.png", "reward plot output; empty to skip")
	fset.StringVar(&opts.historyPath, "history", "", "sqlite file recording runs and episodes")
	fset.StringVar(&opts.addr, "addr", "", "serve live training progress on this address, e.g. :8080")
	fset.IntVar(&opts.episodes, "episodes", 0, "number of episodes, overrides the config")
	fset.BoolVar(&opts.debug, "debug", false, "log every episode and print the learned policy")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// loadConfig reads the config file. A missing default config falls back to the built-in defaults.
func loadConfig(opts *options) (*reinforcement.TrainingConfig, error) {
	cfg, err := reinforcement.FromYaml(opts.configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || opts.configPath != defaultConfigPath {
			return nil, err
		}
		log.Printf("no %s, using defaults", defaultConfigPath)
		cfg = reinforcement.DefaultTrainingConfig()
	}

	if opts.trackPath != "" {
		cfg.Track.Path = opts.trackPath
	}
	if opts.episodes > 0 {
		cfg.Episodes = opts.episodes
	}
	if opts.debug {
		cfg.LogEvery = 1
	}
	return cfg, cfg.Validate()
}

// progressHook records each episode to the optional history and offers it to the optional server.
// The offer never blocks; results are dropped while no page is watching.
type progressHook struct {
	store   *history.Store
	runID   string
	results chan reinforcement.EpisodeResult
	err     error
}

func (hook *progressHook) onEpisode(ctx context.Context, result reinforcement.EpisodeResult) {
	if hook.store != nil && hook.err == nil {
		hook.err = hook.store.RecordEpisode(hook.runID, result)
	}
	if hook.results != nil {
		select {
		case hook.results <- result:
		case <-ctx.Done():
		default:
		}
	}
}

func runApp(ctx context.Context, opts *options) (err error) {
	var cfg *reinforcement.TrainingConfig
	if cfg, err = loadConfig(opts); err != nil {
		return
	}

	border, err := cfg.Track.Border()
	if err != nil {
		return
	}
	var trk *track.Track
	if trk, err = track.Load(cfg.Track.Path, border); err != nil {
		return
	}
	if !trk.HasStartLine() {
		log.Printf("no start line markers in %s, starting at the origin", cfg.Track.Path)
	}

	var env *environment.Env
	if env, err = environment.New(trk, cfg.Environment); err != nil {
		return
	}

	table := reinforcement.NewTable()
	if opts.loadTable != "" {
		if err = table.LoadFile(opts.loadTable); err != nil {
			return
		}
		log.Printf("loaded %d states from %s", table.Len(), opts.loadTable)
	}
	agent := reinforcement.NewAgent(table, cfg.Seed)
	stats := reinforcement.NewStats()

	hook := &progressHook{}
	if opts.historyPath != "" {
		if hook.store, err = history.Open(opts.historyPath); err != nil {
			return
		}
		defer hook.store.Close()
		if hook.runID, err = hook.store.StartRun(cfg); err != nil {
			return
		}
		log.Printf("recording run %s to %s", hook.runID, opts.historyPath)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	trainingCtx, cancelTraining, err := cfg.WithTrainingDeadline(groupCtx)
	if err != nil {
		return
	}
	defer cancelTraining()

	// The server lives as long as training does.
	serverCtx, stopServer := context.WithCancel(groupCtx)
	defer stopServer()
	if opts.addr != "" {
		hook.results = make(chan reinforcement.EpisodeResult, 1)
		var srv *server.Server
		if srv, err = server.NewServer(serverCtx, opts.addr, stats, hook.results); err != nil {
			return
		}
		group.Go(func() error {
			return srv.Serve(serverCtx)
		})
	}

	var results []reinforcement.EpisodeResult
	group.Go(func() (trainErr error) {
		defer stopServer()
		results, trainErr = reinforcement.Train(trainingCtx, env, agent, cfg, stats, hook.onEpisode)
		return
	})

	if err = group.Wait(); err != nil {
		return
	}
	if hook.err != nil {
		return fmt.Errorf("history: %w", hook.err)
	}

	snap := stats.Snapshot()
	log.Printf("episodes: %d  finishes: %d  best reward: %.2f  states: %d",
		snap.Episodes, snap.Finishes, snap.BestReward, table.Len())

	if opts.debug {
		if err = table.ShowValues(os.Stdout); err != nil {
			return
		}
		if err = table.ShowPolicy(os.Stdout, trk.Width(), trk.Height(), POLICY_CELL); err != nil {
			return
		}
	}

	if opts.plotPath != "" && len(results) > 0 {
		if err = report.SaveRewardPlot(opts.plotPath, reinforcement.Rewards(results)); err != nil {
			return
		}
		log.Printf("reward plot written to %s", opts.plotPath)
	}
	if opts.saveTable != "" {
		if err = table.SaveFile(opts.saveTable); err != nil {
			return
		}
		log.Printf("table saved to %s", opts.saveTable)
	}
	return
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := runApp(ctx, opts); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
	log.Printf("done in %v", time.Since(start))
}
