package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"time"

	"qcar/environment"
	"qcar/track"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	ErrRecordMode  = errors.New("record must be \"max\" or \"final\"")
	ErrBorderColor = errors.New("borderColor must have 3 or 4 components")
	ErrNoEpisodes  = errors.New("episodes must be positive")
	ErrCarConfig   = errors.New("invalid car config")
)

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds the learning parameters and the track/car setup of a run.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// TrainingDeadline bounds the whole run, e.g. {duration: 10m}.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
	Episodes         int               `yaml:"episodes"`
	// EpisodeDeadline is the wall-clock limit of a single episode, as a duration string.
	EpisodeDeadline string `yaml:"episodedeadline"`
	// MaxTicks bounds an episode by simulation ticks; 0 means no bound.
	MaxTicks int    `yaml:"maxticks"`
	Seed     uint64 `yaml:"seed"`
	// Record selects which reward of an episode is kept for the plot: "max" or "final".
	Record        string             `yaml:"record"`
	LogEvery      int                `yaml:"logevery"`
	SnapshotEvery int                `yaml:"snapshotevery"`
	SnapshotDir   string             `yaml:"snapshotdir"`
	Track         TrackConfig        `yaml:"track"`
	Environment   environment.Config `yaml:"environment"`
}

type TrackConfig struct {
	Path        string  `yaml:"path"`
	BorderColor []uint8 `yaml:"bordercolor"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// DefaultTrainingConfig mirrors the constants of the radar-reward training script.
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		HyperParams: []HyperParameter{
			{Key: "epsilon", Val: 1.0},
			{Key: "epsilonDecay", Val: 0.00013},
			{Key: "epsilonMin", Val: 0.01},
			{Key: "alpha", Val: 1.0},
			{Key: "alphaDecay", Val: 0.00013},
			{Key: "alphaMin", Val: 0.01},
			{Key: "gamma", Val: 0.8},
		},
		Episodes:        2000,
		EpisodeDeadline: "30s",
		Seed:            1,
		Record:          "max",
		LogEvery:        500,
		SnapshotDir:     "frames",
		Track:           TrackConfig{Path: "tracks/track01.png"},
		Environment:     environment.DefaultConfig(),
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// EpisodeTimeout parses EpisodeDeadline. An empty deadline means none.
func (cfg *TrainingConfig) EpisodeTimeout() (time.Duration, error) {
	if cfg.EpisodeDeadline == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(cfg.EpisodeDeadline)
	if err != nil {
		return 0, fmt.Errorf("episode deadline: %w", err)
	}
	return d, nil
}

// Border returns the configured wall color, white when unset.
func (tc TrackConfig) Border() (color.NRGBA, error) {
	switch len(tc.BorderColor) {
	case 0:
		return track.White, nil
	case 3:
		return color.NRGBA{R: tc.BorderColor[0], G: tc.BorderColor[1], B: tc.BorderColor[2], A: 255}, nil
	case 4:
		return color.NRGBA{R: tc.BorderColor[0], G: tc.BorderColor[1], B: tc.BorderColor[2], A: tc.BorderColor[3]}, nil
	}
	return color.NRGBA{}, fmt.Errorf("%w: %v", ErrBorderColor, tc.BorderColor)
}

// Validate checks the fields the driver cannot default.
func (cfg *TrainingConfig) Validate() error {
	if cfg.Episodes <= 0 {
		return ErrNoEpisodes
	}
	if cfg.Record != "max" && cfg.Record != "final" {
		return fmt.Errorf("%w: %q", ErrRecordMode, cfg.Record)
	}
	if _, err := cfg.EpisodeTimeout(); err != nil {
		return err
	}
	if _, err := cfg.Track.Border(); err != nil {
		return err
	}
	return cfg.validateCar()
}

// validateCar rejects car and radar settings that would yield non-finite rewards.
func (cfg *TrainingConfig) validateCar() error {
	car, radar := cfg.Environment.Car, cfg.Environment.Radar
	switch {
	case car.Size <= 0:
		return fmt.Errorf("%w: size %v must be positive", ErrCarConfig, car.Size)
	case car.MaxSpeed < car.MinSpeed:
		return fmt.Errorf("%w: maxSpeed %v below minSpeed %v", ErrCarConfig, car.MaxSpeed, car.MinSpeed)
	case radar.MaxLength < 0:
		return fmt.Errorf("%w: radar maxLength %v is negative", ErrCarConfig, radar.MaxLength)
	}
	return nil
}

// FromYaml reads a kind/def config file. The def section is decoded over the defaults,
// so a file only needs the keys it changes. Viper folds keys to lower case, hence the
// lower case yaml tags throughout the config structs.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	innerConfig := DefaultTrainingConfig()
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err = innerConfig.Validate(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}
