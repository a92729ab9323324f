// Package report writes the training artifacts: the reward-over-episodes plot and
// PNG snapshots of the car on its track.
package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// MEAN_WINDOW is the number of episodes averaged by the trend line.
const MEAN_WINDOW = 100

var ErrNoRewards = errors.New("no rewards to plot")

// SaveRewardPlot draws one point per episode plus a trailing mean, and saves the plot to
// @path. The image format follows the file extension.
func SaveRewardPlot(path string, rewards []float64) error {
	if len(rewards) == 0 {
		return ErrNoRewards
	}

	p := plot.New()
	p.Title.Text = "Reward per episode"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Reward"

	pts := make(plotter.XYs, len(rewards))
	for i, r := range rewards {
		pts[i] = plotter.XY{X: float64(i), Y: r}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("reward plot: %w", err)
	}
	line.Color = color.NRGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("reward", line)

	mean, err := plotter.NewLine(TrailingMean(rewards, MEAN_WINDOW))
	if err != nil {
		return fmt.Errorf("reward plot: %w", err)
	}
	mean.Color = color.NRGBA{R: 214, G: 39, B: 40, A: 255}
	mean.Width = vg.Points(2)
	p.Add(mean)
	p.Legend.Add(fmt.Sprintf("mean(%d)", MEAN_WINDOW), mean)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("reward plot: %w", err)
	}
	return nil
}

// TrailingMean averages each reward with up to @window-1 predecessors.
func TrailingMean(rewards []float64, window int) plotter.XYs {
	pts := make(plotter.XYs, len(rewards))
	for i := range rewards {
		lo := max(0, i-window+1)
		pts[i] = plotter.XY{X: float64(i), Y: stat.Mean(rewards[lo:i+1], nil)}
	}
	return pts
}
