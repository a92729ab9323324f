package views

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"qcar/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const (
	CHART_POINTS = 200
	chartWidth   = 600
	chartHeight  = 200
)

// RewardChart is an svg polyline of the recorded rewards of the most recent episodes,
// rescaled on every update to span the chart height.
type RewardChart struct {
	id      string
	rewards []float64
	updates <-chan []fastview.EleUpdate
}

func NewRewardChart(
	done <-chan struct{},
	episodes <-chan Episode,
) *RewardChart {
	rc := &RewardChart{
		id:      "rewardchart",
		rewards: make([]float64, 0, CHART_POINTS),
	}
	rc.updates = channerics.Convert(done, episodes, rc.onUpdate)
	return rc
}

func (rc *RewardChart) Updates() <-chan []fastview.EleUpdate {
	return rc.updates
}

// onUpdate runs on the single Convert goroutine, so the reward window needs no lock.
func (rc *RewardChart) onUpdate(ep Episode) []fastview.EleUpdate {
	if len(rc.rewards) == CHART_POINTS {
		copy(rc.rewards, rc.rewards[1:])
		rc.rewards = rc.rewards[:CHART_POINTS-1]
	}
	rc.rewards = append(rc.rewards, ep.Reward)

	minVal, maxVal := bounds(rc.rewards)
	return []fastview.EleUpdate{
		{
			EleId: rc.id + "-line",
			Ops:   []fastview.Op{{Key: "points", Value: polyPoints(rc.rewards, minVal, maxVal)}},
		},
		{
			EleId: rc.id + "-max",
			Ops:   []fastview.Op{{Key: "textContent", Value: fmt.Sprintf("%.1f", maxVal)}},
		},
		{
			EleId: rc.id + "-min",
			Ops:   []fastview.Op{{Key: "textContent", Value: fmt.Sprintf("%.1f", minVal)}},
		},
	}
}

func bounds(vals []float64) (minVal, maxVal float64) {
	minVal, maxVal = math.MaxFloat64, -math.MaxFloat64
	for _, v := range vals {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return
}

// polyPoints maps @vals onto the chart: x by index across the full width, y inverted for svg
// so that @maxVal is at the top. A flat series is drawn across the middle.
func polyPoints(vals []float64, minVal, maxVal float64) string {
	xstep := float64(chartWidth) / float64(CHART_POINTS-1)
	span := maxVal - minVal

	var sb strings.Builder
	for i, v := range vals {
		y := float64(chartHeight) / 2
		if span > 0 {
			y = float64(chartHeight) * (1 - (v-minVal)/span)
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d,%d", int(float64(i)*xstep), int(y))
	}
	return sb.String()
}

// Parse defines the chart's svg with an empty line.
func (rc *RewardChart) Parse(
	t *template.Template,
) (name string, err error) {
	name = rc.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px; font-family: monospace;">
			<div>Recorded reward, last ` + fmt.Sprintf("%d", CHART_POINTS) + ` episodes</div>
			<div>max <span id="` + rc.id + `-max">-</span></div>
			<svg id="` + rc.id + `" xmlns='http://www.w3.org/2000/svg'
				width="` + fmt.Sprintf("%d", chartWidth) + `px"
				height="` + fmt.Sprintf("%d", chartHeight) + `px"
				style="border: 1px solid lightgrey;">
				<polyline id="` + rc.id + `-line" points="" fill="none" stroke="blue" stroke-width="1"/>
			</svg>
			<div>min <span id="` + rc.id + `-min">-</span></div>
		</div>
		{{ end }}`)
	return
}
