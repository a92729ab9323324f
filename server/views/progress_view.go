package views

import (
	"fmt"
	"html/template"

	"qcar/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Progress is a table of the latest episode and the running training stats.
type Progress struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewProgress(
	done <-chan struct{},
	episodes <-chan Episode,
) *Progress {
	p := &Progress{id: "progress"}
	p.updates = channerics.Convert(done, episodes, p.onUpdate)
	return p
}

func (p *Progress) Updates() <-chan []fastview.EleUpdate {
	return p.updates
}

func (p *Progress) eleId(field string) string {
	return p.id + "-" + field
}

func (p *Progress) onUpdate(ep Episode) []fastview.EleUpdate {
	finished := "no"
	if ep.Finished {
		finished = "yes"
	}

	fields := []struct{ key, val string }{
		{"episode", fmt.Sprintf("%d", ep.Number)},
		{"reward", formatFloat(ep.Reward)},
		{"final", formatFloat(ep.FinalReward)},
		{"ticks", fmt.Sprintf("%d", ep.Ticks)},
		{"outcome", ep.Outcome},
		{"finished", finished},
		{"episodes", fmt.Sprintf("%d", ep.Stats.Episodes)},
		{"finishes", fmt.Sprintf("%d", ep.Stats.Finishes)},
		{"best", formatFloat(ep.Stats.BestReward)},
		{"epsilon", formatFloat(ep.Stats.Epsilon)},
		{"alpha", formatFloat(ep.Stats.Alpha)},
	}

	updates := make([]fastview.EleUpdate, 0, len(fields))
	for _, f := range fields {
		updates = append(updates, fastview.EleUpdate{
			EleId: p.eleId(f.key),
			Ops:   []fastview.Op{{Key: "textContent", Value: f.val}},
		})
	}
	return updates
}

// Parse defines the progress table. The template is executed with a reinforcement.StatsSnapshot;
// per-episode cells start empty until the first update.
func (p *Progress) Parse(
	t *template.Template,
) (name string, err error) {
	name = p.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<table id="` + p.id + `" style="font-family: monospace; border-spacing: 12px 2px;">
			<tr><th colspan="2" align="left">Latest episode</th><th colspan="2" align="left">Training</th></tr>
			<tr>
				<td>episode</td><td id="` + p.eleId("episode") + `">-</td>
				<td>episodes</td><td id="` + p.eleId("episodes") + `">{{ .Episodes }}</td>
			</tr>
			<tr>
				<td>reward</td><td id="` + p.eleId("reward") + `">-</td>
				<td>finishes</td><td id="` + p.eleId("finishes") + `">{{ .Finishes }}</td>
			</tr>
			<tr>
				<td>final reward</td><td id="` + p.eleId("final") + `">-</td>
				<td>best reward</td><td id="` + p.eleId("best") + `">{{ printf "%.4f" .BestReward }}</td>
			</tr>
			<tr>
				<td>ticks</td><td id="` + p.eleId("ticks") + `">-</td>
				<td>epsilon</td><td id="` + p.eleId("epsilon") + `">{{ printf "%.4f" .Epsilon }}</td>
			</tr>
			<tr>
				<td>outcome</td><td id="` + p.eleId("outcome") + `">-</td>
				<td>alpha</td><td id="` + p.eleId("alpha") + `">{{ printf "%.4f" .Alpha }}</td>
			</tr>
			<tr>
				<td>finished</td><td id="` + p.eleId("finished") + `">-</td>
			</tr>
		</table>
		{{ end }}`)
	return
}
