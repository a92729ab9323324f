package views

import (
	"context"
	"html/template"
	"time"

	"qcar/reinforcement"
	"qcar/server/fastview"
)

// Updates from all views are batched over this window before publishing.
const batchRate = time.Millisecond * 20

// RootView is the main page: the container for the view components and the
// websocket bootstrap that applies their ele-updates.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView builds the views over @results. Each result is paired with the stats
// read through @statsFn when it is converted.
func NewRootView(
	ctx context.Context,
	results <-chan reinforcement.EpisodeResult,
	statsFn func() reinforcement.StatsSnapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[reinforcement.EpisodeResult, Episode]().
		WithContext(ctx).
		WithModel(results, func(r reinforcement.EpisodeResult) Episode {
			return NewEpisode(r, statsFn())
		}).
		WithView(func(done <-chan struct{}, episodes <-chan Episode) fastview.ViewComponent {
			return NewProgress(done, episodes)
		}).
		WithView(func(done <-chan struct{}, episodes <-chan Episode) fastview.ViewComponent {
			return NewRewardChart(done, episodes)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		views:   views,
		updates: fastview.FanIn(ctx.Done(), views, batchRate),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(parent)
		if parseErr != nil {
			return "", parseErr
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<title>qcar training</title>
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// Apply pushed ele-updates by element id.
				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = parent.Parse(indexTemplate)
	return
}
