package root_view

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"qmaze/models"
	"qmaze/server/cell_views"
	"qmaze/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// batchRate is how long ele-updates are coalesced before being sent on.
const batchRate = 20 * time.Millisecond

// RootView is the main page's index.html: the container for all the view components and
// the wiring for their channels.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView creates the main page and the views it contains.
func NewRootView(
	ctx context.Context,
	snapshots <-chan models.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[models.Snapshot, cell_views.Grid]().
		WithContext(ctx).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			grids <-chan cell_views.Grid) fastview.ViewComponent {
			return cell_views.NewMazeGrid(done, grids)
		}).
		WithView(func(
			done <-chan struct{},
			grids <-chan cell_views.Grid) fastview.ViewComponent {
			return cell_views.NewStatsView(done, grids)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("root view: %w", err)
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views, batchRate),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		var tname string
		if tname, err = vc.Parse(rt); err != nil {
			return
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>qmaze</title>
			<link rel="icon" href="data:,">
			<!--Client bootstrap: the server pushes ele-updates over the websocket.-->
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
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
		<body style="display: flex;">
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single, batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		rate)
}

// batchify coalesces updates, keeping only the latest update per ele-id, and offers the
// batch downstream once per rate period. Source is drained while the consumer is busy, so a
// slow consumer receives fewer, fuller batches rather than stale ones.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		// order keeps batches deterministic: ele-ids in first-seen order.
		order := []string{}
		due := false
		ticker := channerics.NewTicker(done, rate)
		for {
			var (
				out   chan<- []fastview.EleUpdate
				batch []fastview.EleUpdate
			)
			if due && len(order) > 0 {
				out = output
				batch = make([]fastview.EleUpdate, 0, len(order))
				for _, id := range order {
					batch = append(batch, data[id])
				}
			}

			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					return
				}
				for _, update := range updates {
					if _, seen := data[update.EleId]; !seen {
						order = append(order, update.EleId)
					}
					data[update.EleId] = update
				}
			case <-ticker:
				due = true
			case out <- batch:
				data = map[string]fastview.EleUpdate{}
				order = order[:0]
				due = false
			}
		}
	}()

	return output
}
