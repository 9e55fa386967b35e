package cell_views

import (
	"html/template"

	"qmaze/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatsView is a table of the latest episode statistics.
type StatsView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatsView(
	done <-chan struct{},
	grids <-chan Grid,
) (sv *StatsView) {
	sv = &StatsView{id: "stats"}
	sv.updates = channerics.Convert(done, grids, sv.onUpdate)
	return
}

func (sv *StatsView) Updates() <-chan []fastview.EleUpdate {
	return sv.updates
}

func (sv *StatsView) onUpdate(grid Grid) []fastview.EleUpdate {
	text := func(id, value string) fastview.EleUpdate {
		return fastview.EleUpdate{
			EleId: sv.id + "-" + id,
			Ops:   []fastview.Op{{Key: fastview.TextContent, Value: value}},
		}
	}
	return []fastview.EleUpdate{
		text("phase", grid.Stats.Phase),
		text("episode", grid.Stats.Episode),
		text("steps", grid.Stats.Steps),
		text("reward", grid.Stats.Reward),
		text("epsilon", grid.Stats.Epsilon),
	}
}

func (sv *StatsView) Parse(t *template.Template) (name string, err error) {
	name = sv.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px; font-family: monospace;">
			<table>
				<tr><td>phase</td><td id="` + sv.id + `-phase">{{ .Stats.Phase }}</td></tr>
				<tr><td>episode</td><td id="` + sv.id + `-episode">{{ .Stats.Episode }}</td></tr>
				<tr><td>steps</td><td id="` + sv.id + `-steps">{{ .Stats.Steps }}</td></tr>
				<tr><td>reward</td><td id="` + sv.id + `-reward">{{ .Stats.Reward }}</td></tr>
				<tr><td>epsilon</td><td id="` + sv.id + `-epsilon">{{ .Stats.Epsilon }}</td></tr>
			</table>
		</div>
		{{ end }}`)
	return
}
