package cell_views

import (
	"fmt"
	"html/template"

	"qmaze/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// MazeGrid shows the maze as an svg grid: walls, target, the agent, and per open cell the
// state value (as text and as a heat color) and the greedy action (as an arrow).
type MazeGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewMazeGrid(
	done <-chan struct{},
	grids <-chan Grid,
) (mg *MazeGrid) {
	// Hyphens interfere with html/template's `template` directive.
	mg = &MazeGrid{id: "mazegrid"}
	mg.updates = channerics.Convert(done, grids, mg.onUpdate)
	return
}

func (mg *MazeGrid) Updates() <-chan []fastview.EleUpdate {
	return mg.updates
}

func cellId(kind string, cell Cell) string {
	return fmt.Sprintf("%s-%d-%d", kind, cell.Col, cell.Row)
}

// onUpdate returns the ele-updates needed for the view to reflect grid.
func (mg *MazeGrid) onUpdate(grid Grid) (ops []fastview.EleUpdate) {
	for _, col := range grid.Cells {
		for _, cell := range col {
			if !cell.Open {
				continue
			}
			ops = append(ops,
				fastview.EleUpdate{
					EleId: cellId("cell", cell),
					Ops:   []fastview.Op{{Key: "fill", Value: cell.Fill}},
				},
				fastview.EleUpdate{
					EleId: cellId("value", cell),
					Ops:   []fastview.Op{{Key: fastview.TextContent, Value: fmt.Sprintf("%.2f", cell.Value)}},
				},
				fastview.EleUpdate{
					EleId: cellId("arrow", cell),
					Ops:   []fastview.Op{{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.Arrow)}},
				})
		}
	}

	ops = append(ops, fastview.EleUpdate{
		EleId: "agent",
		Ops: []fastview.Op{
			{Key: "cx", Value: fmt.Sprintf("%d", grid.AgentX)},
			{Key: "cy", Value: fmt.Sprintf("%d", grid.AgentY)},
		},
	})
	return
}

// Parse defines the grid's template in t and returns its name. It relies on the parent's "add".
func (mg *MazeGrid) Parse(t *template.Template) (name string, err error) {
	name = mg.id
	dim := fmt.Sprintf("%d", cellDim)
	half := fmt.Sprintf("%d", cellDim/2)
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			<svg id="` + mg.id + `-svg" xmlns='http://www.w3.org/2000/svg'
				width="{{ add .Width 1 }}px"
				height="{{ add .Height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $col := .Cells }}
					{{ range $cell := $col }}
					<g>
						<rect id="cell-{{ $cell.Col }}-{{ $cell.Row }}"
							x="{{ $cell.X }}"
							y="{{ $cell.Y }}"
							width="` + dim + `"
							height="` + dim + `"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						{{ if $cell.Open }}
						<text id="value-{{ $cell.Col }}-{{ $cell.Row }}"
							x="{{ add $cell.X ` + half + ` }}"
							y="{{ add $cell.Y 14 }}"
							font-size="10"
							text-anchor="middle"
							>{{ printf "%.2f" $cell.Value }}</text>
						<g transform="translate({{ add $cell.X ` + half + ` }}, {{ add $cell.Y 32 }})">
							<text id="arrow-{{ $cell.Col }}-{{ $cell.Row }}"
							stroke="blue" stroke-width="1"
							dominant-baseline="central" text-anchor="middle"
							transform="rotate({{ $cell.Arrow }})"
							>&uarr;</text>
						</g>
						{{ end }}
					</g>
					{{ end }}
				{{ end }}
				<circle id="agent" cx="{{ .AgentX }}" cy="{{ .AgentY }}" r="10" fill="royalblue"/>
			</svg>
		</div>
		{{ end }}`)
	return
}
