// cell_views contains views derived from the Grid view-model.
package cell_views

import (
	"fmt"
	"math"

	"qmaze/maze"
	"qmaze/models"
)

// cellDim is the height and width of a cell in pixels.
const cellDim = 48

// Cell is the view-model of one maze square. Fields are immediately usable as view
// parameters; X and Y are already in svg pixels.
type Cell struct {
	// Col and Row are the maze coordinates; Row grows downward like maze Y.
	Col, Row int
	X, Y     int
	Value    float64
	// Arrow is the svg rotation, in degrees, of an upward arrow pointing along the greedy action.
	Arrow int
	Fill  string
	Open  bool
}

// Stats are preformatted episode statistics.
type Stats struct {
	Phase   string
	Episode string
	Steps   string
	Reward  string
	Epsilon string
}

// Grid is the view-model shared by every view on the page. Cells are indexed [col][row].
type Grid struct {
	Cells          [][]Cell
	Width, Height  int
	AgentX, AgentY int
	Stats          Stats
}

// Convert transforms a snapshot into the Grid view-model. Open cells are shaded by value
// relative to the current min and max, from red (low) to green (high).
func Convert(snap models.Snapshot) (grid Grid) {
	frame := snap.Frame
	size := frame.Size
	minVal, maxVal := valueRange(frame, snap.Values)

	grid.Cells = make([][]Cell, size)
	for x := 0; x < size; x++ {
		grid.Cells[x] = make([]Cell, size)
		for y := 0; y < size; y++ {
			loc := maze.Location{X: x, Y: y}
			obs := x*size + y
			cell := Cell{
				Col: x,
				Row: y,
				X:   x * cellDim,
				Y:   y * cellDim,
			}
			if obs < len(snap.Values) {
				cell.Value = snap.Values[obs]
			}
			if obs < len(snap.Policy) {
				cell.Arrow = getDegrees(snap.Policy[obs])
			}
			cell.Open = !frame.Blocked(loc) && loc != frame.Target
			cell.Fill = getFill(frame, loc, cell.Value, minVal, maxVal)
			grid.Cells[x][y] = cell
		}
	}

	grid.Width = size * cellDim
	grid.Height = size * cellDim
	grid.AgentX = frame.Agent.X*cellDim + cellDim/2
	grid.AgentY = frame.Agent.Y*cellDim + cellDim/2
	grid.Stats = Stats{
		Phase:   string(snap.Phase),
		Episode: fmt.Sprintf("%d", snap.Episode),
		Steps:   fmt.Sprintf("%d", snap.Steps),
		Reward:  fmt.Sprintf("%.0f", snap.Reward),
		Epsilon: fmt.Sprintf("%.4f", snap.Epsilon),
	}
	return
}

// valueRange returns the min and max values over open cells.
func valueRange(frame maze.Frame, values []float64) (minVal, maxVal float64) {
	minVal, maxVal = math.MaxFloat64, -math.MaxFloat64
	for obs, v := range values {
		loc := maze.Location{X: obs / frame.Size, Y: obs % frame.Size}
		if frame.Blocked(loc) || loc == frame.Target {
			continue
		}
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if minVal > maxVal {
		return 0, 0
	}
	return
}

// getDegrees maps an action to the rotation of an upward arrow. Maze Y grows downward in
// svg coordinates, so Up points down the page.
func getDegrees(action maze.Action) int {
	switch action {
	case maze.Left:
		return 270
	case maze.Down:
		return 0
	case maze.Right:
		return 90
	case maze.Up:
		return 180
	}
	return 0
}

func getFill(frame maze.Frame, loc maze.Location, value, minVal, maxVal float64) string {
	switch {
	case frame.Blocked(loc):
		return "dimgray"
	case loc == frame.Target:
		return "lightyellow"
	}
	return heat(value, minVal, maxVal)
}

// heat returns an hsl color whose hue runs from red at minVal to green at maxVal.
func heat(value, minVal, maxVal float64) string {
	pct := 0.5
	if maxVal > minVal {
		pct = (value - minVal) / (maxVal - minVal)
	}
	return fmt.Sprintf("hsl(%d, 70%%, 80%%)", int(120*pct))
}
