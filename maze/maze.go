// Package maze is a small deterministic grid world: a fixed set of walls, a fixed start and
// goal, and four movement actions. It plays the environment role for the q-learning agent.
package maze

import (
	"errors"
	"fmt"
)

// Location is a grid cell. The observation encoding of a location is X*size + Y.
type Location struct {
	X, Y int
}

// Add returns the location displaced by delta.
func (loc Location) Add(delta Location) Location {
	return Location{X: loc.X + delta.X, Y: loc.Y + delta.Y}
}

// Action is one of the four movement directions.
type Action int

const (
	Left Action = iota
	Down
	Right
	Up

	NumActions = 4
)

// deltas maps each action to its unit displacement.
var deltas = [NumActions]Location{
	Left:  {X: -1, Y: 0},
	Down:  {X: 0, Y: -1},
	Right: {X: 1, Y: 0},
	Up:    {X: 0, Y: 1},
}

// Delta returns the displacement of the action. The action must be valid.
func (a Action) Delta() Location {
	return deltas[a]
}

// Valid reports whether a is one of the four actions.
func (a Action) Valid() bool {
	return a >= 0 && a < NumActions
}

func (a Action) String() string {
	switch a {
	case Left:
		return "left"
	case Down:
		return "down"
	case Right:
		return "right"
	case Up:
		return "up"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Rect is an axis-aligned wall in cell units: it covers cells [X, X+W) x [Y, Y+H).
type Rect struct {
	X, Y, W, H int
}

// Overlaps reports whether the unit cell at loc intersects the rectangle. Touching edges do
// not count as an intersection.
func (r Rect) Overlaps(loc Location) bool {
	return loc.X < r.X+r.W && r.X < loc.X+1 &&
		loc.Y < r.Y+r.H && r.Y < loc.Y+1
}

// Layout constants.
const (
	DefaultSize = 10

	GoalReward = 5
	StepReward = -1
)

var (
	// Start is where every episode begins.
	Start = Location{X: 7, Y: 9}
	// Target is the goal cell; reaching it terminates the episode.
	Target = Location{X: 5, Y: 5}

	// Walls is the fixed obstacle table of the maze, in cell units.
	Walls = []Rect{
		{X: 0, Y: 1, W: 1, H: 8},
		{X: 2, Y: 1, W: 8, H: 1},
		{X: 2, Y: 3, W: 1, H: 4},
		{X: 4, Y: 3, W: 3, H: 1},
		{X: 6, Y: 4, W: 1, H: 2},
		{X: 8, Y: 3, W: 1, H: 5},
		{X: 3, Y: 6, W: 5, H: 1},
		{X: 2, Y: 8, W: 7, H: 1},
	}
)

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidSize   = errors.New("invalid maze size")
	ErrRenderMode    = errors.New("unsupported render mode")
	ErrNoDisplay     = errors.New("human render mode requires a display")
)

// Info is auxiliary, non-observation data about the current state.
type Info struct {
	// Distance is the L1 distance from the agent to the target.
	Distance int
	// Collided is set on a step whose move a wall rejected.
	Collided bool
}

// Transition is the outcome of a single step.
type Transition struct {
	Observation int
	Reward      float64
	Terminated  bool
	// Truncated is always false; the maze imposes no time limit.
	Truncated bool
	Info      Info
}

// Maze is the environment. It is not safe for concurrent use.
type Maze struct {
	size    int
	walls   []Rect
	agent   Location
	target  Location
	mode    RenderMode
	display Display
	// shown is set once a frame has reached the display, which then owns resources to release.
	shown bool
	// resetErr holds a display failure from Reset, which has no error return.
	resetErr error
}

// NewMaze returns a maze of the given side length, zero meaning DefaultSize. Human mode
// requires a display to which frames are pushed on every reset and step.
func NewMaze(size int, mode RenderMode, display Display) (*Maze, error) {
	if size == 0 {
		size = DefaultSize
	}
	if size < DefaultSize {
		return nil, fmt.Errorf("%w: %d, must be at least %d", ErrInvalidSize, size, DefaultSize)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrRenderMode, string(mode))
	}
	if mode == RenderHuman && display == nil {
		return nil, ErrNoDisplay
	}

	return &Maze{
		size:    size,
		walls:   append([]Rect(nil), Walls...),
		agent:   Start,
		target:  Target,
		mode:    mode,
		display: display,
	}, nil
}

func (m *Maze) Size() int { return m.size }

// ObservationSpace is the number of distinct observations, size².
func (m *Maze) ObservationSpace() int { return m.size * m.size }

// ActionSpace is the number of distinct actions.
func (m *Maze) ActionSpace() int { return NumActions }

// Location returns the agent's current cell.
func (m *Maze) Location() Location { return m.agent }

// Encode maps a location to its observation index.
func (m *Maze) Encode(loc Location) int {
	return loc.X*m.size + loc.Y
}

// Decode maps an observation index back to its location.
func (m *Maze) Decode(obs int) Location {
	return Location{X: obs / m.size, Y: obs % m.size}
}

// Blocked reports whether any wall overlaps the cell.
func (m *Maze) Blocked(loc Location) bool {
	for _, wall := range m.walls {
		if wall.Overlaps(loc) {
			return true
		}
	}
	return false
}

// Reset puts the agent back on the start cell. There is no randomness: every reset returns
// the same observation.
func (m *Maze) Reset() (int, Info) {
	m.agent = Start
	m.target = Target
	// Reset has no error return; a failing display surfaces on the next Step.
	m.resetErr = m.push()
	return m.Encode(m.agent), m.info()
}

// Step moves the agent one cell in the direction of action.
// The wall check uses the candidate cell before it is clipped to the grid, so a wall lying
// outside the grid blocks a move off the edge and sets Info.Collided. With the fixed wall
// table every wall is inside the grid.
func (m *Maze) Step(action Action) (Transition, error) {
	if !action.Valid() {
		return Transition{}, fmt.Errorf("step: %w: %d", ErrInvalidAction, int(action))
	}
	if err := m.resetErr; err != nil {
		m.resetErr = nil
		return Transition{}, fmt.Errorf("step: reset frame: %w", err)
	}

	candidate := m.agent.Add(action.Delta())
	collided := m.Blocked(candidate)
	if !collided {
		m.agent = m.clip(candidate)
	}

	terminated := m.agent == m.target
	reward := float64(StepReward)
	if terminated {
		reward = GoalReward
	}

	tr := Transition{
		Observation: m.Encode(m.agent),
		Reward:      reward,
		Terminated:  terminated,
		Info:        m.info(),
	}
	tr.Info.Collided = collided
	if err := m.push(); err != nil {
		return tr, fmt.Errorf("step: %w", err)
	}
	return tr, nil
}

// Close releases the display, if a frame was ever pushed to it.
func (m *Maze) Close() (err error) {
	if m.shown {
		m.shown = false
		err = m.display.Close()
	}
	return
}

func (m *Maze) clip(loc Location) Location {
	return Location{
		X: clamp(loc.X, 0, m.size-1),
		Y: clamp(loc.Y, 0, m.size-1),
	}
}

func (m *Maze) info() Info {
	return Info{Distance: abs(m.agent.X-m.target.X) + abs(m.agent.Y-m.target.Y)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
