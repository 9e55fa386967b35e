package maze

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"
)

// RenderMode selects how the maze is visualized.
type RenderMode string

const (
	// RenderNone disables rendering; used for training.
	RenderNone RenderMode = ""
	// RenderHuman pushes a frame to a Display on every reset and step.
	RenderHuman RenderMode = "human"
	// RenderANSI makes Render return the current frame as colored text.
	RenderANSI RenderMode = "ansi"
)

func (mode RenderMode) Valid() bool {
	switch mode {
	case RenderNone, RenderHuman, RenderANSI:
		return true
	}
	return false
}

// Frame is everything a renderer needs to draw the maze at one instant.
type Frame struct {
	Size   int
	Walls  []Rect
	Agent  Location
	Target Location
}

// Display is the external collaborator that shows frames: a terminal, a browser, etc.
type Display interface {
	Show(Frame) error
	Close() error
}

// Frame returns the maze's current frame. The frame owns its copy of the walls.
func (m *Maze) Frame() Frame {
	return Frame{
		Size:   m.size,
		Walls:  append([]Rect(nil), m.walls...),
		Agent:  m.agent,
		Target: m.target,
	}
}

// Render returns the current frame as text in ANSI mode. Other modes return the empty string;
// human mode frames are pushed to the display as they happen.
func (m *Maze) Render() (string, error) {
	if m.mode != RenderANSI {
		return "", nil
	}
	return FrameString(m.Frame(), aurora.NewAurora(true)), nil
}

func (m *Maze) push() error {
	if m.mode != RenderHuman {
		return nil
	}
	m.shown = true
	return m.display.Show(m.Frame())
}

// Cell glyphs for console output.
const (
	wallGlyph   = '#'
	targetGlyph = 'G'
	agentGlyph  = 'A'
	openGlyph   = '.'
)

// Glyph is the arrow for the action as seen on screen, where y grows downward; hence Down,
// which decrements y, points up.
func (a Action) Glyph() rune {
	switch a {
	case Left:
		return '<'
	case Down:
		return '^'
	case Right:
		return '>'
	case Up:
		return 'v'
	}
	return '?'
}

// Blocked reports whether any wall of the frame overlaps the cell.
func (f Frame) Blocked(loc Location) bool {
	for _, wall := range f.Walls {
		if wall.Overlaps(loc) {
			return true
		}
	}
	return false
}

// FrameString draws the frame one row per y, top row first.
func FrameString(frame Frame, au aurora.Aurora) string {
	return drawGrid(frame, au, func(Location) string {
		return string(openGlyph)
	})
}

// PolicyString draws the frame's maze with the greedy action of every open cell, where
// policy is indexed by observation (X*size + Y).
func PolicyString(frame Frame, policy []Action, au aurora.Aurora) string {
	return drawGrid(frame, au, func(loc Location) string {
		return au.Cyan(string(policy[loc.X*frame.Size+loc.Y].Glyph())).String()
	})
}

func drawGrid(frame Frame, au aurora.Aurora, open func(Location) string) string {
	var sb strings.Builder
	for y := 0; y < frame.Size; y++ {
		for x := 0; x < frame.Size; x++ {
			loc := Location{X: x, Y: y}
			switch {
			case loc == frame.Agent:
				sb.WriteString(au.Blue(string(agentGlyph)).String())
			case loc == frame.Target:
				sb.WriteString(au.Green(string(targetGlyph)).String())
			case frame.Blocked(loc):
				sb.WriteString(au.Bold(string(wallGlyph)).String())
			default:
				sb.WriteString(open(loc))
			}
			if x < frame.Size-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ConsoleDisplay shows frames as text on a writer, typically a terminal.
type ConsoleDisplay struct {
	w      io.Writer
	au     aurora.Aurora
	frames int
}

// NewConsoleDisplay returns a display writing to w, colored when colors is set.
func NewConsoleDisplay(w io.Writer, colors bool) *ConsoleDisplay {
	return &ConsoleDisplay{
		w:  w,
		au: aurora.NewAurora(colors),
	}
}

func (cd *ConsoleDisplay) Show(frame Frame) error {
	cd.frames++
	_, err := fmt.Fprintf(cd.w, "frame %d\n%s\n", cd.frames, FrameString(frame, cd.au))
	return err
}

// Frames is the number of frames shown so far.
func (cd *ConsoleDisplay) Frames() int {
	return cd.frames
}

func (cd *ConsoleDisplay) Close() error {
	return nil
}
