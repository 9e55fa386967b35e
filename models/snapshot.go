// Package models holds the data exchanged between training and its views.
package models

import (
	"qmaze/maze"
)

// Phase is the stage of a run a snapshot was taken in.
type Phase string

const (
	Training Phase = "training"
	Playback Phase = "playback"
	Finished Phase = "finished"
)

// Snapshot is a self-contained copy of everything the views show: the maze, the agent's
// value estimates and greedy policy, and the latest episode statistics. Snapshots are
// handed across goroutines, so they never alias agent or maze state.
type Snapshot struct {
	Phase Phase
	Frame maze.Frame
	// Values and Policy are indexed by observation, X*size + Y.
	Values  []float64
	Policy  []maze.Action
	Episode int
	Steps   int
	Reward  float64
	Epsilon float64
}

// Initial is the snapshot of an untrained agent on a freshly reset maze.
func Initial(frame maze.Frame) Snapshot {
	states := frame.Size * frame.Size
	return Snapshot{
		Phase:  Training,
		Frame:  CopyFrame(frame),
		Values: make([]float64, states),
		Policy: make([]maze.Action, states),
	}
}

// CopyFrame returns frame with its own copy of the wall table.
func CopyFrame(frame maze.Frame) maze.Frame {
	frame.Walls = append([]maze.Rect(nil), frame.Walls...)
	return frame
}
