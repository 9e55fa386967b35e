package server

import (
	"sync"

	"qmaze/maze"
	"qmaze/models"
	"qmaze/reinforcement"
)

// Feed turns training progress and playback frames into a stream of snapshots for the
// views. Publishing never blocks: the stream holds at most one pending snapshot, and a
// newer one replaces it. Feed implements maze.Display for playback.
type Feed struct {
	mu      sync.Mutex
	last    models.Snapshot
	updates chan models.Snapshot
}

var _ maze.Display = (*Feed)(nil)

func NewFeed(initial models.Snapshot) *Feed {
	return &Feed{
		last:    initial,
		updates: make(chan models.Snapshot, 1),
	}
}

// Updates returns the snapshot stream. It is never closed.
func (feed *Feed) Updates() <-chan models.Snapshot {
	return feed.updates
}

// Last returns the most recently published snapshot.
func (feed *Feed) Last() models.Snapshot {
	feed.mu.Lock()
	defer feed.mu.Unlock()
	return feed.last
}

// Publish makes snap the latest snapshot.
func (feed *Feed) Publish(snap models.Snapshot) {
	feed.mu.Lock()
	defer feed.mu.Unlock()
	feed.publish(snap)
}

// publish requires mu.
func (feed *Feed) publish(snap models.Snapshot) {
	feed.last = snap
	select {
	case <-feed.updates:
	default:
	}
	feed.updates <- snap
}

// Learn publishes the statistics of a finished training episode with the agent's current
// values and policy, which must not be modified afterward.
func (feed *Feed) Learn(result reinforcement.EpisodeResult, values []float64, policy []maze.Action) {
	feed.mu.Lock()
	defer feed.mu.Unlock()
	snap := feed.last
	snap.Phase = models.Training
	snap.Episode = result.Episode
	snap.Steps = result.Steps
	snap.Reward = result.FinalReward
	snap.Epsilon = result.Epsilon
	snap.Values = values
	snap.Policy = policy
	feed.publish(snap)
}

// Show publishes a playback frame. The first frame of a playback restarts the step count.
func (feed *Feed) Show(frame maze.Frame) error {
	feed.mu.Lock()
	defer feed.mu.Unlock()
	snap := feed.last
	if snap.Phase != models.Playback {
		snap.Phase = models.Playback
		snap.Steps = 0
		snap.Reward = 0
	} else {
		snap.Steps++
		snap.Reward = maze.StepReward
		if frame.Agent == frame.Target {
			snap.Reward = maze.GoalReward
		}
	}
	snap.Frame = models.CopyFrame(frame)
	feed.publish(snap)
	return nil
}

// Close marks playback finished. The stream stays open so the page keeps serving.
func (feed *Feed) Close() error {
	feed.mu.Lock()
	defer feed.mu.Unlock()
	snap := feed.last
	snap.Phase = models.Finished
	feed.publish(snap)
	return nil
}
