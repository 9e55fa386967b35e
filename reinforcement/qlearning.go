package reinforcement

/*
Tabular Q-learning over a discrete environment. The agent keeps a dense Q(s,a) table, acts
epsilon-greedily while training, and bootstraps every update off the greedy value of the
successor: Q[s,a] += stepsize * (r + gamma * max_a' Q[s',a'] - Q[s,a]).

The next action is chosen before the update (as SARSA would), but the update target never
uses it; the backup is the max over the successor's actions, which is what makes this
off-policy. Everything is single threaded: one agent owns its table and its random source,
so a seed and an environment fully determine a run.
*/

import (
	"fmt"
	"math/rand"
	"time"

	"qmaze/maze"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Environment is what the agent trains against.
type Environment interface {
	Reset() (int, maze.Info)
	Step(maze.Action) (maze.Transition, error)
	Close() error
	ObservationSpace() int
	ActionSpace() int
}

// EpisodeResult summarizes a finished episode.
type EpisodeResult struct {
	// Episode is the 1-based episode number within the agent's lifetime.
	Episode     int
	Steps       int
	FinalReward float64
	// Epsilon is the exploration rate in effect after the episode's decay.
	Epsilon float64
}

// WatchResult summarizes a greedy playback.
type WatchResult struct {
	Steps       int
	FinalReward float64
	// Terminated is false when playback was cut off at the step cap.
	Terminated bool
}

// ProgressFunc is called synchronously after every training episode and should return quickly.
type ProgressFunc func(EpisodeResult)

// Agent is a tabular Q-learning agent. It is not safe for concurrent use.
type Agent struct {
	env      Environment
	cfg      Config
	q        *mat.Dense
	rng      *rand.Rand
	epsilon  float64
	episodes int
	progress ProgressFunc
}

// NewAgent builds an agent for env with a zeroed table of ObservationSpace x ActionSpace.
func NewAgent(env Environment, cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	states, actions := env.ObservationSpace(), env.ActionSpace()
	if states <= 0 || actions <= 0 {
		return nil, fmt.Errorf("%w: empty state or action space (%d x %d)", ErrInvalidConfig, states, actions)
	}
	if cfg.MaxWatchSteps == 0 {
		cfg.MaxWatchSteps = states * 4
	}

	return &Agent{
		env:     env,
		cfg:     cfg,
		q:       mat.NewDense(states, actions, nil),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		epsilon: cfg.Epsilon,
	}, nil
}

// OnProgress registers fn to be called after every training episode.
func (agent *Agent) OnProgress(fn ProgressFunc) {
	agent.progress = fn
}

// Epsilon returns the current exploration rate.
func (agent *Agent) Epsilon() float64 {
	return agent.epsilon
}

// Table returns the Q table. Callers must not modify it.
func (agent *Agent) Table() mat.Matrix {
	return agent.q
}

// Greedy returns the action with the highest value in state s. Ties go to the lowest action
// index, so an untouched state always yields action 0.
func (agent *Agent) Greedy(s int) maze.Action {
	return maze.Action(floats.MaxIdx(agent.q.RawRowView(s)))
}

// EpsGreedy is the behavior policy: a uniformly random action with probability epsilon,
// otherwise the greedy action. It consumes one draw per call, plus one when exploring.
func (agent *Agent) EpsGreedy(s int) maze.Action {
	if agent.rng.Float64() < agent.epsilon {
		_, actions := agent.q.Dims()
		return maze.Action(agent.rng.Intn(actions))
	}
	return agent.Greedy(s)
}

// update applies the TD backup for the transition (s, a, r, s').
func (agent *Agent) update(s int, a maze.Action, reward float64, successor int) {
	maxNext := floats.Max(agent.q.RawRowView(successor))
	q := agent.q.At(s, int(a))
	agent.q.Set(s, int(a), q+agent.cfg.StepSize*(reward+agent.cfg.Gamma*maxNext-q))
}

// Episode runs one trajectory from reset to termination, then applies the epsilon schedule.
func (agent *Agent) Episode() (result EpisodeResult, err error) {
	s, _ := agent.env.Reset()
	action := agent.EpsGreedy(s)

	var tr maze.Transition
	for !tr.Terminated {
		if tr, err = agent.env.Step(action); err != nil {
			return result, fmt.Errorf("episode %d, step %d: %w", agent.episodes+1, result.Steps, err)
		}
		next := agent.EpsGreedy(tr.Observation)
		agent.update(s, action, tr.Reward, tr.Observation)
		s, action = tr.Observation, next
		result.Steps++
	}

	if agent.cfg.Schedule == ScheduleDecaying {
		agent.epsilon *= agent.cfg.EpsilonDecay
	}
	agent.episodes++

	result.Episode = agent.episodes
	result.FinalReward = tr.Reward
	result.Epsilon = agent.epsilon
	return result, nil
}

// Train runs numEpisodes episodes back to back and returns their results.
func (agent *Agent) Train(numEpisodes int) ([]EpisodeResult, error) {
	results := make([]EpisodeResult, 0, numEpisodes)
	for i := 0; i < numEpisodes; i++ {
		result, err := agent.Episode()
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if agent.progress != nil {
			agent.progress(result)
		}
	}
	return results, nil
}

// Watch plays one fully greedy episode on env, typically a fresh rendering instance, pausing
// between steps so it can be followed. The table is not updated. Env is closed on return.
func (agent *Agent) Watch(env Environment) (result WatchResult, err error) {
	defer func() {
		if closeErr := env.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("watch: close: %w", closeErr)
		}
	}()

	s, _ := env.Reset()
	for result.Steps < agent.cfg.MaxWatchSteps && !result.Terminated {
		var tr maze.Transition
		if tr, err = env.Step(agent.Greedy(s)); err != nil {
			return result, fmt.Errorf("watch, step %d: %w", result.Steps, err)
		}
		s = tr.Observation
		result.Steps++
		result.FinalReward = tr.Reward
		result.Terminated = tr.Terminated
		if agent.cfg.WatchPause > 0 {
			time.Sleep(agent.cfg.WatchPause)
		}
	}
	return result, nil
}

// Values returns max_a Q[s,a] for every state.
func (agent *Agent) Values() []float64 {
	states, _ := agent.q.Dims()
	values := make([]float64, states)
	for s := range values {
		values[s] = floats.Max(agent.q.RawRowView(s))
	}
	return values
}

// Policy returns the greedy action for every state.
func (agent *Agent) Policy() []maze.Action {
	states, _ := agent.q.Dims()
	policy := make([]maze.Action, states)
	for s := range policy {
		policy[s] = agent.Greedy(s)
	}
	return policy
}
