package reinforcement

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"qmaze/maze"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

// countingEnv records how often the wrapped maze is closed.
type countingEnv struct {
	*maze.Maze
	closed int
}

func (env *countingEnv) Close() error {
	env.closed++
	return env.Maze.Close()
}

// failingEnv fails every step after the first n.
type failingEnv struct {
	*maze.Maze
	n int
}

var errEnvBroken = errors.New("environment broken")

func (env *failingEnv) Step(action maze.Action) (maze.Transition, error) {
	if env.n == 0 {
		return maze.Transition{}, errEnvBroken
	}
	env.n--
	return env.Maze.Step(action)
}

func newMaze() *maze.Maze {
	m, err := maze.NewMaze(0, maze.RenderNone, nil)
	So(err, ShouldBeNil)
	return m
}

func newAgent(cfg Config) *Agent {
	agent, err := NewAgent(newMaze(), cfg)
	So(err, ShouldBeNil)
	return agent
}

// greedyConfig is the fully greedy, non-decaying configuration used to check convergence.
func greedyConfig() Config {
	cfg := DefaultConfig()
	cfg.Epsilon = 0
	cfg.Schedule = ScheduleConstant
	cfg.WatchPause = 0
	return cfg
}

func TestNewAgent(t *testing.T) {
	Convey("When an agent is constructed", t, func() {
		Convey("The table is zeroed with one row per state and one column per action", func() {
			agent := newAgent(DefaultConfig())
			rows, cols := agent.Table().Dims()
			So(rows, ShouldEqual, 100)
			So(cols, ShouldEqual, maze.NumActions)
			So(mat.Sum(agent.Table()), ShouldEqual, 0)
			So(agent.Epsilon(), ShouldEqual, 0.3)
		})

		Convey("Out of range parameters fail fast", func() {
			for _, mutate := range []func(*Config){
				func(cfg *Config) { cfg.Gamma = 0 },
				func(cfg *Config) { cfg.Gamma = 1.5 },
				func(cfg *Config) { cfg.Epsilon = -0.1 },
				func(cfg *Config) { cfg.Epsilon = 2 },
				func(cfg *Config) { cfg.StepSize = 0 },
				func(cfg *Config) { cfg.EpsilonDecay = 3 },
				func(cfg *Config) { cfg.MaxWatchSteps = -1 },
			} {
				cfg := DefaultConfig()
				mutate(&cfg)
				_, err := NewAgent(newMaze(), cfg)
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			}
		})

		Convey("Unknown schedules fail fast", func() {
			cfg := DefaultConfig()
			cfg.Schedule = Schedule(7)
			_, err := NewAgent(newMaze(), cfg)
			So(errors.Is(err, ErrUnknownSchedule), ShouldBeTrue)
		})
	})
}

func TestPolicies(t *testing.T) {
	Convey("Given an agent", t, func() {
		agent := newAgent(DefaultConfig())

		Convey("Greedy picks the first maximal action", func() {
			agent.q.SetRow(3, []float64{1, 3, 3, 2})
			So(agent.Greedy(3), ShouldEqual, maze.Down)
			agent.q.SetRow(4, []float64{-1, -2, -0.5, -0.5})
			So(agent.Greedy(4), ShouldEqual, maze.Right)
			So(agent.Greedy(5), ShouldEqual, maze.Left)
		})

		Convey("Greedy is always a valid action and matches the row argmax", func() {
			rng := rand.New(rand.NewSource(1))
			rows, cols := agent.q.Dims()
			for s := 0; s < rows; s++ {
				for a := 0; a < cols; a++ {
					agent.q.Set(s, a, rng.NormFloat64())
				}
			}
			for s := 0; s < rows; s++ {
				action := agent.Greedy(s)
				So(action.Valid(), ShouldBeTrue)
				for a := 0; a < cols; a++ {
					So(agent.q.At(s, int(action)), ShouldBeGreaterThanOrEqualTo, agent.q.At(s, a))
				}
			}
		})

		Convey("With epsilon zero, the behavior policy is the greedy policy", func() {
			agent.epsilon = 0
			rng := rand.New(rand.NewSource(2))
			rows, _ := agent.q.Dims()
			for s := 0; s < rows; s++ {
				agent.q.Set(s, rng.Intn(maze.NumActions), 1)
			}
			for i := 0; i < 1000; i++ {
				s := rng.Intn(rows)
				So(agent.EpsGreedy(s), ShouldEqual, agent.Greedy(s))
			}
		})

		Convey("With epsilon one, the behavior policy is uniform", func() {
			agent.epsilon = 1
			agent.q.Set(0, int(maze.Up), 10)
			draws := 40000
			counts := make([]int, maze.NumActions)
			for i := 0; i < draws; i++ {
				counts[agent.EpsGreedy(0)]++
			}
			for _, count := range counts {
				So(count, ShouldBeBetween, draws/4-1000, draws/4+1000)
			}
		})
	})
}

func TestEpisode(t *testing.T) {
	Convey("When the agent runs episodes", t, func() {
		Convey("Every episode reaches the goal", func() {
			agent := newAgent(DefaultConfig())
			for i := 0; i < 5; i++ {
				result, err := agent.Episode()
				So(err, ShouldBeNil)
				So(result.Episode, ShouldEqual, i+1)
				So(result.FinalReward, ShouldEqual, maze.GoalReward)
				So(result.Steps, ShouldBeGreaterThanOrEqualTo, 20)
			}
		})

		Convey("The decaying schedule shrinks epsilon geometrically", func() {
			agent := newAgent(DefaultConfig())
			results, err := agent.Train(3)
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 3)
			So(results[0].Epsilon, ShouldAlmostEqual, 0.3*0.4, 1e-12)
			So(agent.Epsilon(), ShouldAlmostEqual, 0.3*math.Pow(0.4, 3), 1e-12)
		})

		Convey("The constant schedule leaves epsilon alone", func() {
			cfg := DefaultConfig()
			cfg.Schedule = ScheduleConstant
			cfg.Epsilon = 0.1
			agent := newAgent(cfg)
			_, err := agent.Train(3)
			So(err, ShouldBeNil)
			So(agent.Epsilon(), ShouldEqual, 0.1)
		})

		Convey("The table keeps its shape across training", func() {
			agent := newAgent(DefaultConfig())
			_, err := agent.Train(50)
			So(err, ShouldBeNil)
			rows, cols := agent.Table().Dims()
			So(rows, ShouldEqual, 100)
			So(cols, ShouldEqual, maze.NumActions)
			So(len(agent.Values()), ShouldEqual, rows)
			So(len(agent.Policy()), ShouldEqual, rows)
		})

		Convey("The same seed reproduces the same run", func() {
			first, second := newAgent(DefaultConfig()), newAgent(DefaultConfig())
			firstResults, err := first.Train(20)
			So(err, ShouldBeNil)
			secondResults, err := second.Train(20)
			So(err, ShouldBeNil)
			So(secondResults, ShouldResemble, firstResults)
			So(mat.Equal(first.Table(), second.Table()), ShouldBeTrue)
		})

		Convey("Progress is reported after every episode", func() {
			agent := newAgent(DefaultConfig())
			var seen []int
			agent.OnProgress(func(result EpisodeResult) {
				seen = append(seen, result.Episode)
			})
			_, err := agent.Train(4)
			So(err, ShouldBeNil)
			So(seen, ShouldResemble, []int{1, 2, 3, 4})
		})

		Convey("Environment failures are surfaced", func() {
			agent, err := NewAgent(&failingEnv{Maze: newMaze(), n: 3}, DefaultConfig())
			So(err, ShouldBeNil)
			results, err := agent.Train(10)
			So(errors.Is(err, errEnvBroken), ShouldBeTrue)
			So(results, ShouldBeEmpty)
		})
	})
}

func TestWatch(t *testing.T) {
	Convey("When the agent is watched", t, func() {
		Convey("An untrained table cycles until the step cap", func() {
			agent := newAgent(greedyConfig())
			env := &countingEnv{Maze: newMaze()}
			result, err := agent.Watch(env)
			So(err, ShouldBeNil)
			So(result.Terminated, ShouldBeFalse)
			So(result.Steps, ShouldEqual, 100*4)
			So(result.FinalReward, ShouldEqual, maze.StepReward)
			So(env.closed, ShouldEqual, 1)
		})

		Convey("An explicit step cap is honored", func() {
			cfg := greedyConfig()
			cfg.MaxWatchSteps = 10
			agent := newAgent(cfg)
			result, err := agent.Watch(newMaze())
			So(err, ShouldBeNil)
			So(result.Steps, ShouldEqual, 10)
		})

		Convey("A greedily trained table follows a path to the goal", func() {
			agent := newAgent(greedyConfig())
			_, err := agent.Train(1000)
			So(err, ShouldBeNil)

			before := mat.DenseCopyOf(agent.Table())
			result, err := agent.Watch(newMaze())
			So(err, ShouldBeNil)
			So(result.Terminated, ShouldBeTrue)
			So(result.FinalReward, ShouldEqual, maze.GoalReward)
			So(result.Steps, ShouldBeGreaterThanOrEqualTo, 20)
			So(result.Steps, ShouldBeLessThan, 100*4)
			So(mat.Equal(before, agent.Table()), ShouldBeTrue)
		})

		Convey("Playback renders every frame on a human mode maze", func() {
			agent := newAgent(greedyConfig())
			_, err := agent.Train(1000)
			So(err, ShouldBeNil)

			display := &recordingDisplay{}
			env, err := maze.NewMaze(0, maze.RenderHuman, display)
			So(err, ShouldBeNil)
			result, err := agent.Watch(env)
			So(err, ShouldBeNil)
			So(display.frames, ShouldEqual, result.Steps+1)
			So(display.closed, ShouldBeTrue)
		})
	})
}

type recordingDisplay struct {
	frames int
	closed bool
}

func (rd *recordingDisplay) Show(maze.Frame) error {
	rd.frames++
	return nil
}

func (rd *recordingDisplay) Close() error {
	rd.closed = true
	return nil
}
