/*
Qmaze trains a tabular Q-learning agent to walk a fixed 10x10 maze from its start cell to the
goal, then plays one greedy episode so the learned route can be watched. Playback renders on
the console, or in the browser as an svg maze whose values, policy arrows, and agent position
are pushed over a websocket while training runs.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"qmaze/maze"
	"qmaze/models"
	"qmaze/reinforcement"
	"qmaze/report"
	"qmaze/server"

	"github.com/logrusorgru/aurora"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEpisodes = 5000
	progressEvery   = 500
	chartWindow     = 50
)

var (
	configPath *string
	episodes   *int
	render     *string
	display    *string
	host       *string
	port       *string
	chartPath  *string
	noColor    *bool
)

func init() {
	configPath = flag.String("config", "", "training config yaml; defaults are used when empty")
	episodes = flag.Int("episodes", defaultEpisodes, "number of training episodes")
	render = flag.String("render", "human", "playback render mode: human, ansi or none")
	display = flag.String("display", "console", "human mode display: console or web")
	host = flag.String("host", "", "web display host ip")
	port = flag.String("port", "8080", "web display port")
	chartPath = flag.String("chart", "", "write a steps-per-episode chart to this html file")
	noColor = flag.Bool("nocolor", false, "disable console colors")
}

var errUsage = errors.New("usage")

// renderMode maps the -render flag to a maze render mode.
func renderMode(name string) (maze.RenderMode, error) {
	switch name {
	case "none":
		return maze.RenderNone, nil
	case string(maze.RenderHuman), string(maze.RenderANSI):
		return maze.RenderMode(name), nil
	}
	return "", fmt.Errorf("%w: -render %q", errUsage, name)
}

// loadConfig returns the agent config and episode count: defaults, overlaid by the config
// file, overlaid by an explicit -episodes.
func loadConfig() (cfg reinforcement.Config, numEpisodes int, err error) {
	cfg, numEpisodes = reinforcement.DefaultConfig(), *episodes
	if *configPath != "" {
		var trainingConfig *reinforcement.TrainingConfig
		if trainingConfig, err = reinforcement.FromYaml(*configPath); err != nil {
			return
		}
		if cfg, err = trainingConfig.AgentConfig(); err != nil {
			return
		}
		numEpisodes = trainingConfig.Episodes(numEpisodes)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "episodes" {
			numEpisodes = *episodes
		}
	})
	if numEpisodes < 0 {
		err = fmt.Errorf("%w: episodes %d", errUsage, numEpisodes)
	}
	return
}

// ansiEnv prints the maze after every reset and step.
type ansiEnv struct {
	*maze.Maze
	w io.Writer
	// resetErr holds a print failure from Reset, which has no error return.
	resetErr error
}

func (env *ansiEnv) print() error {
	frame, err := env.Render()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.w, frame)
	return err
}

func (env *ansiEnv) Reset() (int, maze.Info) {
	obs, info := env.Maze.Reset()
	// A failing writer surfaces on the next Step.
	env.resetErr = env.print()
	return obs, info
}

func (env *ansiEnv) Step(action maze.Action) (maze.Transition, error) {
	if err := env.resetErr; err != nil {
		env.resetErr = nil
		return maze.Transition{}, fmt.Errorf("print reset frame: %w", err)
	}
	tr, err := env.Maze.Step(action)
	if err != nil {
		return tr, err
	}
	return tr, env.print()
}

// valuesString prints max_a Q[s,a] per cell, one row per maze row.
func valuesString(frame maze.Frame, values []float64) string {
	var sb strings.Builder
	for y := 0; y < frame.Size; y++ {
		for x := 0; x < frame.Size; x++ {
			loc := maze.Location{X: x, Y: y}
			if frame.Blocked(loc) {
				sb.WriteString("     # ")
				continue
			}
			fmt.Fprintf(&sb, "%6.2f ", values[x*frame.Size+y])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func runApp() (err error) {
	var (
		cfg         reinforcement.Config
		numEpisodes int
		mode        maze.RenderMode
	)
	if cfg, numEpisodes, err = loadConfig(); err != nil {
		return
	}
	if mode, err = renderMode(*render); err != nil {
		return
	}
	if *display != "console" && *display != "web" {
		return fmt.Errorf("%w: -display %q", errUsage, *display)
	}
	au := aurora.NewAurora(!*noColor)

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer appCancel()
	group, groupCtx := errgroup.WithContext(appCtx)

	var env *maze.Maze
	if env, err = maze.NewMaze(maze.DefaultSize, maze.RenderNone, nil); err != nil {
		return
	}
	env.Reset()

	var agent *reinforcement.Agent
	if agent, err = reinforcement.NewAgent(env, cfg); err != nil {
		return
	}

	// The web display shows training as it runs and serves until interrupted.
	var feed *server.Feed
	if *display == "web" {
		feed = server.NewFeed(models.Initial(env.Frame()))
		var srv *server.Server
		if srv, err = server.NewServer(groupCtx, *host+":"+*port, feed); err != nil {
			return
		}
		group.Go(func() error {
			return srv.Serve(groupCtx)
		})
	}

	agent.OnProgress(func(result reinforcement.EpisodeResult) {
		if result.Episode%progressEvery == 0 {
			log.Printf("episode %d: %d steps, epsilon %.4f", result.Episode, result.Steps, result.Epsilon)
		}
		if feed != nil {
			feed.Learn(result, agent.Values(), agent.Policy())
		}
	})

	log.Printf("training %d episodes, %s schedule", numEpisodes, cfg.Schedule)
	results, err := agent.Train(numEpisodes)
	if closeErr := env.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if n := len(results); n > 0 {
		log.Printf("trained: last episode took %d steps", results[n-1].Steps)
	}

	fmt.Println(maze.PolicyString(env.Frame(), agent.Policy(), au))
	fmt.Println(valuesString(env.Frame(), agent.Values()))

	if *chartPath != "" {
		if err = report.WriteFile(*chartPath, results, chartWindow); err != nil {
			return
		}
		log.Printf("wrote chart to %s", *chartPath)
	}

	var watchEnv reinforcement.Environment
	switch mode {
	case maze.RenderHuman:
		var out maze.Display = maze.NewConsoleDisplay(os.Stdout, !*noColor)
		if feed != nil {
			out = feed
		}
		watchEnv, err = maze.NewMaze(maze.DefaultSize, mode, out)
	case maze.RenderANSI:
		var m *maze.Maze
		if m, err = maze.NewMaze(maze.DefaultSize, mode, nil); err == nil {
			watchEnv = &ansiEnv{Maze: m, w: os.Stdout}
		}
	default:
		watchEnv, err = maze.NewMaze(maze.DefaultSize, mode, nil)
	}
	if err != nil {
		return
	}

	watch, err := agent.Watch(watchEnv)
	if err != nil {
		return
	}
	if watch.Terminated {
		log.Printf("reached the goal in %d steps", watch.Steps)
	} else {
		log.Printf("gave up after %d steps", watch.Steps)
	}

	if feed == nil {
		appCancel()
	} else {
		log.Println("serving until interrupted")
	}
	return group.Wait()
}

func main() {
	flag.Parse()
	if err := runApp(); err != nil {
		log.Println(err)
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		os.Exit(1)
	}
}
