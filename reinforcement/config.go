package reinforcement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Schedule says what happens to epsilon between episodes.
type Schedule int

const (
	// ScheduleDecaying multiplies epsilon by the decay factor after every episode.
	ScheduleDecaying Schedule = iota
	// ScheduleConstant keeps epsilon fixed for the whole run.
	ScheduleConstant
)

func (s Schedule) String() string {
	switch s {
	case ScheduleDecaying:
		return "decaying"
	case ScheduleConstant:
		return "constant"
	}
	return fmt.Sprintf("Schedule(%d)", int(s))
}

// ParseSchedule maps a schedule name to its value.
func ParseSchedule(name string) (Schedule, error) {
	switch strings.ToLower(name) {
	case "decaying", "decay":
		return ScheduleDecaying, nil
	case "constant":
		return ScheduleConstant, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSchedule, name)
}

var (
	ErrInvalidConfig   = errors.New("invalid agent config")
	ErrUnknownSchedule = errors.New("unknown exploration schedule")
)

// Config holds the agent's hyper-parameters.
type Config struct {
	// Seed seeds the agent's random source, used for exploration.
	Seed int64
	// Epsilon is the initial exploration probability.
	Epsilon float64
	// EpsilonDecay is the per-episode multiplier under ScheduleDecaying.
	EpsilonDecay float64
	Schedule     Schedule
	// Gamma is the discount factor, in (0,1].
	Gamma float64
	// StepSize is the TD learning rate.
	StepSize float64
	// MaxWatchSteps caps greedy playback, which can cycle forever on an under-trained table.
	// Zero means four steps per state.
	MaxWatchSteps int
	// WatchPause is the pause between playback steps, for human viewing.
	WatchPause time.Duration
}

// DefaultConfig returns the decaying-epsilon configuration.
func DefaultConfig() Config {
	return Config{
		Seed:         42,
		Epsilon:      0.3,
		EpsilonDecay: 0.4,
		Schedule:     ScheduleDecaying,
		Gamma:        0.95,
		StepSize:     0.05,
		WatchPause:   300 * time.Millisecond,
	}
}

// Validate checks parameter ranges.
func (cfg Config) Validate() error {
	switch {
	case cfg.Epsilon < 0 || cfg.Epsilon > 1:
		return fmt.Errorf("%w: epsilon %v not in [0,1]", ErrInvalidConfig, cfg.Epsilon)
	case cfg.Schedule == ScheduleDecaying && (cfg.EpsilonDecay < 0 || cfg.EpsilonDecay > 1):
		return fmt.Errorf("%w: epsilon decay %v not in [0,1]", ErrInvalidConfig, cfg.EpsilonDecay)
	case cfg.Schedule != ScheduleDecaying && cfg.Schedule != ScheduleConstant:
		return fmt.Errorf("%w: %v", ErrUnknownSchedule, cfg.Schedule)
	case cfg.Gamma <= 0 || cfg.Gamma > 1:
		return fmt.Errorf("%w: gamma %v not in (0,1]", ErrInvalidConfig, cfg.Gamma)
	case cfg.StepSize <= 0:
		return fmt.Errorf("%w: step size %v must be positive", ErrInvalidConfig, cfg.StepSize)
	case cfg.MaxWatchSteps < 0 || cfg.WatchPause < 0:
		return fmt.Errorf("%w: negative watch limits", ErrInvalidConfig)
	}
	return nil
}

// OuterConfig is the file envelope; Def holds the kind-specific definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes training parameters outside of code. Keys are lower case, since
// viper folds the case of every key it reads.
type TrainingConfig struct {
	// HyperParams is a list of key-val pairs: seed, epsilon, decay, gamma, stepsize, episodes, maxwatchsteps.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Algorithm holds string selectors, currently only "schedule".
	Algorithm map[string]string `yaml:"algorithm"`
	// Watch holds playback settings, currently only "pause" as a duration string.
	Watch map[string]string `yaml:"watch"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// Episodes returns the configured episode count, or defaultVal.
func (cfg *TrainingConfig) Episodes(defaultVal int) int {
	return int(cfg.GetHyperParamOrDefault("episodes", float64(defaultVal)))
}

// AgentConfig overlays the file's settings on DefaultConfig.
func (cfg *TrainingConfig) AgentConfig() (Config, error) {
	agentCfg := DefaultConfig()
	agentCfg.Seed = int64(cfg.GetHyperParamOrDefault("seed", float64(agentCfg.Seed)))
	agentCfg.Epsilon = cfg.GetHyperParamOrDefault("epsilon", agentCfg.Epsilon)
	agentCfg.EpsilonDecay = cfg.GetHyperParamOrDefault("decay", agentCfg.EpsilonDecay)
	agentCfg.Gamma = cfg.GetHyperParamOrDefault("gamma", agentCfg.Gamma)
	agentCfg.StepSize = cfg.GetHyperParamOrDefault("stepsize", agentCfg.StepSize)
	agentCfg.MaxWatchSteps = int(cfg.GetHyperParamOrDefault("maxwatchsteps", 0))

	if name, ok := cfg.Algorithm["schedule"]; ok {
		schedule, err := ParseSchedule(name)
		if err != nil {
			return Config{}, err
		}
		agentCfg.Schedule = schedule
	}

	if val, ok := cfg.Watch["pause"]; ok {
		pause, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("watch pause: %w", err)
		}
		agentCfg.WatchPause = pause
	}

	return agentCfg, agentCfg.Validate()
}

// FromYaml reads a training config. Viper reads the envelope; the definition is re-encoded
// and decoded with yaml so its shape is owned by TrainingConfig rather than by viper.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	outerConfig := &OuterConfig{}
	if err := vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if outerConfig.Kind != "" && outerConfig.Kind != "qlearning" {
		return nil, fmt.Errorf("config kind %q: expected qlearning", outerConfig.Kind)
	}

	spec, err := yaml.Marshal(outerConfig.Def)
	if err != nil {
		return nil, fmt.Errorf("encode config def: %w", err)
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("decode config def: %w", err)
	}

	return innerConfig, nil
}
