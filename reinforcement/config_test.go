package reinforcement

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `kind: qlearning
def:
  hyperparams:
    - key: seed
      val: 7
    - key: epsilon
      val: 0.5
    - key: decay
      val: 0.9
    - key: gamma
      val: 0.9
    - key: stepsize
      val: 0.1
    - key: episodes
      val: 250
  algorithm:
    schedule: constant
  watch:
    pause: 50ms
`

func writeConfig(contents string) string {
	path := filepath.Join(os.TempDir(), "qmaze-config-test.yaml")
	So(os.WriteFile(path, []byte(contents), 0o600), ShouldBeNil)
	Reset(func() {
		_ = os.Remove(path)
	})
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When a training config is loaded", t, func() {
		Convey("Its settings overlay the defaults", func() {
			trainingCfg, err := FromYaml(writeConfig(testConfig))
			So(err, ShouldBeNil)
			So(trainingCfg.Episodes(5000), ShouldEqual, 250)

			cfg, err := trainingCfg.AgentConfig()
			So(err, ShouldBeNil)
			So(cfg.Seed, ShouldEqual, 7)
			So(cfg.Epsilon, ShouldEqual, 0.5)
			So(cfg.EpsilonDecay, ShouldEqual, 0.9)
			So(cfg.Gamma, ShouldEqual, 0.9)
			So(cfg.StepSize, ShouldEqual, 0.1)
			So(cfg.Schedule, ShouldEqual, ScheduleConstant)
			So(cfg.WatchPause, ShouldEqual, 50*time.Millisecond)
		})

		Convey("Missing settings keep their defaults", func() {
			trainingCfg, err := FromYaml(writeConfig("kind: qlearning\ndef:\n  hyperparams:\n    - key: gamma\n      val: 0.8\n"))
			So(err, ShouldBeNil)
			So(trainingCfg.Episodes(5000), ShouldEqual, 5000)

			cfg, err := trainingCfg.AgentConfig()
			So(err, ShouldBeNil)
			expected := DefaultConfig()
			expected.Gamma = 0.8
			So(cfg, ShouldResemble, expected)
		})

		Convey("Unknown schedules are rejected", func() {
			trainingCfg, err := FromYaml(writeConfig("kind: qlearning\ndef:\n  algorithm:\n    schedule: cosine\n"))
			So(err, ShouldBeNil)
			_, err = trainingCfg.AgentConfig()
			So(errors.Is(err, ErrUnknownSchedule), ShouldBeTrue)
		})

		Convey("Out of range values are rejected", func() {
			trainingCfg, err := FromYaml(writeConfig("kind: qlearning\ndef:\n  hyperparams:\n    - key: gamma\n      val: 0\n"))
			So(err, ShouldBeNil)
			_, err = trainingCfg.AgentConfig()
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Other config kinds are rejected", func() {
			_, err := FromYaml(writeConfig("kind: montecarlo\ndef: {}\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("A missing file is an error", func() {
			_, err := FromYaml(filepath.Join(os.TempDir(), "no-such-qmaze-config.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseSchedule(t *testing.T) {
	Convey("Schedule names parse case-insensitively", t, func() {
		schedule, err := ParseSchedule("Decaying")
		So(err, ShouldBeNil)
		So(schedule, ShouldEqual, ScheduleDecaying)
		schedule, err = ParseSchedule("constant")
		So(err, ShouldBeNil)
		So(schedule, ShouldEqual, ScheduleConstant)
		So(schedule.String(), ShouldEqual, "constant")
	})
}
