package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"qmaze/maze"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRenderMode(t *testing.T) {
	Convey("Render flag", t, func() {
		mode, err := renderMode("none")
		So(err, ShouldBeNil)
		So(mode, ShouldEqual, maze.RenderNone)

		mode, err = renderMode("ansi")
		So(err, ShouldBeNil)
		So(mode, ShouldEqual, maze.RenderANSI)

		_, err = renderMode("rgb_array")
		So(errors.Is(err, errUsage), ShouldBeTrue)
	})
}

func TestValuesString(t *testing.T) {
	Convey("Values grid", t, func() {
		m, err := maze.NewMaze(maze.DefaultSize, maze.RenderNone, nil)
		So(err, ShouldBeNil)
		values := make([]float64, m.ObservationSpace())
		values[m.Encode(maze.Start)] = -1.25

		rows := strings.Split(strings.TrimRight(valuesString(m.Frame(), values), "\n"), "\n")
		So(len(rows), ShouldEqual, maze.DefaultSize)
		So(rows[9], ShouldContainSubstring, " -1.25 ")
		So(strings.Fields(rows[1])[0], ShouldEqual, "#")
	})
}

func TestAnsiEnv(t *testing.T) {
	Convey("ANSI playback prints every frame", t, func() {
		m, err := maze.NewMaze(maze.DefaultSize, maze.RenderANSI, nil)
		So(err, ShouldBeNil)
		var out bytes.Buffer
		env := &ansiEnv{Maze: m, w: &out}

		env.Reset()
		_, err = env.Step(maze.Right)
		So(err, ShouldBeNil)
		So(strings.Count(out.String(), "A"), ShouldEqual, 2)
		So(env.Close(), ShouldBeNil)
	})
}

type failingWriter struct{}

var errWrite = errors.New("write failed")

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestAnsiEnvWriteFailure(t *testing.T) {
	Convey("A writer failing on reset fails the next step", t, func() {
		m, err := maze.NewMaze(maze.DefaultSize, maze.RenderANSI, nil)
		So(err, ShouldBeNil)
		env := &ansiEnv{Maze: m, w: failingWriter{}}

		env.Reset()
		_, err = env.Step(maze.Left)
		So(errors.Is(err, errWrite), ShouldBeTrue)
		So(m.Location(), ShouldResemble, maze.Start)
	})
}
