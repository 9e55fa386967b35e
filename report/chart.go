// Package report renders training diagnostics as standalone HTML charts.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"qmaze/reinforcement"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Title of the steps chart.
const Title = "Steps per episode"

// StepsChart builds a line chart of steps and a moving average of steps per episode.
// The average smooths the early exploration noise.
func StepsChart(results []reinforcement.EpisodeResult, window int) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    Title,
			Subtitle: fmt.Sprintf("%d episodes", len(results)),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	episodes := make([]string, 0, len(results))
	steps := make([]opts.LineData, 0, len(results))
	for _, result := range results {
		episodes = append(episodes, fmt.Sprintf("%d", result.Episode))
		steps = append(steps, opts.LineData{Value: result.Steps})
	}

	averages := make([]opts.LineData, 0, len(results))
	for _, avg := range MovingAverage(results, window) {
		averages = append(averages, opts.LineData{Value: avg})
	}

	line.SetXAxis(episodes).
		AddSeries("steps", steps).
		AddSeries(fmt.Sprintf("mean of last %d", window), averages)
	return line
}

// MovingAverage returns, for every episode, the mean steps over the trailing window.
// Windows below one are treated as one.
func MovingAverage(results []reinforcement.EpisodeResult, window int) []float64 {
	if window < 1 {
		window = 1
	}
	averages := make([]float64, len(results))
	sum := 0
	for i, result := range results {
		sum += result.Steps
		if i >= window {
			sum -= results[i-window].Steps
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		averages[i] = float64(sum) / float64(n)
	}
	return averages
}

// Render writes the training charts as one HTML page.
func Render(w io.Writer, results []reinforcement.EpisodeResult, window int) error {
	page := components.NewPage()
	page.AddCharts(StepsChart(results, window))
	return page.Render(w)
}

// WriteFile renders the charts to path, creating its directory as needed.
func WriteFile(path string, results []reinforcement.EpisodeResult, window int) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("chart dir: %w", err)
	}
	var f *os.File
	if f, err = os.Create(path); err != nil {
		return fmt.Errorf("chart file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return Render(f, results, window)
}
