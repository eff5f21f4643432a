// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/repertoire/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a set of attempts.
type Summary struct {
	Attempts    int
	Successes   int
	TotalTime   time.Duration
	AvgMoveMs   float64
	SuccessRate float64
}

// Summarize computes totals over attempts.
func Summarize(attempts []model.TrainingAttempt) Summary {
	s := Summary{Attempts: len(attempts)}
	var moveSum int64
	moveCount := 0
	for _, a := range attempts {
		s.TotalTime += time.Duration(a.DurationMs) * time.Millisecond
		if a.Success {
			s.Successes++
		}
		if a.AvgTimePerMoveMs > 0 {
			moveSum += a.AvgTimePerMoveMs
			moveCount++
		}
	}
	s.SuccessRate = Rate(s.Successes, s.Attempts)
	if moveCount > 0 {
		s.AvgMoveMs = float64(moveSum) / float64(moveCount)
	}
	return s
}

// Rate returns successes/total, or 0 when total is 0.
func Rate(successes, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

// Minutes formats a duration as whole minutes, rounding up partial minutes.
func Minutes(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	m := int(math.Ceil(d.Minutes()))
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(min(i+1, window))
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := bounds(values)
	if math.Abs(hi-lo) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func bounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// RenderSummary prints the headline numbers for a report.
func RenderSummary(w io.Writer, s Summary) error {
	if s.Attempts == 0 {
		_, err := fmt.Fprintln(w, "No attempts found.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Training time: %s", Minutes(s.TotalTime)),
		fmt.Sprintf("Attempts: %d", s.Attempts),
		fmt.Sprintf("Success rate: %.1f%%", s.SuccessRate*100),
		fmt.Sprintf("Avg time per move: %.1fs", s.AvgMoveMs/1000),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderOpenings prints per-opening success rates.
func RenderOpenings(w io.Writer, rows []OpeningStat) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Openings"); err != nil {
		return err
	}
	t := newTable(left("Opening"), right("Attempts"), right("Success"), right("Rate"))
	for _, r := range rows {
		t.add(r.Name, strconv.Itoa(r.Attempts), strconv.Itoa(r.Successes), percent(r.Rate))
	}
	return t.write(w)
}

// RenderWeak prints the variations with the lowest success rate.
func RenderWeak(w io.Writer, rows []VariationStat) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Needs Work"); err != nil {
		return err
	}
	t := newTable(left("Variation"), right("Attempts"), right("Rate"), right("Mistakes"))
	for _, r := range rows {
		t.add(r.Name, strconv.Itoa(r.Attempts), percent(r.Rate), fmt.Sprintf("%.1f", r.Mistakes))
	}
	return t.write(w)
}

// RenderHistory prints recent attempts, newest first.
func RenderHistory(w io.Writer, attempts []model.TrainingAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Recent"); err != nil {
		return err
	}
	t := newTable(left("When"), left("Variation"), left("Result"), right("Time"), right("Mistakes"))
	for _, a := range attempts {
		result := "fail"
		if a.Success {
			result = "pass"
		}
		name := a.VariationName
		if name == "" {
			name = a.VariationID
		}
		t.add(
			a.Timestamp.Local().Format("2006-01-02 15:04"),
			name,
			result,
			fmt.Sprintf("%.1fs", float64(a.DurationMs)/1000),
			fmt.Sprintf("%g", a.MistakeCount),
		)
	}
	return t.write(w)
}

func percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// RenderTrend prints the duration trend with a sparkline and, when width allows, a plot.
func RenderTrend(w io.Writer, durations []float64, window, totalWidth, height int, useColor bool) error {
	if len(durations) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Duration trend (last %d): %s\n", len(durations), Sparkline(durations)); err != nil {
		return err
	}
	if len(durations) < 2 {
		_, err := fmt.Fprintln(w, "")
		return err
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "", []Series{
		{Name: "Seconds", Values: durations},
		{Name: "Average", Values: MovingAverage(durations, window)},
	}, width, height, useColor)
}
