package analysis

import (
	"fmt"
	"math"

	"github.com/verte-zerg/repertoire/internal/model"
)

// DefaultSmoothingWindow is the number of samples averaged for display.
const DefaultSmoothingWindow = 5

// Smoother averages recent centipawn scores. Mate scores pass through and reset the window.
type Smoother struct {
	window  int
	samples []int
}

// NewSmoother returns a Smoother over the last window samples.
func NewSmoother(window int) *Smoother {
	if window <= 0 {
		window = DefaultSmoothingWindow
	}
	return &Smoother{window: window}
}

// Add records a sample and returns the value to display.
func (s *Smoother) Add(e model.Evaluation) model.Evaluation {
	if e.Kind == model.EvalMate {
		s.samples = s.samples[:0]
		return e
	}
	s.samples = append(s.samples, e.Value)
	if len(s.samples) > s.window {
		s.samples = s.samples[len(s.samples)-s.window:]
	}
	sum := 0
	for _, v := range s.samples {
		sum += v
	}
	mean := math.Round(float64(sum) / float64(len(s.samples)))
	return model.Evaluation{Kind: model.EvalCentipawn, Value: int(mean)}
}

// Reset drops all samples.
func (s *Smoother) Reset() {
	s.samples = s.samples[:0]
}

// Len returns the number of buffered samples.
func (s *Smoother) Len() int {
	return len(s.samples)
}

// Eval bar mapping.
const (
	barClampCp = 500
	barMin     = 5.0
	barMax     = 95.0
)

// BarPercent maps an evaluation to White's share of the eval bar.
// A mate of 0 carries no side and sits at the midpoint.
func BarPercent(e model.Evaluation) float64 {
	if e.Kind == model.EvalMate {
		switch {
		case e.Value > 0:
			return 100
		case e.Value < 0:
			return 0
		}
		return 50
	}
	cp := e.Value
	if cp > barClampCp {
		cp = barClampCp
	}
	if cp < -barClampCp {
		cp = -barClampCp
	}
	return 50 + float64(cp)/barClampCp*(barMax-50)
}

// FormatEval renders an evaluation as "M3", "-M2" or "0.4".
// A position that is already mate renders as "#".
func FormatEval(e model.Evaluation) string {
	if e.Kind == model.EvalMate {
		if e.Value == 0 {
			return "#"
		}
		if e.Value < 0 {
			return fmt.Sprintf("-M%d", -e.Value)
		}
		return fmt.Sprintf("M%d", e.Value)
	}
	return fmt.Sprintf("%.1f", float64(e.Value)/100)
}
