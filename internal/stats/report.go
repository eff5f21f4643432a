package stats

import (
	"context"
	"slices"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/progress"
)

// Report sizes.
const (
	TopOpeningCount = 10
	TrendCount      = 20
	RecentCount     = 10
	WeakCount       = 5
	WeakMinAttempts = 2

	DefaultTrendWindow = 5
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Attempts  []model.TrainingAttempt
	Summary   Summary
	Openings  []OpeningStat
	Weak      []VariationStat
	Durations []float64
	Recent    []model.TrainingAttempt
}

// BuildReport loads the attempt log and prepares data for stats rendering.
func BuildReport(ctx context.Context, repo progress.AttemptRepository, cfg model.StatsConfig) (Report, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return Report{}, err
	}
	return NewReport(Filter(all, cfg)), nil
}

// NewReport computes every report section from an already filtered log in append order.
func NewReport(attempts []model.TrainingAttempt) Report {
	return Report{
		Attempts:  attempts,
		Summary:   Summarize(attempts),
		Openings:  TopOpenings(attempts, TopOpeningCount),
		Weak:      WeakVariations(attempts, WeakMinAttempts, WeakCount),
		Durations: Durations(attempts, TrendCount),
		Recent:    Recent(attempts, RecentCount),
	}
}

// Filter applies the category, since and last filters. Order is preserved.
func Filter(attempts []model.TrainingAttempt, cfg model.StatsConfig) []model.TrainingAttempt {
	out := make([]model.TrainingAttempt, 0, len(attempts))
	for _, a := range attempts {
		if cfg.Category != "" && attemptCategory(a) != cfg.Category {
			continue
		}
		if cfg.Since != nil && a.Timestamp.Before(*cfg.Since) {
			continue
		}
		out = append(out, a)
	}
	if cfg.Last > 0 && len(out) > cfg.Last {
		out = out[len(out)-cfg.Last:]
	}
	return out
}

// attemptCategory also covers sparring attempts logged before they had a category of their own.
func attemptCategory(a model.TrainingAttempt) model.Category {
	if a.VariationID == model.SparringVariationID {
		return model.CategorySparring
	}
	return a.Category
}

// Durations returns the durations in seconds of the last n attempts, oldest first.
func Durations(attempts []model.TrainingAttempt, n int) []float64 {
	if n > 0 && len(attempts) > n {
		attempts = attempts[len(attempts)-n:]
	}
	out := make([]float64, len(attempts))
	for i, a := range attempts {
		out[i] = float64(a.DurationMs) / 1000
	}
	return out
}

// Recent returns the last n attempts, newest first.
func Recent(attempts []model.TrainingAttempt, n int) []model.TrainingAttempt {
	if n > 0 && len(attempts) > n {
		attempts = attempts[len(attempts)-n:]
	}
	out := slices.Clone(attempts)
	slices.Reverse(out)
	return out
}
