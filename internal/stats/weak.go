package stats

import (
	"sort"

	"github.com/verte-zerg/repertoire/internal/model"
)

// VariationStat aggregates attempts of a single variation.
type VariationStat struct {
	ID       string
	Name     string
	Attempts int
	Rate     float64
	Mistakes float64
}

// WeakVariations returns up to top variations with the lowest success rate.
// Variations with fewer than minAttempts attempts are ignored.
func WeakVariations(attempts []model.TrainingAttempt, minAttempts, top int) []VariationStat {
	type acc struct {
		stat      VariationStat
		successes int
	}
	byID := map[string]*acc{}
	for _, a := range attempts {
		v, ok := byID[a.VariationID]
		if !ok {
			v = &acc{stat: VariationStat{ID: a.VariationID, Name: a.VariationName}}
			byID[a.VariationID] = v
		}
		v.stat.Attempts++
		v.stat.Mistakes += a.MistakeCount
		if a.Success {
			v.successes++
		}
	}
	candidates := make([]VariationStat, 0, len(byID))
	for _, v := range byID {
		if v.stat.Attempts < minAttempts {
			continue
		}
		v.stat.Rate = Rate(v.successes, v.stat.Attempts)
		if v.stat.Name == "" {
			v.stat.Name = v.stat.ID
		}
		candidates = append(candidates, v.stat)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Rate == candidates[j].Rate {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Rate < candidates[j].Rate
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	return candidates[:top]
}
