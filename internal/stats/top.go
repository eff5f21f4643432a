package stats

import (
	"sort"

	"github.com/verte-zerg/repertoire/internal/model"
)

// OpeningStat is the success rate of one parent opening.
type OpeningStat struct {
	Name      string
	Attempts  int
	Successes int
	Rate      float64
}

// TopOpenings groups attempts by parent opening and returns the n most practiced.
func TopOpenings(attempts []model.TrainingAttempt, n int) []OpeningStat {
	if n <= 0 || len(attempts) == 0 {
		return nil
	}
	byName := map[string]*OpeningStat{}
	for _, a := range attempts {
		name := a.ParentOpening
		if name == "" {
			name = a.VariationName
		}
		if name == "" {
			name = a.VariationID
		}
		st, ok := byName[name]
		if !ok {
			st = &OpeningStat{Name: name}
			byName[name] = st
		}
		st.Attempts++
		if a.Success {
			st.Successes++
		}
	}
	items := make([]OpeningStat, 0, len(byName))
	for _, st := range byName {
		st.Rate = Rate(st.Successes, st.Attempts)
		items = append(items, *st)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Attempts == items[j].Attempts {
			return items[i].Name < items[j].Name
		}
		return items[i].Attempts > items[j].Attempts
	})
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
