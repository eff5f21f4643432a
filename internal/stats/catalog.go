package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/repertoire/internal/model"
)

// RenderCatalog lists the variations of one category with the user's record on each.
func RenderCatalog(w io.Writer, category model.Category, variations []model.OpeningVariation, attempts []model.TrainingAttempt) error {
	if _, err := fmt.Fprintf(w, "%s (%d)\n", category, len(variations)); err != nil {
		return err
	}
	type record struct{ attempts, successes int }
	byID := map[string]record{}
	for _, a := range attempts {
		r := byID[a.VariationID]
		r.attempts++
		if a.Success {
			r.successes++
		}
		byID[a.VariationID] = r
	}
	t := newTable(left("ID"), left("Name"), left("ECO"), left("Side"), right("Plies"), right("Attempts"), right("Rate"))
	for _, v := range variations {
		r := byID[v.ID]
		rate := "-"
		if r.attempts > 0 {
			rate = percent(Rate(r.successes, r.attempts))
		}
		t.add(v.ID, v.Name, v.ECOCode, string(v.PlayerSide), strconv.Itoa(len(v.Moves)), strconv.Itoa(r.attempts), rate)
	}
	return t.write(w)
}
