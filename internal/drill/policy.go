package drill

// OpeningMoves are the first White moves an AI sparring game can start with.
var OpeningMoves = []string{"e4", "d4", "Nf3", "b3"}

// ChooseAIMove picks the opponent's reply by its move number n, counted from 0.
// ranked holds engine candidates best first; legal holds every legal move.
// Moves 0 and 1 vary among the top three, move 2 usually concedes a gap,
// move 3 is random and later moves are full strength.
func ChooseAIMove(n int, ranked, legal []string, rnd Source) string {
	if len(ranked) == 0 {
		if len(legal) == 0 {
			return ""
		}
		return legal[pick(rnd, len(legal))]
	}
	top := ranked
	if len(top) > 3 {
		top = top[:3]
	}
	switch {
	case n <= 1:
		return top[pick(rnd, len(top))]
	case n == 2:
		if rnd.Float64() < 0.33 || len(top) == 1 {
			return top[0]
		}
		rest := top[1:]
		return rest[pick(rnd, len(rest))]
	case n == 3:
		if len(legal) == 0 {
			return top[0]
		}
		return legal[pick(rnd, len(legal))]
	}
	return top[0]
}
