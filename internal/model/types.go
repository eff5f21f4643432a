// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Category partitions the catalog into independent decks.
type Category string

const (
	CategoryBook Category = "book"
	CategoryTrap Category = "trap"

	// CategorySparring tags AI sparring attempts. It is not a catalog deck.
	CategorySparring Category = "sparring"
)

// SparringVariationID is the pseudo-variation AI sparring attempts are logged under.
const SparringVariationID = "ai-sparring"

// Categories lists every known deck in display order.
var Categories = []Category{CategoryBook, CategoryTrap}

// ParseCategory maps a user string onto a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryBook:
		return CategoryBook, nil
	case CategoryTrap:
		return CategoryTrap, nil
	}
	return "", fmt.Errorf("unknown category %q (expected book or trap)", s)
}

// Side is the color the human drills.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// ParseSide accepts "white", "black", "w" and "b".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "w", "white":
		return SideWhite, nil
	case "b", "black":
		return SideBlack, nil
	}
	return "", fmt.Errorf("unknown side %q (expected white or black)", s)
}

// Opposite returns the other color.
func (s Side) Opposite() Side {
	if s == SideBlack {
		return SideWhite
	}
	return SideBlack
}

// Mode selects how the next variation is chosen.
type Mode string

const (
	ModeTraining  Mode = "training"
	ModeChallenge Mode = "challenge"
)

// ParseMode maps a user string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTraining:
		return ModeTraining, nil
	case ModeChallenge:
		return ModeChallenge, nil
	}
	return "", fmt.Errorf("unknown mode %q (expected training or challenge)", s)
}

// OutcomeProfile holds historical game results for a variation.
type OutcomeProfile struct {
	WhiteWinPct float64
	BlackWinPct float64
	DrawPct     float64
}

// OpeningVariation is an immutable catalog entry.
type OpeningVariation struct {
	ID             string
	Name           string
	ECOCode        string
	ParentOpening  string
	Moves          []string
	PlayerSide     Side
	Category       Category
	Themes         []string
	Description    string
	FollowupAdvice string
	ReferenceFEN   string
	Profile        *OutcomeProfile
}

// UserPlies counts the moves the human makes in the variation.
func (v OpeningVariation) UserPlies() int {
	n := 0
	for i := range v.Moves {
		if v.IsUserPly(i) {
			n++
		}
	}
	return n
}

// IsUserPly reports whether ply index i belongs to the human.
func (v OpeningVariation) IsUserPly(i int) bool {
	white := i%2 == 0
	if v.PlayerSide == SideBlack {
		return !white
	}
	return white
}

// TrainingAttempt records one completed or abandoned drill.
type TrainingAttempt struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	VariationID      string    `json:"variation_id"`
	VariationName    string    `json:"variation_name,omitempty"`
	ParentOpening    string    `json:"parent_opening,omitempty"`
	Category         Category  `json:"category"`
	PlayerSide       Side      `json:"player_side"`
	DurationMs       int64     `json:"duration_ms"`
	AvgTimePerMoveMs int64     `json:"avg_time_per_move_ms"`
	Success          bool      `json:"success"`
	MistakeCount     float64   `json:"mistake_count"`
}

// DeckProgress holds the variation IDs completed in the current cycle.
type DeckProgress struct {
	Book []string `json:"book"`
	Trap []string `json:"trap"`
}

// IDs returns the completed set for a category.
func (p DeckProgress) IDs(c Category) []string {
	if c == CategoryTrap {
		return p.Trap
	}
	return p.Book
}

// SetIDs replaces the completed set for a category.
func (p *DeckProgress) SetIDs(c Category, ids []string) {
	if c == CategoryTrap {
		p.Trap = ids
		return
	}
	p.Book = ids
}

// EvalKind tags an Evaluation.
type EvalKind string

const (
	EvalCentipawn EvalKind = "cp"
	EvalMate      EvalKind = "mate"
)

// Evaluation is a score from White's point of view once normalized.
// For EvalMate, Value is the number of moves to mate and its sign names the mating side.
type Evaluation struct {
	Kind  EvalKind
	Value int
}

// Negate flips the point of view.
func (e Evaluation) Negate() Evaluation {
	return Evaluation{Kind: e.Kind, Value: -e.Value}
}

// CandidateMove is one ranked engine line.
type CandidateMove struct {
	Move  string
	Score Evaluation
	PV    []string
	Depth int
}

// AnalysisResult is a transient engine answer.
type AnalysisResult struct {
	BestMove   string
	Evaluation *Evaluation
	Candidates []CandidateMove
}

// Empty reports whether no evaluation is available.
func (r AnalysisResult) Empty() bool {
	return r.BestMove == "" && len(r.Candidates) == 0
}

// Moves returns candidate moves in rank order.
func (r AnalysisResult) Moves() []string {
	out := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if c.Move != "" {
			out = append(out, c.Move)
		}
	}
	return out
}

// Config defines trainer settings after flags and file are merged.
type Config struct {
	Mode          Mode
	Category      Category
	CatalogPath   string
	RepeatDamping float64
	HintPenalty   float64
	Engine        EngineConfig
	Sparring      SparringConfig
	Store         StoreConfig
}

// EngineConfig configures the analysis worker.
type EngineConfig struct {
	Path             string
	Depth            int
	EvalLines        int
	StreamLines      int
	StreamMoveTimeMs int
	ThrottleMs       int
	EvalTimeoutMs    int
	InitTimeoutMs    int
}

// SparringConfig configures open drills against the engine.
type SparringConfig struct {
	Moves       int
	StabilizeMs int
	PlayerSide  Side
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string
	Path    string
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Category    Category
	Since       *time.Time
	Last        int
	TrendWindow int
}
