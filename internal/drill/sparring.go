package drill

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/rules"
)

// Sparring attempts are recorded under this pseudo-variation.
const (
	SparringID   = model.SparringVariationID
	SparringName = "AI Sparring"
)

// Evaluator answers one-shot analysis requests.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string, lines int) (model.AnalysisResult, error)
}

// SparringOptions tune an open drill.
type SparringOptions struct {
	Moves     int
	Stabilize time.Duration
	// AILines is the candidate breadth requested for the opponent's move.
	AILines int
	Rand    Source
	Now     func() time.Time
}

// Sparring validates user moves against the engine's current candidate set.
type Sparring struct {
	side      model.Side
	opts      SparringOptions
	engine    Evaluator
	board     *rules.Board
	state     State
	userMoves int
	aiMoves   int
	mistakes  float64
	moved     bool
	feedback  string
	seq       int
	clock     timer

	candFEN    string
	candidates []string
	candFinal  bool
}

// NewSparring prepares an open drill with the user playing side.
func NewSparring(side model.Side, engine Evaluator, opts SparringOptions) *Sparring {
	if opts.Moves <= 0 {
		opts.Moves = DefaultSparringMoves
	}
	if opts.Stabilize <= 0 {
		opts.Stabilize = DefaultStabilize
	}
	if opts.AILines <= 0 {
		opts.AILines = 3
	}
	if opts.Rand == nil {
		opts.Rand = defaultSource()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if side == "" {
		side = model.SideWhite
	}
	return &Sparring{
		side:   side,
		opts:   opts,
		engine: engine,
		board:  rules.NewBoard(),
		state:  AwaitingStart,
		clock:  timer{now: opts.Now},
	}
}

// Board returns the current position. Callers must not mutate it.
func (s *Sparring) Board() *rules.Board { return s.board }

// State returns the lifecycle state.
func (s *Sparring) State() State { return s.state }

// Side returns the user's color.
func (s *Sparring) Side() model.Side { return s.side }

// UserMoves returns how many user moves were accepted.
func (s *Sparring) UserMoves() int { return s.userMoves }

// MoveLimit returns the number of accepted moves that completes the drill.
func (s *Sparring) MoveLimit() int { return s.opts.Moves }

// Mistakes returns the accumulated penalty.
func (s *Sparring) Mistakes() float64 { return s.mistakes }

// Feedback returns the latest message for the user.
func (s *Sparring) Feedback() string { return s.feedback }

// Seq changes whenever the drill state changes.
func (s *Sparring) Seq() int { return s.seq }

// Start plays a book first move for White. It reports whether the AI moves next.
func (s *Sparring) Start() (rules.Move, bool, error) {
	s.board = rules.NewBoard()
	s.userMoves = 0
	s.aiMoves = 0
	s.mistakes = 0
	s.moved = false
	s.feedback = ""
	s.clearCandidates()
	s.clock.start()
	san := OpeningMoves[pick(s.opts.Rand, len(OpeningMoves))]
	first, err := s.board.PlaySAN(san)
	if err != nil {
		return rules.Move{}, false, err
	}
	s.seq++
	if s.side == model.SideWhite {
		s.state = AwaitingOpponentMove
		return first, true, nil
	}
	s.state = AwaitingUserMove
	s.clock.userTurn()
	return first, false, nil
}

func (s *Sparring) clearCandidates() {
	s.candFEN = ""
	s.candidates = nil
	s.candFinal = false
}

// SetCandidates feeds the engine's top moves for fen. Updates for other positions are ignored.
// final marks the search as finished, which makes the set usable before the stabilization window.
func (s *Sparring) SetCandidates(fen string, moves []string, final bool) {
	if fen != s.board.FEN() {
		return
	}
	s.candFEN = fen
	if moves != nil {
		s.candidates = slices.Clone(moves)
	}
	if final {
		s.candFinal = true
	}
}

// Candidates returns the current candidate set.
func (s *Sparring) Candidates() []string {
	return slices.Clone(s.candidates)
}

// Ready reports whether the candidate set may be used to validate a move.
func (s *Sparring) Ready() bool {
	if s.state != AwaitingUserMove {
		return false
	}
	if s.candFEN != s.board.FEN() || len(s.candidates) == 0 {
		return false
	}
	return s.candFinal || s.opts.Now().Sub(s.clock.turnAt) >= s.opts.Stabilize
}

// Submit accepts a user move when it is among the engine's candidates.
func (s *Sparring) Submit(input string) (Result, error) {
	switch s.state {
	case AwaitingStart:
		return Result{}, ErrNotStarted
	case Completed:
		return Result{}, ErrCompleted
	case AwaitingOpponentMove:
		return Result{}, ErrNotYourTurn
	}
	user, err := s.board.Parse(input)
	if err != nil {
		return Result{}, err
	}
	if !s.Ready() {
		return Result{}, ErrNotReady
	}
	s.moved = true
	if !slices.Contains(s.candidates, user.UCI) {
		s.mistakes++
		preferred := s.candidates[0]
		if san, err := s.board.UCIToSAN(preferred); err == nil {
			preferred = san
		}
		s.feedback = fmt.Sprintf("Incorrect! Engine prefers %s", preferred)
		s.seq++
		return Result{Move: user, Expected: preferred, Feedback: s.feedback}, nil
	}
	if err := s.board.Play(user); err != nil {
		return Result{}, err
	}
	s.clock.userMoved()
	s.userMoves++
	s.clearCandidates()
	s.seq++
	if s.userMoves >= s.opts.Moves {
		s.state = Completed
		s.clock.finish()
		s.feedback = "Sparring Complete!"
		return Result{Accepted: true, Move: user, Completed: true, Feedback: s.feedback}, nil
	}
	if s.board.GameOver() {
		s.state = Completed
		s.clock.finish()
		s.feedback = "Game over"
		return Result{Accepted: true, Move: user, Completed: true, Feedback: s.feedback}, nil
	}
	s.feedback = "Good move!"
	s.state = AwaitingOpponentMove
	return Result{Accepted: true, Move: user, OpponentDue: true, Feedback: s.feedback}, nil
}

// PlayOpponent asks the engine for candidates and plays the policy's choice.
func (s *Sparring) PlayOpponent(ctx context.Context) (Result, error) {
	if s.state != AwaitingOpponentMove {
		return Result{}, ErrNotOpponent
	}
	var res model.AnalysisResult
	if s.engine != nil {
		var err error
		res, err = s.engine.Evaluate(ctx, s.board.FEN(), s.opts.AILines)
		if err != nil {
			return Result{}, err
		}
	}
	return s.ApplyOpponent(s.board.FEN(), res)
}

// OpponentLines is the candidate breadth to request for the opponent's move.
func (s *Sparring) OpponentLines() int { return s.opts.AILines }

// ApplyOpponent plays the policy's choice from an analysis of fen.
// An empty result falls back to a random legal move.
func (s *Sparring) ApplyOpponent(fen string, res model.AnalysisResult) (Result, error) {
	if s.state != AwaitingOpponentMove {
		return Result{}, ErrNotOpponent
	}
	legal := s.board.LegalMoves()
	legalUCI := make([]string, len(legal))
	for i, m := range legal {
		legalUCI[i] = m.UCI
	}
	var ranked []string
	if fen == s.board.FEN() {
		for _, m := range res.Moves() {
			if slices.Contains(legalUCI, m) {
				ranked = append(ranked, m)
			}
		}
	}
	choice := ChooseAIMove(s.aiMoves, ranked, legalUCI, s.opts.Rand)
	if choice == "" {
		s.state = Completed
		s.clock.finish()
		s.feedback = "Game over"
		s.seq++
		return Result{Completed: true, Feedback: s.feedback}, nil
	}
	m, err := s.board.PlayUCI(choice)
	if err != nil {
		return Result{}, err
	}
	s.aiMoves++
	s.seq++
	if s.board.GameOver() {
		s.state = Completed
		s.clock.finish()
		s.feedback = "Game over"
		return Result{Accepted: true, Move: m, Completed: true, Feedback: s.feedback}, nil
	}
	s.state = AwaitingUserMove
	s.clock.userTurn()
	return Result{Accepted: true, Move: m}, nil
}

// Skip abandons the drill. It returns the attempt to record, or false when nothing was played.
func (s *Sparring) Skip() (model.TrainingAttempt, bool) {
	if s.state == AwaitingStart || s.state == Completed {
		return model.TrainingAttempt{}, false
	}
	s.state = Completed
	s.clock.finish()
	s.seq++
	if !s.moved {
		return model.TrainingAttempt{}, false
	}
	attempt := s.attempt()
	attempt.Success = false
	return attempt, true
}

// Attempt builds the record for a completed drill.
func (s *Sparring) Attempt() (model.TrainingAttempt, error) {
	if s.state != Completed {
		return model.TrainingAttempt{}, fmt.Errorf("drill is %s", s.state)
	}
	return s.attempt(), nil
}

func (s *Sparring) attempt() model.TrainingAttempt {
	return model.TrainingAttempt{
		VariationID:      SparringID,
		VariationName:    SparringName,
		ParentOpening:    SparringName,
		Category:         model.CategorySparring,
		PlayerSide:       s.side,
		DurationMs:       s.clock.durationMs(),
		AvgTimePerMoveMs: s.clock.avgMs(),
		Success:          s.mistakes == 0 && s.userMoves >= s.opts.Moves,
		MistakeCount:     s.mistakes,
	}
}
