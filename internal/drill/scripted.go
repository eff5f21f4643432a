package drill

import (
	"fmt"
	"time"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/rules"
)

// ScriptedOptions tune a scripted drill.
type ScriptedOptions struct {
	HintPenalty   float64
	OpponentDelay time.Duration
	Now           func() time.Time
}

// Result describes the outcome of a user action.
type Result struct {
	Accepted bool
	Move     rules.Move
	// Expected is the scripted SAN when the user's move was rejected.
	Expected string
	// OpponentDue asks the caller to call PlayOpponent after OpponentDelay.
	OpponentDue bool
	Completed   bool
	Feedback    string
}

// Scripted drills a catalog variation move by move.
type Scripted struct {
	variation model.OpeningVariation
	opts      ScriptedOptions
	board     *rules.Board
	state     State
	ply       int
	mistakes  float64
	wrong     int
	hints     int
	moved     bool
	feedback  string
	seq       int
	clock     timer
}

// NewScripted prepares a drill for v. Call Start to begin.
func NewScripted(v model.OpeningVariation, opts ScriptedOptions) *Scripted {
	if opts.HintPenalty <= 0 {
		opts.HintPenalty = DefaultHintPenalty
	}
	if opts.OpponentDelay <= 0 {
		opts.OpponentDelay = DefaultOpponentDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scripted{
		variation: v,
		opts:      opts,
		board:     rules.NewBoard(),
		state:     AwaitingStart,
		clock:     timer{now: opts.Now},
	}
}

// Variation returns the drilled variation.
func (d *Scripted) Variation() model.OpeningVariation { return d.variation }

// Board returns the current position. Callers must not mutate it.
func (d *Scripted) Board() *rules.Board { return d.board }

// State returns the lifecycle state.
func (d *Scripted) State() State { return d.state }

// Ply returns the index of the next scripted move.
func (d *Scripted) Ply() int { return d.ply }

// Mistakes returns the accumulated penalty.
func (d *Scripted) Mistakes() float64 { return d.mistakes }

// Feedback returns the latest message for the user.
func (d *Scripted) Feedback() string { return d.feedback }

// OpponentDelay is how long callers wait before PlayOpponent.
func (d *Scripted) OpponentDelay() time.Duration { return d.opts.OpponentDelay }

// Seq changes whenever the drill state changes; scheduled callbacks compare it to detect staleness.
func (d *Scripted) Seq() int { return d.seq }

// Start begins the drill. It reports whether the opponent moves first.
func (d *Scripted) Start() bool {
	d.board = rules.NewBoard()
	d.ply = 0
	d.mistakes = 0
	d.wrong = 0
	d.hints = 0
	d.moved = false
	d.feedback = ""
	d.clock.start()
	return d.advance()
}

// Reset restarts the variation from the initial position.
func (d *Scripted) Reset() bool {
	return d.Start()
}

// advance picks the next state after a ply and reports whether the opponent is due.
func (d *Scripted) advance() bool {
	d.seq++
	if d.ply >= len(d.variation.Moves) {
		d.state = Completed
		d.clock.finish()
		d.feedback = "Variation Complete!"
		return false
	}
	if d.variation.IsUserPly(d.ply) {
		d.state = AwaitingUserMove
		d.clock.userTurn()
		return false
	}
	d.state = AwaitingOpponentMove
	return true
}

func (d *Scripted) userTurn() error {
	switch d.state {
	case AwaitingStart:
		return ErrNotStarted
	case Completed:
		return ErrCompleted
	case AwaitingOpponentMove:
		return ErrNotYourTurn
	}
	return nil
}

func (d *Scripted) expected() (rules.Move, error) {
	san := d.variation.Moves[d.ply]
	m, err := d.board.ParseSAN(san)
	if err != nil {
		return rules.Move{}, fmt.Errorf("%w: %s at ply %d: %v", ErrBadScript, san, d.ply, err)
	}
	return m, nil
}

// Expected returns the scripted SAN for the current ply.
func (d *Scripted) Expected() string {
	if d.ply >= len(d.variation.Moves) {
		return ""
	}
	return d.variation.Moves[d.ply]
}

// Submit validates a user move given as SAN or coordinates.
// Illegal input returns an error and leaves the drill unchanged.
// A legal move that differs from the script is rejected and counted as a mistake.
func (d *Scripted) Submit(input string) (Result, error) {
	if err := d.userTurn(); err != nil {
		return Result{}, err
	}
	user, err := d.board.Parse(input)
	if err != nil {
		return Result{}, err
	}
	want, err := d.expected()
	if err != nil {
		return Result{}, err
	}
	if !user.SameSquares(want) {
		d.mistakes++
		d.wrong++
		d.moved = true
		d.feedback = fmt.Sprintf("Incorrect! Expected %s", d.variation.Moves[d.ply])
		d.seq++
		return Result{Move: user, Expected: d.variation.Moves[d.ply], Feedback: d.feedback}, nil
	}
	if err := d.board.Play(want); err != nil {
		return Result{}, err
	}
	d.clock.userMoved()
	d.moved = true
	d.ply++
	d.feedback = "Correct!"
	due := d.advance()
	return Result{
		Accepted:    true,
		Move:        want,
		OpponentDue: due,
		Completed:   d.state == Completed,
		Feedback:    d.feedback,
	}, nil
}

// Hint plays the scripted move for the user at the cost of a partial mistake.
func (d *Scripted) Hint() (Result, error) {
	if err := d.userTurn(); err != nil {
		return Result{}, err
	}
	want, err := d.expected()
	if err != nil {
		return Result{}, err
	}
	if err := d.board.Play(want); err != nil {
		return Result{}, err
	}
	d.mistakes += d.opts.HintPenalty
	d.hints++
	d.moved = true
	d.ply++
	d.feedback = fmt.Sprintf("Hint: %s", want.SAN)
	due := d.advance()
	return Result{
		Accepted:    true,
		Move:        want,
		OpponentDue: due,
		Completed:   d.state == Completed,
		Feedback:    d.feedback,
	}, nil
}

// PlayOpponent plays the scripted reply.
func (d *Scripted) PlayOpponent() (Result, error) {
	if d.state != AwaitingOpponentMove {
		return Result{}, ErrNotOpponent
	}
	want, err := d.expected()
	if err != nil {
		return Result{}, err
	}
	if err := d.board.Play(want); err != nil {
		return Result{}, err
	}
	d.ply++
	due := d.advance()
	return Result{
		Accepted:    true,
		Move:        want,
		OpponentDue: due,
		Completed:   d.state == Completed,
		Feedback:    d.feedback,
	}, nil
}

// Undo takes back moves until it is the user's turn again.
// Any pending opponent reply becomes stale.
func (d *Scripted) Undo() error {
	switch d.state {
	case AwaitingStart:
		return ErrNotStarted
	case Completed:
		return ErrCompleted
	}
	target := -1
	for i := d.ply - 1; i >= 0; i-- {
		if d.variation.IsUserPly(i) {
			target = i
			break
		}
	}
	if target < 0 {
		return ErrNothingToUndo
	}
	for d.ply > target && d.board.Undo() {
		d.ply--
	}
	d.feedback = ""
	d.advance()
	return nil
}

// Skip abandons the drill. It returns the attempt to record, or false when nothing was played.
func (d *Scripted) Skip() (model.TrainingAttempt, bool) {
	if d.state == AwaitingStart || d.state == Completed {
		return model.TrainingAttempt{}, false
	}
	d.state = Completed
	d.clock.finish()
	d.seq++
	if !d.moved {
		return model.TrainingAttempt{}, false
	}
	attempt := d.attempt()
	attempt.Success = false
	return attempt, true
}

// Attempt builds the record for a completed drill.
func (d *Scripted) Attempt() (model.TrainingAttempt, error) {
	if d.state != Completed {
		return model.TrainingAttempt{}, fmt.Errorf("drill is %s", d.state)
	}
	return d.attempt(), nil
}

func (d *Scripted) attempt() model.TrainingAttempt {
	return model.TrainingAttempt{
		VariationID:      d.variation.ID,
		VariationName:    d.variation.Name,
		ParentOpening:    d.variation.ParentOpening,
		Category:         d.variation.Category,
		PlayerSide:       d.variation.PlayerSide,
		DurationMs:       d.clock.durationMs(),
		AvgTimePerMoveMs: d.clock.avgMs(),
		Success:          d.wrong == 0 && d.hints == 0,
		MistakeCount:     d.mistakes,
	}
}
