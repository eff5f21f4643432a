// Package drill validates user moves and tracks drill progress.
package drill

import (
	"errors"
	"math/rand"
	"time"
)

// State is the drill lifecycle.
type State int

const (
	AwaitingStart State = iota
	AwaitingUserMove
	AwaitingOpponentMove
	Completed
)

func (s State) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting-start"
	case AwaitingUserMove:
		return "awaiting-user-move"
	case AwaitingOpponentMove:
		return "awaiting-opponent-move"
	case Completed:
		return "completed"
	}
	return "unknown"
}

var (
	ErrNotStarted    = errors.New("drill not started")
	ErrNotYourTurn   = errors.New("not the user's turn")
	ErrNotOpponent   = errors.New("not the opponent's turn")
	ErrCompleted     = errors.New("drill already completed")
	ErrNotReady      = errors.New("candidate moves are still being computed")
	ErrBadScript     = errors.New("scripted move is illegal")
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Defaults shared by drill types.
const (
	DefaultHintPenalty   = 0.5
	DefaultOpponentDelay = 500 * time.Millisecond
	DefaultSparringMoves = 5
	DefaultStabilize     = 1500 * time.Millisecond
)

// Source yields uniform floats in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

func pick(rnd Source, n int) int {
	if n <= 1 {
		return 0
	}
	i := int(rnd.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

func defaultSource() Source {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// timer tracks drill duration and the latency of the user's own moves.
type timer struct {
	now       func() time.Time
	startedAt time.Time
	endedAt   time.Time
	turnAt    time.Time
	total     time.Duration
	count     int
}

func (t *timer) start() {
	t.startedAt = t.now()
	t.turnAt = t.startedAt
	t.endedAt = time.Time{}
	t.total = 0
	t.count = 0
}

// userTurn marks the moment the user may move.
func (t *timer) userTurn() {
	t.turnAt = t.now()
}

// userMoved records the latency since the user's turn began.
func (t *timer) userMoved() {
	t.total += t.now().Sub(t.turnAt)
	t.count++
}

func (t *timer) finish() {
	t.endedAt = t.now()
}

func (t *timer) durationMs() int64 {
	end := t.endedAt
	if end.IsZero() {
		end = t.now()
	}
	return end.Sub(t.startedAt).Milliseconds()
}

func (t *timer) avgMs() int64 {
	if t.count == 0 {
		return 0
	}
	return (t.total / time.Duration(t.count)).Milliseconds()
}
