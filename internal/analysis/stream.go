package analysis

import (
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/rules"
	"github.com/verte-zerg/repertoire/internal/uci"
)

// Update is delivered to stream subscribers.
// Evaluation and Candidates are nil when unchanged since the previous update.
type Update struct {
	Evaluation *model.Evaluation
	Candidates []string
	Depth      int
	// Done is set on the last update of a search that ran to its time limit.
	Done bool
}

// Stream is a continuous, time-boxed analysis. Cancel is the cancellation token.
type Stream struct {
	session  *Session
	side     model.Side
	onUpdate func(Update)
	throttle time.Duration
	limiter  *rate.Limiter

	mu        sync.Mutex
	canceled  bool
	finished  bool
	timer     *time.Timer
	moves     map[int]string
	depth     int
	eval      *model.Evaluation
	sentEval  *model.Evaluation
	sentMoves []string
}

// StartStream cancels any previous stream and analyzes fen for a bounded time.
// onUpdate is called at most once per throttle interval and must not call back into the stream.
// With the engine unavailable the returned stream never delivers updates.
func (s *Session) StartStream(fen string, onUpdate func(Update)) *Stream {
	st := &Stream{
		session:  s,
		side:     rules.SideToMove(fen),
		onUpdate: onUpdate,
		throttle: s.opts.Throttle,
		limiter:  rate.NewLimiter(rate.Every(s.opts.Throttle), 1),
		moves:    map[int]string{},
	}
	s.StopAnalysis()
	ms := int(s.opts.StreamMoveTime / time.Millisecond)
	if !s.begin(st, st, uci.SetMultiPV(s.opts.StreamLines), uci.PositionFEN(fen), uci.GoMoveTime(ms)) {
		st.mu.Lock()
		st.finished = true
		st.mu.Unlock()
	}
	return st
}

// Cancel detaches the subscriber and stops the search. Safe to call repeatedly.
// No update is delivered after Cancel returns.
func (st *Stream) Cancel() {
	st.mu.Lock()
	if st.canceled {
		st.mu.Unlock()
		return
	}
	st.canceled = true
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	finished := st.finished
	st.mu.Unlock()
	if !finished {
		st.session.release(st)
	}
}

// Active reports whether the stream may still deliver updates.
func (st *Stream) Active() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return !st.canceled && !st.finished
}

func (st *Stream) info(info uci.Info) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.canceled || st.finished {
		return
	}
	st.moves[info.MultiPV-1] = info.Move()
	if info.MultiPV == 1 {
		eval := Normalize(info.Score, st.side)
		st.eval = &eval
		st.depth = info.Depth
	}
	if !st.dirtyLocked() {
		return
	}
	if st.limiter.Allow() {
		st.deliverLocked(false)
		return
	}
	if st.timer == nil {
		st.timer = time.AfterFunc(st.throttle, st.flush)
	}
}

func (st *Stream) flush() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.timer = nil
	if st.canceled || st.finished || !st.dirtyLocked() {
		return
	}
	st.limiter.Allow()
	st.deliverLocked(false)
}

func (st *Stream) best(string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.canceled || st.finished {
		return
	}
	st.finished = true
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.deliverLocked(true)
}

func (st *Stream) detach() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.canceled = true
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

func (st *Stream) candidatesLocked() []string {
	ranks := make([]int, 0, len(st.moves))
	for r := range st.moves {
		ranks = append(ranks, r)
	}
	slices.Sort(ranks)
	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		if m := st.moves[r]; m != "" {
			out = append(out, m)
		}
	}
	return out
}

func (st *Stream) dirtyLocked() bool {
	if st.eval != nil && (st.sentEval == nil || *st.eval != *st.sentEval) {
		return true
	}
	return !slices.Equal(st.candidatesLocked(), st.sentMoves)
}

func (st *Stream) deliverLocked(done bool) {
	u := Update{Depth: st.depth, Done: done}
	if st.eval != nil && (st.sentEval == nil || *st.eval != *st.sentEval) {
		eval := *st.eval
		u.Evaluation = &eval
		st.sentEval = &eval
	}
	if moves := st.candidatesLocked(); !slices.Equal(moves, st.sentMoves) {
		u.Candidates = moves
		st.sentMoves = moves
	}
	if u.Evaluation == nil && u.Candidates == nil && !done {
		return
	}
	if st.onUpdate != nil {
		st.onUpdate(u)
	}
}
