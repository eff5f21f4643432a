// Package analysis owns the background engine and serves evaluations to the trainer.
package analysis

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/verte-zerg/repertoire/internal/model"
	"github.com/verte-zerg/repertoire/internal/rules"
	"github.com/verte-zerg/repertoire/internal/uci"
)

// Defaults for Options.
const (
	DefaultDepth          = 12
	DefaultStreamLines    = 3
	DefaultStreamMoveTime = 3 * time.Second
	DefaultThrottle       = 50 * time.Millisecond
	DefaultEvalTimeout    = 15 * time.Second
	DefaultInitTimeout    = 5 * time.Second
)

// Options tune a Session.
type Options struct {
	Depth          int
	StreamLines    int
	StreamMoveTime time.Duration
	Throttle       time.Duration
	// EvalTimeout is the ceiling after which a depth-bounded search is stopped.
	EvalTimeout time.Duration
	InitTimeout time.Duration
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Depth <= 0 {
		o.Depth = DefaultDepth
	}
	if o.StreamLines <= 0 {
		o.StreamLines = DefaultStreamLines
	}
	if o.StreamMoveTime <= 0 {
		o.StreamMoveTime = DefaultStreamMoveTime
	}
	if o.Throttle <= 0 {
		o.Throttle = DefaultThrottle
	}
	if o.EvalTimeout <= 0 {
		o.EvalTimeout = DefaultEvalTimeout
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = DefaultInitTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// listener receives engine output for the request currently owning the worker.
type listener interface {
	info(uci.Info)
	best(move string)
	// detach is called once the listener loses the worker without a terminal line.
	detach()
}

// Session is the only component that talks to the engine.
// At most one request, one-shot or streaming, is live at a time.
type Session struct {
	opts   Options
	logger *slog.Logger
	worker uci.Worker

	mu       sync.Mutex
	ready    bool
	closed   bool
	current  listener
	stream   *Stream
	inFlight int // searches started but not yet answered with bestmove
	skip     int // bestmoves still owed to superseded searches

	done chan struct{}
}

// NewSession wraps a worker. Call Start before use. A nil worker yields a degraded session.
func NewSession(worker uci.Worker, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		opts:   opts,
		logger: opts.Logger,
		worker: worker,
		done:   make(chan struct{}),
	}
}

// Open launches the engine at path and starts a session.
// Launch or handshake failures are logged and leave the session degraded.
func Open(ctx context.Context, path string, opts Options) *Session {
	opts = opts.withDefaults()
	if path == "" {
		opts.Logger.Warn("no engine configured, analysis disabled")
		return NewSession(nil, opts)
	}
	proc, err := uci.Start(path)
	if err != nil {
		opts.Logger.Warn("failed to launch engine, analysis disabled", "path", path, "err", err)
		return NewSession(nil, opts)
	}
	s := NewSession(proc, opts)
	if err := s.Start(ctx); err != nil {
		if cerr := proc.Close(); cerr != nil {
			opts.Logger.Warn("failed to close engine after handshake failure", "path", path, "err", cerr)
		}
	}
	return s
}

// Start performs the protocol handshake and begins reading engine output.
func (s *Session) Start(ctx context.Context) error {
	if s.worker == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.InitTimeout)
	defer cancel()
	name, err := uci.Handshake(ctx, s.worker)
	if err != nil {
		s.logger.Warn("engine handshake failed, analysis disabled", "err", err)
		return err
	}
	s.logger.Info("engine ready", "name", name)
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	go s.readLoop()
	return nil
}

// Ready reports whether the engine is initialized.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.closed
}

func (s *Session) readLoop() {
	defer close(s.done)
	for line := range s.worker.Lines() {
		s.dispatch(line)
	}
	s.mu.Lock()
	s.ready = false
	l := s.current
	s.current = nil
	s.stream = nil
	s.mu.Unlock()
	if l != nil {
		l.detach()
	}
	s.logger.Warn("engine output closed")
}

func (s *Session) dispatch(line string) {
	if move, ok := uci.ParseBestMove(line); ok {
		s.mu.Lock()
		if s.inFlight > 0 {
			s.inFlight--
		}
		if s.skip > 0 {
			s.skip--
			s.mu.Unlock()
			return
		}
		l := s.current
		s.current = nil
		if st, ok := l.(*Stream); ok && s.stream == st {
			s.stream = nil
		}
		s.mu.Unlock()
		if l != nil {
			l.best(move)
		}
		return
	}
	info, ok := uci.ParseInfo(line)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.skip > 0 {
		s.mu.Unlock()
		return
	}
	l := s.current
	s.mu.Unlock()
	if l != nil {
		l.info(info)
	}
}

// begin installs l as the only listener and starts its search.
// The previous listener, if any, is detached after the slot is replaced.
func (s *Session) begin(l listener, stream *Stream, cmds ...string) bool {
	s.mu.Lock()
	if !s.ready || s.closed {
		s.mu.Unlock()
		return false
	}
	prev := s.current
	s.current = nil
	s.stream = nil
	s.send(uci.Stop)
	s.skip = s.inFlight
	for _, cmd := range cmds {
		s.send(cmd)
	}
	s.inFlight++
	s.current = l
	s.stream = stream
	s.mu.Unlock()
	if prev != nil {
		prev.detach()
	}
	return true
}

// release clears l from the slot if it still owns it and stops its search.
func (s *Session) release(l listener) {
	s.mu.Lock()
	if s.current != l {
		s.mu.Unlock()
		return
	}
	s.current = nil
	if st, ok := l.(*Stream); ok && s.stream == st {
		s.stream = nil
	}
	if s.ready {
		s.send(uci.Stop)
	}
	s.mu.Unlock()
}

// send must be called with s.mu held.
func (s *Session) send(cmd string) {
	if err := s.worker.Send(cmd); err != nil {
		s.logger.Warn("failed to send engine command", "cmd", cmd, "err", err)
	}
}

// stopSearch asks the engine to finish the current search early.
func (s *Session) stopSearch(l listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == l && s.ready {
		s.send(uci.Stop)
	}
}

// Evaluate runs a depth-bounded search with lines ranked candidates.
// Superseded calls and an unavailable engine yield an empty result, as does an expired context.
func (s *Session) Evaluate(ctx context.Context, fen string, lines int) (model.AnalysisResult, error) {
	if lines <= 0 {
		lines = 1
	}
	ev := newEvaluation(rules.SideToMove(fen))
	if !s.begin(ev, nil, uci.SetMultiPV(lines), uci.PositionFEN(fen), uci.GoDepth(s.opts.Depth)) {
		return model.AnalysisResult{}, nil
	}
	ceiling := time.NewTimer(s.opts.EvalTimeout)
	defer ceiling.Stop()
	stopped := false
	for {
		select {
		case res := <-ev.result:
			return res, nil
		case <-ctx.Done():
			s.release(ev)
			return model.AnalysisResult{}, ctx.Err()
		case <-ceiling.C:
			if stopped {
				s.logger.Warn("engine did not answer stop, abandoning evaluation", "fen", fen)
				s.release(ev)
				return model.AnalysisResult{}, nil
			}
			s.logger.Warn("evaluation hit safety ceiling, stopping search", "fen", fen)
			s.stopSearch(ev)
			stopped = true
			ceiling.Reset(time.Second)
		}
	}
}

// StopAnalysis cancels the active stream, if any.
func (s *Session) StopAnalysis() {
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st != nil {
		st.Cancel()
	}
}

// Close stops analysis and shuts the engine down.
func (s *Session) Close() error {
	s.StopAnalysis()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.ready
	l := s.current
	s.current = nil
	s.mu.Unlock()
	if l != nil {
		l.detach()
	}
	if s.worker == nil {
		return nil
	}
	err := s.worker.Close()
	if started {
		select {
		case <-s.done:
		case <-time.After(time.Second):
		}
	}
	return err
}

// evaluation accumulates ranked lines for one Evaluate call.
type evaluation struct {
	side   model.Side
	mu     sync.Mutex
	lines  map[int]model.CandidateMove
	result chan model.AnalysisResult
	once   sync.Once
}

func newEvaluation(side model.Side) *evaluation {
	return &evaluation{
		side:   side,
		lines:  map[int]model.CandidateMove{},
		result: make(chan model.AnalysisResult, 1),
	}
}

func (e *evaluation) info(info uci.Info) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines[info.MultiPV-1] = model.CandidateMove{
		Move:  info.Move(),
		Score: Normalize(info.Score, e.side),
		PV:    info.PV,
		Depth: info.Depth,
	}
}

func (e *evaluation) best(move string) {
	e.mu.Lock()
	ranks := make([]int, 0, len(e.lines))
	for r := range e.lines {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	res := model.AnalysisResult{BestMove: move}
	for _, r := range ranks {
		res.Candidates = append(res.Candidates, e.lines[r])
	}
	e.mu.Unlock()
	if len(res.Candidates) > 0 {
		top := res.Candidates[0].Score
		res.Evaluation = &top
		if res.BestMove == "" {
			res.BestMove = res.Candidates[0].Move
		}
	}
	e.resolve(res)
}

func (e *evaluation) detach() {
	e.resolve(model.AnalysisResult{})
}

func (e *evaluation) resolve(res model.AnalysisResult) {
	e.once.Do(func() {
		e.result <- res
	})
}

// Normalize converts a side-to-move score to White's point of view.
func Normalize(score model.Evaluation, toMove model.Side) model.Evaluation {
	if toMove == model.SideBlack {
		return score.Negate()
	}
	return score
}
