package analysis

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/repertoire/internal/model"
)

const (
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	afterE4  = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
)

type search struct {
	infos []string
	best  string
	hold  bool
}

// fakeEngine answers commands synchronously from a script keyed by FEN.
type fakeEngine struct {
	mu        sync.Mutex
	lines     chan string
	sent      []string
	searches  map[string]search
	fen       string
	searching string
	silent    bool
	closed    bool
}

func newFakeEngine(searches map[string]search) *fakeEngine {
	return &fakeEngine{lines: make(chan string, 1024), searches: searches}
}

func (f *fakeEngine) Send(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	if f.silent || f.closed {
		return nil
	}
	switch {
	case cmd == "uci":
		f.lines <- "id name Fake 1.0"
		f.lines <- "uciok"
	case cmd == "isready":
		f.lines <- "readyok"
	case strings.HasPrefix(cmd, "position fen "):
		f.fen = strings.TrimPrefix(cmd, "position fen ")
	case strings.HasPrefix(cmd, "go movetime"):
		sc := f.searches[f.fen]
		for _, l := range sc.infos {
			f.lines <- l
		}
		f.searching = sc.best
	case strings.HasPrefix(cmd, "go "):
		sc := f.searches[f.fen]
		for _, l := range sc.infos {
			f.lines <- l
		}
		if sc.hold {
			f.searching = sc.best
			return nil
		}
		f.lines <- "bestmove " + sc.best
	case cmd == "stop":
		if f.searching != "" {
			f.lines <- "bestmove " + f.searching
			f.searching = ""
		}
	}
	return nil
}

func (f *fakeEngine) Lines() <-chan string { return f.lines }

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.lines)
	}
	return nil
}

func (f *fakeEngine) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func startSession(t *testing.T, f *fakeEngine, opts Options) *Session {
	t.Helper()
	s := NewSession(f, opts)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return s
}

func TestEvaluateRankedResult(t *testing.T) {
	f := newFakeEngine(map[string]search{
		startFEN: {
			infos: []string{
				"info depth 1 multipv 1 score cp 10 pv d2d4",
				"info depth 1 multipv 2 score cp 5 pv e2e4",
				"info depth 12 multipv 1 score cp 30 pv e2e4 e7e5",
				"info depth 12 multipv 2 score cp 25 pv d2d4 d7d5",
			},
			best: "e2e4",
		},
	})
	s := startSession(t, f, Options{})
	res, err := s.Evaluate(context.Background(), startFEN, 2)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.BestMove != "e2e4" {
		t.Fatalf("unexpected best move %q", res.BestMove)
	}
	if len(res.Candidates) != 2 || res.Candidates[0].Move != "e2e4" || res.Candidates[1].Move != "d2d4" {
		t.Fatalf("expected deeper lines to overwrite, got %+v", res.Candidates)
	}
	if res.Evaluation == nil || *res.Evaluation != (model.Evaluation{Kind: model.EvalCentipawn, Value: 30}) {
		t.Fatalf("unexpected evaluation %+v", res.Evaluation)
	}
	cmds := f.commands()
	want := []string{"stop", "setoption name MultiPV value 2", "position fen " + startFEN, "go depth 12"}
	got := cmds[len(cmds)-4:]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected command sequence %v", got)
		}
	}
}

func TestEvaluateSignCorrection(t *testing.T) {
	f := newFakeEngine(map[string]search{
		afterE4: {infos: []string{"info depth 12 multipv 1 score cp 40 pv c7c5"}, best: "c7c5"},
	})
	s := startSession(t, f, Options{})
	res, err := s.Evaluate(context.Background(), afterE4, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Evaluation == nil || res.Evaluation.Value != -40 {
		t.Fatalf("expected score from white's view, got %+v", res.Evaluation)
	}
}

func TestEvaluateBackToBackNoCrossTalk(t *testing.T) {
	f := newFakeEngine(map[string]search{
		startFEN: {infos: []string{"info depth 3 multipv 1 score cp 20 pv g1f3"}, best: "g1f3", hold: true},
		afterE4:  {infos: []string{"info depth 12 multipv 1 score cp 35 pv e7e5"}, best: "e7e5"},
	})
	s := startSession(t, f, Options{})

	first := make(chan model.AnalysisResult, 1)
	go func() {
		res, _ := s.Evaluate(context.Background(), startFEN, 1)
		first <- res
	}()
	waitFor(t, func() bool {
		for _, c := range f.commands() {
			if c == "go depth 12" {
				return true
			}
		}
		return false
	})

	second, err := s.Evaluate(context.Background(), afterE4, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if second.BestMove != "e7e5" {
		t.Fatalf("second call got %q", second.BestMove)
	}
	select {
	case res := <-first:
		if !res.Empty() {
			t.Fatalf("superseded call must resolve empty, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("superseded call did not resolve")
	}
}

func TestEvaluateSafetyCeiling(t *testing.T) {
	f := newFakeEngine(map[string]search{
		startFEN: {infos: []string{"info depth 30 multipv 1 score cp 15 pv c2c4"}, best: "c2c4", hold: true},
	})
	s := startSession(t, f, Options{EvalTimeout: 30 * time.Millisecond})
	res, err := s.Evaluate(context.Background(), startFEN, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.BestMove != "c2c4" {
		t.Fatalf("expected partial result after stop, got %+v", res)
	}
}

func TestEvaluateContextCanceled(t *testing.T) {
	f := newFakeEngine(map[string]search{startFEN: {best: "e2e4", hold: true}})
	s := startSession(t, f, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := s.Evaluate(ctx, startFEN, 1)
	if err == nil || !res.Empty() {
		t.Fatalf("expected empty result with error, got %+v %v", res, err)
	}
}

func TestDegradedSession(t *testing.T) {
	s := NewSession(nil, Options{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Ready() {
		t.Fatalf("nil worker must not be ready")
	}
	res, err := s.Evaluate(context.Background(), startFEN, 3)
	if err != nil || !res.Empty() {
		t.Fatalf("expected empty result, got %+v %v", res, err)
	}
	st := s.StartStream(startFEN, func(Update) { t.Fatalf("degraded stream must not deliver") })
	if st.Active() {
		t.Fatalf("degraded stream must be inactive")
	}
	st.Cancel()
	st.Cancel()
	s.StopAnalysis()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestHandshakeFailureDegrades(t *testing.T) {
	f := newFakeEngine(nil)
	f.silent = true
	s := NewSession(f, Options{InitTimeout: 20 * time.Millisecond})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected handshake error")
	}
	res, err := s.Evaluate(context.Background(), startFEN, 1)
	if err != nil || !res.Empty() {
		t.Fatalf("expected empty result, got %+v %v", res, err)
	}
}

func TestOpenWithoutEngine(t *testing.T) {
	s := Open(context.Background(), "", Options{})
	if s.Ready() {
		t.Fatalf("expected degraded session")
	}
	s = Open(context.Background(), "/nonexistent/engine-binary", Options{})
	if s.Ready() {
		t.Fatalf("expected degraded session for missing binary")
	}
}

func TestOpenLogsCloseFailure(t *testing.T) {
	path, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false binary not available")
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := Open(context.Background(), path, Options{InitTimeout: 500 * time.Millisecond, Logger: logger})
	if s.Ready() {
		t.Fatalf("expected degraded session for an engine that exits")
	}
	out := buf.String()
	if !strings.Contains(out, "engine handshake failed") {
		t.Fatalf("expected handshake warning, got:\n%s", out)
	}
	if !strings.Contains(out, "failed to close engine after handshake failure") {
		t.Fatalf("expected close error to be logged, got:\n%s", out)
	}
}

func TestEngineExitResolvesPending(t *testing.T) {
	f := newFakeEngine(map[string]search{startFEN: {best: "e2e4", hold: true}})
	s := NewSession(f, Options{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan model.AnalysisResult, 1)
	go func() {
		res, _ := s.Evaluate(context.Background(), startFEN, 1)
		done <- res
	}()
	waitFor(t, func() bool { return len(f.commands()) >= 6 })
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case res := <-done:
		if !res.Empty() {
			t.Fatalf("expected empty result, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("pending evaluation did not resolve")
	}
	waitFor(t, func() bool { return !s.Ready() })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
