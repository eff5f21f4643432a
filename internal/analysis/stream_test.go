package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/repertoire/internal/model"
)

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) add(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recorder) lastCandidates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.updates) - 1; i >= 0; i-- {
		if r.updates[i].Candidates != nil {
			return r.updates[i].Candidates
		}
	}
	return nil
}

func streamEngine() *fakeEngine {
	return newFakeEngine(map[string]search{
		afterE4: {
			infos: []string{
				"info depth 8 multipv 1 score cp -20 pv c7c5 g1f3",
				"info depth 8 multipv 2 score cp -30 pv e7e5 g1f3",
				"info depth 8 multipv 3 score cp -35 pv e7e6 d2d4",
			},
			best: "c7c5",
		},
		startFEN: {
			infos: []string{"info depth 12 multipv 1 score cp 25 pv e2e4"},
			best:  "e2e4",
		},
	})
}

func TestStreamThrottledCandidates(t *testing.T) {
	f := streamEngine()
	s := startSession(t, f, Options{Throttle: 30 * time.Millisecond})
	rec := &recorder{}
	st := s.StartStream(afterE4, rec.add)
	defer st.Cancel()

	waitFor(t, func() bool { return len(rec.lastCandidates()) == 3 })
	if got := rec.count(); got != 2 {
		t.Fatalf("expected burst to coalesce into 2 updates, got %d", got)
	}
	first := rec.updates[0]
	if first.Evaluation == nil || first.Evaluation.Value != 20 {
		t.Fatalf("expected sign-corrected evaluation, got %+v", first.Evaluation)
	}
	want := []string{"c7c5", "e7e5", "e7e6"}
	for i, m := range rec.lastCandidates() {
		if m != want[i] {
			t.Fatalf("unexpected candidates %v", rec.lastCandidates())
		}
	}
	found := false
	for _, c := range f.commands() {
		if c == "go movetime 3000" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected time-boxed search, got %v", f.commands())
	}
}

func TestStreamCancelIdempotent(t *testing.T) {
	f := streamEngine()
	s := startSession(t, f, Options{Throttle: 200 * time.Millisecond})
	rec := &recorder{}
	st := s.StartStream(afterE4, rec.add)
	waitFor(t, func() bool { return rec.count() >= 1 })

	st.Cancel()
	after := rec.count()
	st.Cancel()
	s.StopAnalysis()
	time.Sleep(250 * time.Millisecond)
	if rec.count() != after {
		t.Fatalf("updates delivered after cancel: %d -> %d", after, rec.count())
	}
	if st.Active() {
		t.Fatalf("canceled stream must be inactive")
	}
}

func TestEvaluateStopsStream(t *testing.T) {
	f := streamEngine()
	s := startSession(t, f, Options{Throttle: 100 * time.Millisecond})
	rec := &recorder{}
	st := s.StartStream(afterE4, rec.add)
	waitFor(t, func() bool { return rec.count() >= 1 })

	res, err := s.Evaluate(context.Background(), startFEN, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.BestMove != "e2e4" {
		t.Fatalf("evaluation cross-talk: got %q", res.BestMove)
	}
	after := rec.count()
	time.Sleep(150 * time.Millisecond)
	if rec.count() != after {
		t.Fatalf("old stream delivered after evaluate: %d -> %d", after, rec.count())
	}
	if st.Active() {
		t.Fatalf("superseded stream must be inactive")
	}
}

func TestStreamReplacesStream(t *testing.T) {
	f := streamEngine()
	s := startSession(t, f, Options{Throttle: 10 * time.Millisecond})
	old := &recorder{}
	first := s.StartStream(afterE4, old.add)
	waitFor(t, func() bool { return old.count() >= 1 })

	fresh := &recorder{}
	second := s.StartStream(startFEN, fresh.add)
	defer second.Cancel()
	after := old.count()
	waitFor(t, func() bool { return fresh.count() >= 1 })
	time.Sleep(30 * time.Millisecond)
	if old.count() != after {
		t.Fatalf("first stream delivered after replacement")
	}
	if first.Active() {
		t.Fatalf("first stream must be inactive")
	}
	if got := fresh.lastCandidates(); len(got) != 1 || got[0] != "e2e4" {
		t.Fatalf("unexpected candidates for second stream: %v", got)
	}
}

func TestStreamDoneOnTimeLimit(t *testing.T) {
	f := streamEngine()
	s := startSession(t, f, Options{Throttle: 10 * time.Millisecond})
	rec := &recorder{}
	st := s.StartStream(startFEN, rec.add)
	waitFor(t, func() bool { return rec.count() >= 1 })

	// Simulate the engine reaching its movetime.
	if err := f.Send("stop"); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, func() bool { return !st.Active() })
	rec.mu.Lock()
	last := rec.updates[len(rec.updates)-1]
	rec.mu.Unlock()
	if !last.Done {
		t.Fatalf("expected final update to be marked done")
	}
	st.Cancel()
}

func TestSmoother(t *testing.T) {
	s := NewSmoother(5)
	cp := func(v int) model.Evaluation { return model.Evaluation{Kind: model.EvalCentipawn, Value: v} }
	var got model.Evaluation
	for _, v := range []int{10, 20, 30, 40, 50, 60} {
		got = s.Add(cp(v))
	}
	if got.Value != 40 || s.Len() != 5 {
		t.Fatalf("expected mean of last five = 40, got %+v (len %d)", got, s.Len())
	}
	mate := model.Evaluation{Kind: model.EvalMate, Value: 3}
	if got := s.Add(mate); got != mate {
		t.Fatalf("mate must bypass smoothing, got %+v", got)
	}
	if s.Len() != 0 {
		t.Fatalf("mate must reset the window")
	}
	if got := s.Add(cp(-100)); got.Value != -100 {
		t.Fatalf("expected fresh window, got %+v", got)
	}
}

func TestBarPercentAndFormat(t *testing.T) {
	cases := []struct {
		eval model.Evaluation
		pct  float64
		text string
	}{
		{model.Evaluation{Kind: model.EvalCentipawn, Value: 0}, 50, "0.0"},
		{model.Evaluation{Kind: model.EvalCentipawn, Value: 500}, 95, "5.0"},
		{model.Evaluation{Kind: model.EvalCentipawn, Value: 2000}, 95, "20.0"},
		{model.Evaluation{Kind: model.EvalCentipawn, Value: -250}, 27.5, "-2.5"},
		{model.Evaluation{Kind: model.EvalCentipawn, Value: -900}, 5, "-9.0"},
		{model.Evaluation{Kind: model.EvalMate, Value: 2}, 100, "M2"},
		{model.Evaluation{Kind: model.EvalMate, Value: -4}, 0, "-M4"},
		{model.Evaluation{Kind: model.EvalMate, Value: 0}, 50, "#"},
		{Normalize(model.Evaluation{Kind: model.EvalMate, Value: 0}, model.SideBlack), 50, "#"},
	}
	for _, tc := range cases {
		if got := BarPercent(tc.eval); got != tc.pct {
			t.Fatalf("%+v: expected %.1f%%, got %.1f%%", tc.eval, tc.pct, got)
		}
		if got := FormatEval(tc.eval); got != tc.text {
			t.Fatalf("%+v: expected %q, got %q", tc.eval, tc.text, got)
		}
	}
}
