package traversal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

type spyTransitionObserver struct {
	mu     sync.Mutex
	events []TransitionEvent
	gate   chan struct{}
}

func (s *spyTransitionObserver) ObserveTransition(ev TransitionEvent) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *spyTransitionObserver) Events() []TransitionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TransitionEvent(nil), s.events...)
}

func TestSession_ReportsEveryTransition(t *testing.T) {
	spy := &spyTransitionObserver{}
	s := NewEngine(WithTransitionObserver(spy)).NewSession(yesNoGraph(), WithSessionID("s-42"))

	_ = s.Start()
	_ = s.Advance(9)
	_ = s.Advance(1)

	events := spy.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Action != ActionStart || events[0].NodeID != "A" || events[0].Kind != flowchart.KindDecision {
		t.Fatalf("unexpected start event: %+v", events[0])
	}
	if events[1].Err == nil || events[1].NodeID != "A" {
		t.Fatalf("rejected choice should carry the error and the unchanged node: %+v", events[1])
	}
	last := events[2]
	if last.SessionID != "s-42" || last.GraphID != "g1" || last.Reason != ReasonEmergencyEscalated || last.TrailLen != 2 {
		t.Fatalf("unexpected final event: %+v", last)
	}
	if events[0].PrevStatus != StatusIdle || last.PrevStatus != StatusActive || last.Status != StatusEnded {
		t.Fatalf("unexpected status transitions: %+v / %+v", events[0], last)
	}

	s.Abort()
	events = spy.Events()
	if got := events[len(events)-1]; got.PrevStatus != StatusEnded || got.Status != StatusEnded {
		t.Fatalf("abort after end should report ended -> ended: %+v", got)
	}
}

func TestObservers_FanOutSkipsNil(t *testing.T) {
	a, b := &spyTransitionObserver{}, &spyTransitionObserver{}
	Observers{a, nil, b}.ObserveTransition(TransitionEvent{NodeID: "n"})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
}

func TestTransitionLogger_LevelsByOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewTransitionLogger(zap.New(core))

	l.ObserveTransition(TransitionEvent{Action: ActionChoose, NodeID: "B"})
	l.ObserveTransition(TransitionEvent{Action: ActionChoose, NodeID: "A", Err: flowchart.ErrInvalidChoice})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Fatalf("expected debug for accepted transition, got %s", entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn for rejected transition, got %s", entries[1].Level)
	}
	if got := entries[1].ContextMap()["node"]; got != "A" {
		t.Fatalf("expected node field A, got %v", got)
	}

	var nilLogger *TransitionLogger
	nilLogger.ObserveTransition(TransitionEvent{})
}

func TestAsyncTransitionObserver_DeliversEventsOnClose(t *testing.T) {
	spy := &spyTransitionObserver{}
	async := NewAsyncTransitionObserver(spy, 8)

	async.ObserveTransition(TransitionEvent{NodeID: "start"})
	async.ObserveTransition(TransitionEvent{NodeID: "end"})
	async.Close()

	if got := len(spy.Events()); got != 2 {
		t.Fatalf("expected 2 delivered events, got %d", got)
	}
}

func TestAsyncTransitionObserver_DropsWhenBufferIsFull(t *testing.T) {
	spy := &spyTransitionObserver{gate: make(chan struct{})}
	async := NewAsyncTransitionObserver(spy, 1)

	for i := 0; i < 100; i++ {
		async.ObserveTransition(TransitionEvent{NodeID: "n"})
	}
	close(spy.gate)
	async.Close()

	if async.Dropped() == 0 {
		t.Fatalf("expected dropped events > 0")
	}
	if got := uint64(len(spy.Events())) + async.Dropped(); got != 100 {
		t.Fatalf("expected delivered+dropped = 100, got %d", got)
	}
}

func TestAsyncTransitionObserver_CloseDuringConcurrentObserveDoesNotPanic(t *testing.T) {
	spy := &spyTransitionObserver{}
	async := NewAsyncTransitionObserver(spy, 32)

	const workers = 8
	const perWorker = 200
	var wg sync.WaitGroup
	var panics atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if recover() != nil {
					panics.Add(1)
				}
			}()
			for j := 0; j < perWorker; j++ {
				async.ObserveTransition(TransitionEvent{NodeID: "n"})
			}
		}()
	}

	time.Sleep(1 * time.Millisecond)
	async.Close()
	wg.Wait()

	if panics.Load() != 0 {
		t.Fatalf("expected no panics, got %d", panics.Load())
	}
	async.Close()
}
