package traversal

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

type TransitionEvent struct {
	SessionID string
	GraphID   string
	Action    ActionType
	NodeID    string
	Kind      flowchart.Kind
	// PrevStatus is the status before the action; equal to Status when the
	// action was rejected or left the status alone.
	PrevStatus Status
	Status     Status
	Reason     EndReason
	TrailLen   int
	Duration   time.Duration
	Err        error
}

type TransitionObserver interface {
	ObserveTransition(ev TransitionEvent)
}

// Observers fans one event out to several observers.
type Observers []TransitionObserver

func (o Observers) ObserveTransition(ev TransitionEvent) {
	for _, next := range o {
		if next != nil {
			next.ObserveTransition(ev)
		}
	}
}

type TransitionLogger struct {
	logger *zap.Logger
}

func NewTransitionLogger(logger *zap.Logger) *TransitionLogger {
	return &TransitionLogger{logger: logger}
}

func (l *TransitionLogger) ObserveTransition(ev TransitionEvent) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("session", ev.SessionID),
		zap.String("graph", ev.GraphID),
		zap.String("action", string(ev.Action)),
		zap.String("node", ev.NodeID),
		zap.String("kind", string(ev.Kind)),
		zap.String("prev_status", string(ev.PrevStatus)),
		zap.String("status", string(ev.Status)),
		zap.Int("trail_len", ev.TrailLen),
		zap.Duration("duration", ev.Duration),
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", string(ev.Reason)))
	}
	if ev.Err != nil {
		l.logger.Warn("flowchart transition rejected", append(fields, zap.Error(ev.Err))...)
		return
	}
	l.logger.Debug("flowchart transition", fields...)
}

// AsyncTransitionObserver hands events to next on a background goroutine and
// drops them when the buffer is full, so a slow sink never stalls a session.
type AsyncTransitionObserver struct {
	next    TransitionObserver
	events  chan TransitionEvent
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func NewAsyncTransitionObserver(next TransitionObserver, buffer int) *AsyncTransitionObserver {
	if buffer <= 0 {
		buffer = 1
	}
	o := &AsyncTransitionObserver{
		next:   next,
		events: make(chan TransitionEvent, buffer),
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.events {
			if o.next == nil {
				continue
			}
			o.next.ObserveTransition(ev)
		}
	}()
	return o
}

func (o *AsyncTransitionObserver) ObserveTransition(ev TransitionEvent) {
	if o == nil {
		return
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- ev:
	default:
		o.dropped.Add(1)
	}
}

func (o *AsyncTransitionObserver) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

// Close flushes pending events. Events observed after Close are dropped.
func (o *AsyncTransitionObserver) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
		o.wg.Wait()
	})
}
