package traversal

import (
	"time"

	"github.com/google/uuid"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

// Session is one user's walk through one graph. It is not safe for
// concurrent use; hosts keep one Session per user.
type Session struct {
	id     string
	engine *Engine
	graph  *flowchart.Graph
	vars   map[string]any
	state  State
}

type SessionOption func(*Session)

func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithVars sets the variables choice conditions are evaluated against.
func WithVars(vars map[string]any) SessionOption {
	return func(s *Session) {
		s.vars = make(map[string]any, len(vars))
		for k, v := range vars {
			s.vars[k] = v
		}
	}
}

func (e *Engine) NewSession(g *flowchart.Graph, opts ...SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		engine: e,
		graph:  g,
		vars:   map[string]any{},
		state:  State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

func (s *Session) Trail() []Entry {
	return append([]Entry(nil), s.state.Trail...)
}

func (s *Session) Current() (*flowchart.Node, bool) {
	if s.state.Status == StatusIdle {
		return nil, false
	}
	return s.graph.Node(s.state.CurrentNodeID)
}

func (s *Session) SetVar(name string, value any) { s.vars[name] = value }

func (s *Session) Start() error { return s.Do(Start()) }

func (s *Session) Advance(choice int) error { return s.Do(Choose(choice)) }

func (s *Session) AdvanceLinear() error { return s.Do(Continue()) }

func (s *Session) Back() error { return s.Do(Back()) }

func (s *Session) Abort() { _ = s.Do(Abort()) }

// Do applies a and keeps the resulting state only when a succeeds.
func (s *Session) Do(a Action) error {
	started := time.Now()
	prev := s.state.Status
	next, err := s.engine.Apply(s.graph, s.state, a, s.vars)
	if err != nil {
		s.observe(a, prev, s.state, started, err)
		return err
	}
	s.state = next
	s.observe(a, prev, next, started, nil)
	return nil
}

// Replay runs actions in order and stops at the first failure.
func (s *Session) Replay(actions ...Action) error {
	for _, a := range actions {
		if err := s.Do(a); err != nil {
			return err
		}
	}
	return nil
}

type ChoiceView struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Target    string `json:"targetNodeId"`
	Available bool   `json:"available"`
	Resolved  bool   `json:"resolved"`
	Reason    string `json:"reason,omitempty"`
}

// AvailableChoices describes the choices of the current decision node and
// whether each one can be taken right now.
func (s *Session) AvailableChoices() []ChoiceView {
	node, ok := s.Current()
	if !ok || !s.state.Active() {
		return nil
	}
	var out []ChoiceView
	for _, e := range flowchart.Outgoing(node) {
		v := ChoiceView{Index: e.Index, Label: e.Label, Target: e.Target, Available: true}
		_, v.Resolved = s.graph.Node(e.Target)
		if !v.Resolved {
			v.Available = false
			v.Reason = "target not set"
			if e.Target != "" {
				v.Reason = "target " + e.Target + " does not exist"
			}
		}
		if e.Condition != "" && v.Available {
			holds, err := s.engine.eval.Eval(e.Condition, s.vars)
			switch {
			case err != nil:
				v.Available = false
				v.Reason = err.Error()
			case !holds:
				v.Available = false
				v.Reason = "requires " + e.Condition
			}
		}
		out = append(out, v)
	}
	return out
}

func (s *Session) observe(a Action, prev Status, st State, started time.Time, err error) {
	if s.engine.observer == nil {
		return
	}
	ev := TransitionEvent{
		SessionID:  s.id,
		Action:     a.Type,
		NodeID:     st.CurrentNodeID,
		PrevStatus: prev,
		Status:     st.Status,
		Reason:     st.Reason,
		TrailLen:   len(st.Trail),
		Duration:   time.Since(started),
		Err:        err,
	}
	if s.graph != nil {
		ev.GraphID = s.graph.ID
	}
	if n, ok := s.graph.Node(st.CurrentNodeID); ok {
		ev.Kind = n.Kind
	}
	s.engine.observer.ObserveTransition(ev)
}
