// Package traversal walks a flowchart one user decision at a time.
package traversal

import (
	"fmt"
	"time"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart/eval"
)

type ConditionEvaluator interface {
	Eval(cond string, vars map[string]any) (bool, error)
}

type ExprEvaluator struct{}

func (ExprEvaluator) Eval(cond string, vars map[string]any) (bool, error) {
	return eval.Eval(cond, vars)
}

// Engine holds the transition rules. It is stateless apart from its options
// and can be shared by any number of sessions.
type Engine struct {
	eval       ConditionEvaluator
	clock      func() time.Time
	observer   TransitionObserver
	expertMode bool
}

type EngineOption func(*Engine)

func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithEvaluator(ev ConditionEvaluator) EngineOption {
	return func(e *Engine) {
		if ev != nil {
			e.eval = ev
		}
	}
}

func WithTransitionObserver(observer TransitionObserver) EngineOption {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithExpertMode makes trail entries carry the expert instruction when a node
// has one.
func WithExpertMode(enabled bool) EngineOption {
	return func(e *Engine) {
		e.expertMode = enabled
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{eval: ExprEvaluator{}, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ExpertMode() bool { return e.expertMode }

// Apply is the transition function. On error the returned State is the input
// state, unchanged.
func (e *Engine) Apply(g *flowchart.Graph, s State, a Action, vars map[string]any) (State, error) {
	switch a.Type {
	case ActionStart:
		return e.start(g, s)
	case ActionChoose:
		return e.advance(g, s, a.Choice, vars)
	case ActionContinue:
		return e.advanceLinear(g, s, vars)
	case ActionBack:
		return e.back(g, s)
	case ActionAbort:
		return e.abort(s), nil
	}
	return s, fmt.Errorf("unknown action %q", a.Type)
}

func (e *Engine) start(g *flowchart.Graph, s State) (State, error) {
	if g == nil {
		return s, fmt.Errorf("%w: no graph loaded", flowchart.ErrInvalidStart)
	}
	if g.StartNodeID == "" {
		return s, fmt.Errorf("%w: graph %q has no start node", flowchart.ErrInvalidStart, g.ID)
	}
	node, ok := g.Node(g.StartNodeID)
	if !ok {
		return s, fmt.Errorf("%w: start node %q does not exist", flowchart.ErrInvalidStart, g.StartNodeID)
	}

	next := State{Status: StatusActive, CurrentNodeID: node.ID}
	next = next.withEntry(e.entry(node, ""))
	return settle(next, node), nil
}

func (e *Engine) advance(g *flowchart.Graph, s State, index int, vars map[string]any) (State, error) {
	current, err := e.current(g, s)
	if err != nil {
		return s, err
	}
	if current.Kind != flowchart.KindDecision {
		return s, fmt.Errorf("%w: node %q is a %s node", flowchart.ErrNotADecision, current.ID, current.Kind)
	}
	if index < 0 || index >= len(current.DecisionChoices) {
		return s, fmt.Errorf("%w: choice %d on node %q (has %d)", flowchart.ErrInvalidChoice, index, current.ID, len(current.DecisionChoices))
	}

	choice := current.DecisionChoices[index]
	if choice.Condition != "" {
		ok, err := e.eval.Eval(choice.Condition, vars)
		if err != nil {
			return s, fmt.Errorf("%w: choice %d on node %q: %v", flowchart.ErrChoiceUnavailable, index, current.ID, err)
		}
		if !ok {
			return s, fmt.Errorf("%w: choice %d on node %q requires %s", flowchart.ErrChoiceUnavailable, index, current.ID, choice.Condition)
		}
	}
	return e.moveTo(g, s, current, choice.TargetNodeID, choice.Label)
}

func (e *Engine) advanceLinear(g *flowchart.Graph, s State, vars map[string]any) (State, error) {
	current, err := e.current(g, s)
	if err != nil {
		return s, err
	}
	switch current.Kind {
	case flowchart.KindDecision:
		if len(current.DecisionChoices) != 1 {
			return s, fmt.Errorf("%w: node %q offers %d choices, pick one", flowchart.ErrInvalidChoice, current.ID, len(current.DecisionChoices))
		}
		return e.advance(g, s, 0, vars)
	case flowchart.KindStep, flowchart.KindReference:
		return e.moveTo(g, s, current, current.NextNodeID, flowchart.ContinueLabel)
	}
	return s, fmt.Errorf("%w: node %q has no continuation", flowchart.ErrNotADecision, current.ID)
}

func (e *Engine) moveTo(g *flowchart.Graph, s State, from *flowchart.Node, target, label string) (State, error) {
	if target == "" {
		return s, fmt.Errorf("%w: edge %q on node %q has no target", flowchart.ErrDanglingTarget, label, from.ID)
	}
	node, ok := g.Node(target)
	if !ok {
		return s, fmt.Errorf("%w: edge %q on node %q points at %q", flowchart.ErrDanglingTarget, label, from.ID, target)
	}
	next := s.withEntry(e.entry(node, label))
	next.CurrentNodeID = node.ID
	return settle(next, node), nil
}

func (e *Engine) back(g *flowchart.Graph, s State) (State, error) {
	if s.Status == StatusIdle || len(s.Trail) <= 1 {
		return s, fmt.Errorf("%w: trail has %d entries", flowchart.ErrEmptyTrail, len(s.Trail))
	}
	next := s.popped()
	next.CurrentNodeID = next.Trail[len(next.Trail)-1].NodeID
	next.Status = StatusActive
	next.Reason = ""
	return next, nil
}

func (e *Engine) abort(s State) State {
	s.Status = StatusEnded
	s.Reason = ReasonAborted
	return s
}

func (e *Engine) current(g *flowchart.Graph, s State) (*flowchart.Node, error) {
	if s.Status != StatusActive {
		return nil, fmt.Errorf("%w: %w: status is %s", flowchart.ErrNotADecision, flowchart.ErrNotActive, s.Status)
	}
	node, ok := g.Node(s.CurrentNodeID)
	if !ok {
		return nil, fmt.Errorf("%w: current node %q left the graph", flowchart.ErrDanglingTarget, s.CurrentNodeID)
	}
	return node, nil
}

func (e *Engine) entry(n *flowchart.Node, label string) Entry {
	instruction := n.Instruction
	if e.expertMode && n.ExpertInstruction != "" {
		instruction = n.ExpertInstruction
	}
	return Entry{
		NodeID:      n.ID,
		Title:       n.Title,
		Instruction: instruction,
		Timestamp:   e.clock(),
		ChosenLabel: label,
	}
}

func settle(s State, n *flowchart.Node) State {
	if n.Kind != flowchart.KindEnd {
		return s
	}
	s.Status = StatusEnded
	s.Reason = ReasonCompleted
	if n.EndKind == flowchart.EndEmergency {
		s.Reason = ReasonEmergencyEscalated
	}
	return s
}
