// Package editor applies structural edits to flowcharts. Every operation
// works on a copy and returns it; the input graph is never modified, and a
// failed operation returns no graph at all.
package editor

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/softtagz-sys/medikits-flowchart/internal/catalog"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

const (
	CopySuffix      = " (copy)"
	DuplicateOffset = 50.0
	NewChoiceLabel  = "New choice"
)

var errNoGraph = errors.New("no graph to edit")

var defaultPosition = flowchart.Position{X: 100, Y: 100}

type Editor struct {
	newID func() string
	clock func() time.Time
}

type Option func(*Editor)

func WithIDGenerator(gen func() string) Option {
	return func(e *Editor) {
		if gen != nil {
			e.newID = gen
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Editor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func New(opts ...Option) *Editor {
	e := &Editor{newID: uuid.NewString, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// edit clones g, runs fn on the clone and stamps UpdatedAt on success.
func (e *Editor) edit(g *flowchart.Graph, fn func(*flowchart.Graph) error) (*flowchart.Graph, error) {
	if g == nil {
		return nil, errNoGraph
	}
	out := g.Clone()
	if err := fn(out); err != nil {
		return nil, err
	}
	out.UpdatedAt = e.clock()
	return out, nil
}

func (e *Editor) NewGraph(name, description, categoryID string) *flowchart.Graph {
	now := e.clock()
	return &flowchart.Graph{
		ID:          e.newID(),
		Name:        name,
		Description: description,
		CategoryID:  categoryID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Nodes:       []flowchart.Node{},
	}
}

// NewNode builds a node of kind with its defaults: a decision offers
// "Yes"/"No" with no targets, an end node is a success.
func (e *Editor) NewNode(kind flowchart.Kind) (flowchart.Node, error) {
	if !kind.Valid() {
		return flowchart.Node{}, fmt.Errorf("%w: %q", flowchart.ErrUnknownKind, kind)
	}
	pos := defaultPosition
	n := flowchart.Node{ID: e.newID(), Kind: kind, Position: &pos}
	applyDefaults(&n)
	return n, nil
}

func applyDefaults(n *flowchart.Node) {
	switch n.Kind {
	case flowchart.KindDecision:
		if n.Title == "" {
			n.Title = "New decision"
		}
		if n.Instruction == "" {
			n.Instruction = "What is the situation?"
		}
		if len(n.DecisionChoices) == 0 {
			n.DecisionChoices = []flowchart.Choice{{Label: "Yes"}, {Label: "No"}}
		}
	case flowchart.KindEnd:
		if n.Title == "" {
			n.Title = "End"
		}
		if n.Instruction == "" {
			n.Instruction = "Completed"
		}
		if n.EndKind == "" {
			n.EndKind = flowchart.EndSuccess
		}
		if n.EndMessage == "" {
			n.EndMessage = "Procedure completed"
		}
	default:
		if n.Title == "" {
			n.Title = "New step"
		}
		if n.Instruction == "" {
			n.Instruction = "Perform this action"
		}
	}
}

// AddNode appends a fresh node of kind and returns the new graph and its id.
func (e *Editor) AddNode(g *flowchart.Graph, kind flowchart.Kind) (*flowchart.Graph, string, error) {
	n, err := e.NewNode(kind)
	if err != nil {
		return nil, "", err
	}
	out, err := e.edit(g, func(c *flowchart.Graph) error {
		c.Nodes = append(c.Nodes, n)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, n.ID, nil
}

// AddReference appends a reference node carrying the payload of step.
func (e *Editor) AddReference(g *flowchart.Graph, step catalog.Step) (*flowchart.Graph, string, error) {
	if step.ID == "" {
		return nil, "", fmt.Errorf("%w: reusable step has no id", catalog.ErrStepNotFound)
	}
	pos := defaultPosition
	n := flowchart.Node{
		ID:                e.newID(),
		Kind:              flowchart.KindReference,
		Title:             step.Title,
		Instruction:       step.Instruction,
		ExpertInstruction: step.ExpertInstruction,
		Image:             step.Image,
		ReferenceID:       step.ID,
		Position:          &pos,
	}
	out, err := e.edit(g, func(c *flowchart.Graph) error {
		c.Nodes = append(c.Nodes, n)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, n.ID, nil
}

// NodePatch holds the fields to merge into a node. Nil fields are kept.
type NodePatch struct {
	Kind              *flowchart.Kind
	Title             *string
	Instruction       *string
	ExpertInstruction *string
	Image             *string
	DecisionChoices   *[]flowchart.Choice
	NextNodeID        *string
	ReferenceID       *string
	EndKind           *flowchart.EndKind
	EndMessage        *string
	Position          *flowchart.Position
}

// UpdateNode merges patch into node id. Changing the kind clears the fields
// that do not belong to the new kind and fills its defaults.
func (e *Editor) UpdateNode(g *flowchart.Graph, id string, patch NodePatch) (*flowchart.Graph, error) {
	if patch.Kind != nil && !patch.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", flowchart.ErrUnknownKind, *patch.Kind)
	}
	return e.edit(g, func(c *flowchart.Graph) error {
		n, err := nodeOf(c, id)
		if err != nil {
			return err
		}
		set(&n.Title, patch.Title)
		set(&n.Instruction, patch.Instruction)
		set(&n.ExpertInstruction, patch.ExpertInstruction)
		set(&n.Image, patch.Image)
		set(&n.NextNodeID, patch.NextNodeID)
		set(&n.ReferenceID, patch.ReferenceID)
		set(&n.EndKind, patch.EndKind)
		set(&n.EndMessage, patch.EndMessage)
		if patch.DecisionChoices != nil {
			n.DecisionChoices = append([]flowchart.Choice(nil), (*patch.DecisionChoices)...)
		}
		if patch.Position != nil {
			p := *patch.Position
			n.Position = &p
		}
		if patch.Kind != nil && *patch.Kind != n.Kind {
			n.Kind = *patch.Kind
			normalize(n)
		}
		return nil
	})
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func normalize(n *flowchart.Node) {
	switch n.Kind {
	case flowchart.KindDecision:
		n.NextNodeID, n.ReferenceID = "", ""
		n.EndKind, n.EndMessage = "", ""
	case flowchart.KindEnd:
		n.DecisionChoices, n.NextNodeID, n.ReferenceID = nil, "", ""
	case flowchart.KindStep:
		n.DecisionChoices, n.ReferenceID = nil, ""
		n.EndKind, n.EndMessage = "", ""
	case flowchart.KindReference:
		n.DecisionChoices = nil
		n.EndKind, n.EndMessage = "", ""
	}
	applyDefaults(n)
}

// DeleteNode removes node id. References to it elsewhere are left dangling
// and StartNodeID is kept as is; Validate reports both.
func (e *Editor) DeleteNode(g *flowchart.Graph, id string) (*flowchart.Graph, error) {
	return e.edit(g, func(c *flowchart.Graph) error {
		idx, ok := c.Index()[id]
		if !ok || id == "" {
			return fmt.Errorf("%w: %q", flowchart.ErrNodeNotFound, id)
		}
		c.Nodes = append(c.Nodes[:idx], c.Nodes[idx+1:]...)
		return nil
	})
}

// DuplicateNode appends a copy of node id with a new id, a suffixed title
// and an offset position. Its targets still point where the original's do.
func (e *Editor) DuplicateNode(g *flowchart.Graph, id string) (*flowchart.Graph, string, error) {
	var newID string
	out, err := e.edit(g, func(c *flowchart.Graph) error {
		n, err := nodeOf(c, id)
		if err != nil {
			return err
		}
		newID = e.newID()
		dup := n.Clone()
		dup.ID = newID
		dup.Title += CopySuffix
		var base flowchart.Position
		if n.Position != nil {
			base = *n.Position
		}
		dup.Position = &flowchart.Position{X: base.X + DuplicateOffset, Y: base.Y + DuplicateOffset}
		c.Nodes = append(c.Nodes, dup)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, newID, nil
}

// DuplicateGraph deep-copies g under a fresh id. Every node gets a fresh id
// and every choice target, continue target and the start node are remapped;
// references that were already dangling are copied unchanged.
func (e *Editor) DuplicateGraph(g *flowchart.Graph) (*flowchart.Graph, error) {
	if g == nil {
		return nil, errNoGraph
	}
	out := g.Clone()
	remap := make(map[string]string, len(out.Nodes))
	for i := range out.Nodes {
		fresh := e.newID()
		if _, seen := remap[out.Nodes[i].ID]; !seen {
			remap[out.Nodes[i].ID] = fresh
		}
		out.Nodes[i].ID = fresh
	}
	lookup := func(id string) string {
		if to, ok := remap[id]; ok && id != "" {
			return to
		}
		return id
	}
	for i := range out.Nodes {
		n := &out.Nodes[i]
		for j := range n.DecisionChoices {
			n.DecisionChoices[j].TargetNodeID = lookup(n.DecisionChoices[j].TargetNodeID)
		}
		n.NextNodeID = lookup(n.NextNodeID)
	}
	out.StartNodeID = lookup(out.StartNodeID)

	now := e.clock()
	out.ID = e.newID()
	out.Name += CopySuffix
	out.Version = 1
	out.CreatedAt = now
	out.UpdatedAt = now
	return out, nil
}

// ChoicePatch holds the fields to merge into a choice. Nil fields are kept.
type ChoicePatch struct {
	Label        *string
	TargetNodeID *string
	Condition    *string
}

// AddChoice appends c to decision node id. An empty label becomes
// NewChoiceLabel.
func (e *Editor) AddChoice(g *flowchart.Graph, id string, c flowchart.Choice) (*flowchart.Graph, error) {
	if c.Label == "" {
		c.Label = NewChoiceLabel
	}
	return e.edit(g, func(cg *flowchart.Graph) error {
		n, err := decisionOf(cg, id)
		if err != nil {
			return err
		}
		n.DecisionChoices = append(n.DecisionChoices, c)
		return nil
	})
}

func (e *Editor) UpdateChoice(g *flowchart.Graph, id string, index int, patch ChoicePatch) (*flowchart.Graph, error) {
	return e.edit(g, func(c *flowchart.Graph) error {
		n, err := decisionOf(c, id)
		if err != nil {
			return err
		}
		if err := checkIndex(n, index); err != nil {
			return err
		}
		ch := &n.DecisionChoices[index]
		set(&ch.Label, patch.Label)
		set(&ch.TargetNodeID, patch.TargetNodeID)
		set(&ch.Condition, patch.Condition)
		return nil
	})
}

// RemoveChoice deletes choice index, keeping the order of the rest.
func (e *Editor) RemoveChoice(g *flowchart.Graph, id string, index int) (*flowchart.Graph, error) {
	return e.edit(g, func(c *flowchart.Graph) error {
		n, err := decisionOf(c, id)
		if err != nil {
			return err
		}
		if err := checkIndex(n, index); err != nil {
			return err
		}
		n.DecisionChoices = append(n.DecisionChoices[:index], n.DecisionChoices[index+1:]...)
		return nil
	})
}

// MoveChoice moves choice from to position to, shifting the ones between.
func (e *Editor) MoveChoice(g *flowchart.Graph, id string, from, to int) (*flowchart.Graph, error) {
	return e.edit(g, func(c *flowchart.Graph) error {
		n, err := decisionOf(c, id)
		if err != nil {
			return err
		}
		if err := checkIndex(n, from); err != nil {
			return err
		}
		if err := checkIndex(n, to); err != nil {
			return err
		}
		moved := n.DecisionChoices[from]
		rest := append(n.DecisionChoices[:from:from], n.DecisionChoices[from+1:]...)
		n.DecisionChoices = append(rest[:to:to], append([]flowchart.Choice{moved}, rest[to:]...)...)
		return nil
	})
}

func (e *Editor) SetStart(g *flowchart.Graph, id string) (*flowchart.Graph, error) {
	return e.edit(g, func(c *flowchart.Graph) error {
		if _, err := nodeOf(c, id); err != nil {
			return err
		}
		c.StartNodeID = id
		return nil
	})
}

type GraphPatch struct {
	Name        *string
	Description *string
	CategoryID  *string
}

func (e *Editor) UpdateGraph(g *flowchart.Graph, patch GraphPatch) (*flowchart.Graph, error) {
	return e.edit(g, func(c *flowchart.Graph) error {
		set(&c.Name, patch.Name)
		set(&c.Description, patch.Description)
		set(&c.CategoryID, patch.CategoryID)
		return nil
	})
}

// Save marks an explicit save: the only operation that bumps Version.
func (e *Editor) Save(g *flowchart.Graph) (*flowchart.Graph, error) {
	return e.edit(g, func(c *flowchart.Graph) error {
		c.Version++
		return nil
	})
}

func nodeOf(g *flowchart.Graph, id string) (*flowchart.Node, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", flowchart.ErrNodeNotFound, id)
	}
	return n, nil
}

func decisionOf(g *flowchart.Graph, id string) (*flowchart.Node, error) {
	n, err := nodeOf(g, id)
	if err != nil {
		return nil, err
	}
	if n.Kind != flowchart.KindDecision {
		return nil, fmt.Errorf("%w: node %q is a %s node", flowchart.ErrNotADecision, id, n.Kind)
	}
	return n, nil
}

func checkIndex(n *flowchart.Node, index int) error {
	if index < 0 || index >= len(n.DecisionChoices) {
		return fmt.Errorf("%w: choice %d on node %q (has %d)", flowchart.ErrInvalidChoice, index, n.ID, len(n.DecisionChoices))
	}
	return nil
}
