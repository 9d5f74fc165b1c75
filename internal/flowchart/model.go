package flowchart

import "time"

type Kind string

const (
	KindStep      Kind = "step"
	KindDecision  Kind = "decision"
	KindEnd       Kind = "end"
	KindReference Kind = "reference"
)

func (k Kind) Valid() bool {
	switch k {
	case KindStep, KindDecision, KindEnd, KindReference:
		return true
	}
	return false
}

type EndKind string

const (
	EndSuccess   EndKind = "success"
	EndContinue  EndKind = "continue"
	EndEmergency EndKind = "emergency"
)

// ContinueLabel is the trail label recorded when a step or reference node is
// left through its continue edge.
const ContinueLabel = "Continue"

type Graph struct {
	ID          string    `json:"id" yaml:"id" validate:"max=200"`
	Name        string    `json:"name" yaml:"name" validate:"max=200"`
	Description string    `json:"description" yaml:"description"`
	CategoryID  string    `json:"categoryId,omitempty" yaml:"categoryId,omitempty"`
	Version     int       `json:"version" yaml:"version" validate:"min=0"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
	StartNodeID string    `json:"startNodeId" yaml:"startNodeId"`
	Nodes       []Node    `json:"nodes" yaml:"nodes"`
}

// Node is a tagged union over Kind. Fields that do not belong to the kind
// are ignored by traversal and layout and reported by Validate.
type Node struct {
	ID                string    `json:"id" yaml:"id" validate:"required,max=200"`
	Kind              Kind      `json:"kind" yaml:"kind" validate:"required,oneof=step decision end reference"`
	Title             string    `json:"title" yaml:"title" validate:"max=200"`
	Instruction       string    `json:"instruction" yaml:"instruction"`
	ExpertInstruction string    `json:"expertInstruction,omitempty" yaml:"expertInstruction,omitempty"`
	Image             string    `json:"image,omitempty" yaml:"image,omitempty" validate:"omitempty,url"`
	DecisionChoices   []Choice  `json:"decisionChoices,omitempty" yaml:"decisionChoices,omitempty" validate:"dive"`
	NextNodeID        string    `json:"nextNodeId,omitempty" yaml:"nextNodeId,omitempty"`
	ReferenceID       string    `json:"referenceId,omitempty" yaml:"referenceId,omitempty"`
	EndKind           EndKind   `json:"endKind,omitempty" yaml:"endKind,omitempty" validate:"omitempty,oneof=success continue emergency"`
	EndMessage        string    `json:"endMessage,omitempty" yaml:"endMessage,omitempty"`
	Position          *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

type Choice struct {
	Label        string `json:"label" yaml:"label" validate:"max=120"`
	TargetNodeID string `json:"targetNodeId" yaml:"targetNodeId"`
	Condition    string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Edge is one outgoing reference of a node, as seen by traversal and layout.
// Index is the choice index for decision edges and 0 for continue edges.
type Edge struct {
	Index     int
	Label     string
	Target    string
	Condition string
	Continue  bool
}

// Outgoing returns the edges a node exposes for its kind, in display order.
func Outgoing(n *Node) []Edge {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindDecision:
		out := make([]Edge, 0, len(n.DecisionChoices))
		for i, c := range n.DecisionChoices {
			out = append(out, Edge{Index: i, Label: c.Label, Target: c.TargetNodeID, Condition: c.Condition})
		}
		return out
	case KindStep, KindReference:
		if n.NextNodeID == "" {
			return nil
		}
		return []Edge{{Label: ContinueLabel, Target: n.NextNodeID, Continue: true}}
	}
	return nil
}

// Index maps node ids to their position in Nodes. The first occurrence of a
// duplicated id wins.
func (g *Graph) Index() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i := range g.Nodes {
		if _, ok := idx[g.Nodes[i].ID]; !ok {
			idx[g.Nodes[i].ID] = i
		}
	}
	return idx
}

func (g *Graph) Node(id string) (*Node, bool) {
	if g == nil || id == "" {
		return nil, false
	}
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	c := *g
	if g.Nodes != nil {
		c.Nodes = make([]Node, len(g.Nodes))
		for i := range g.Nodes {
			c.Nodes[i] = g.Nodes[i].Clone()
		}
	}
	return &c
}

func (n Node) Clone() Node {
	c := n
	if n.DecisionChoices != nil {
		c.DecisionChoices = append([]Choice(nil), n.DecisionChoices...)
	}
	if n.Position != nil {
		p := *n.Position
		c.Position = &p
	}
	return c
}
