package dotgraph

import (
	"errors"
	"fmt"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

// ErrUnsetChoiceTarget is returned by Codec.Encode for a decision choice
// without a target. DOT edges need both ends, so the choice would be lost.
var ErrUnsetChoiceTarget = errors.New("choice target is not set")

// Codec adapts Compile and Render to the snapshot codec shape. Encoded
// graphs are pinned at their stored positions.
type Codec struct {
	compiler *Compiler
}

func NewCodec() *Codec { return &Codec{compiler: NewCompiler()} }

func (c *Codec) Encode(g *flowchart.Graph) ([]byte, error) {
	if g != nil {
		for i := range g.Nodes {
			for _, e := range flowchart.Outgoing(&g.Nodes[i]) {
				if e.Target == "" {
					return nil, fmt.Errorf("node %q choice %d (%q): %w", g.Nodes[i].ID, e.Index, e.Label, ErrUnsetChoiceTarget)
				}
			}
		}
	}
	out, err := Render(g, nil)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (c *Codec) Decode(data []byte) (*flowchart.Graph, error) {
	return c.compiler.Compile(string(data))
}

func (c *Codec) Name() string { return "dot" }
