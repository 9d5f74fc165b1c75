package dotgraph

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/layout"
)

const defaultGraphName = "flowchart"

// Render writes g as DOT. Nodes are pinned at their place in d when d is
// given, otherwise at their stored Position. The output compiles back to an
// equivalent graph; Graph.ID is used as the DOT graph name.
func Render(g *flowchart.Graph, d *layout.Diagram) (string, error) {
	if g == nil {
		return "", fmt.Errorf("no graph to render")
	}

	name := g.ID
	if name == "" {
		name = defaultGraphName
	}
	gv := gographviz.NewGraph()
	if err := gv.SetName(quote(name)); err != nil {
		return "", err
	}
	if err := gv.SetDir(true); err != nil {
		return "", err
	}
	graphAttrs := map[string]string{
		"root":    g.StartNodeID,
		"label":   g.Name,
		"comment": g.Description,
	}
	for k, v := range graphAttrs {
		if v == "" {
			continue
		}
		if err := gv.AddAttr(gv.Name, k, quote(v)); err != nil {
			return "", err
		}
	}

	placed := map[string]layout.PlacedNode{}
	if d != nil {
		for _, p := range d.Nodes {
			if _, ok := placed[p.ID]; !ok {
				placed[p.ID] = p
			}
		}
	}

	seen := map[string]bool{}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if seen[n.ID] {
			return "", fmt.Errorf("node id %q is used more than once", n.ID)
		}
		seen[n.ID] = true

		attrs, err := nodeAttrs(n, i)
		if err != nil {
			return "", err
		}
		if p, ok := placed[n.ID]; ok {
			attrs["pos"] = quote(formatPos(p.X, p.Y))
		} else if n.Position != nil {
			attrs["pos"] = quote(formatPos(n.Position.X, n.Position.Y))
		}
		if err := gv.AddNode(gv.Name, quote(n.ID), attrs); err != nil {
			return "", fmt.Errorf("node %q: %w", n.ID, err)
		}
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		for _, e := range flowchart.Outgoing(n) {
			if e.Target == "" {
				continue
			}
			if !seen[e.Target] {
				return "", fmt.Errorf("edge %q of node %q points at missing node %q", e.Label, n.ID, e.Target)
			}
			attrs := map[string]string{}
			if !e.Continue {
				attrs["label"] = quote(e.Label)
				attrs["id"] = quote(n.ID + "-choice-" + strconv.Itoa(e.Index))
				if e.Condition != "" {
					attrs["comment"] = quote(e.Condition)
				}
			}
			if err := gv.AddEdge(quote(n.ID), quote(e.Target), true, attrs); err != nil {
				return "", fmt.Errorf("edge %s->%s: %w", n.ID, e.Target, err)
			}
		}
	}

	return gv.String(), nil
}

func nodeAttrs(n *flowchart.Node, order int) (map[string]string, error) {
	shape, ok := kindShapes[n.Kind]
	if !ok {
		return nil, fmt.Errorf("node %q: %w: %q", n.ID, flowchart.ErrUnknownKind, n.Kind)
	}
	style := layout.StyleFor(n.Kind)
	attrs := map[string]string{
		"shape":     shape,
		"style":     "filled",
		"fillcolor": quote(style.Color),
		"sortv":     strconv.Itoa(order),
	}
	optional := map[string]string{
		"label":   n.Title,
		"tooltip": n.Instruction,
		"comment": n.ExpertInstruction,
		"image":   n.Image,
	}
	switch n.Kind {
	case flowchart.KindEnd:
		optional["group"] = string(n.EndKind)
		optional["xlabel"] = n.EndMessage
	case flowchart.KindReference:
		optional["group"] = n.ReferenceID
	}
	for k, v := range optional {
		if v != "" {
			attrs[k] = quote(v)
		}
	}
	return attrs, nil
}

func formatPos(x, y float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64) + "," + strconv.FormatFloat(y, 'f', -1, 64) + "!"
}
