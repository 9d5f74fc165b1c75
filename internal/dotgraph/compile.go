// Package dotgraph reads flowcharts written as Graphviz DOT and writes laid
// out flowcharts back to DOT.
//
// Mapping: the graph attribute root names the start node, label and comment
// carry the graph name and description. Node shape selects the kind (box,
// diamond, doublecircle, component), group carries the end kind or the
// reference id, label/tooltip/comment/xlabel carry title, instruction,
// expert instruction and end message, and sortv fixes the node order. Edges
// leaving a decision are its choices: label is the choice label, comment the
// condition, and an id ending in "choice-N" fixes the order; otherwise
// statement order is kept. A step or reference node has at most one edge,
// its continue edge.
package dotgraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart/eval"
)

var shapeKinds = map[string]flowchart.Kind{
	"box":          flowchart.KindStep,
	"rect":         flowchart.KindStep,
	"rectangle":    flowchart.KindStep,
	"diamond":      flowchart.KindDecision,
	"doublecircle": flowchart.KindEnd,
	"component":    flowchart.KindReference,
}

var kindShapes = map[flowchart.Kind]string{
	flowchart.KindStep:      "box",
	flowchart.KindDecision:  "diamond",
	flowchart.KindEnd:       "doublecircle",
	flowchart.KindReference: "component",
}

type Compiler struct{}

func NewCompiler() *Compiler { return &Compiler{} }

func (c *Compiler) Compile(dot string) (*flowchart.Graph, error) {
	ast, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}

	gv := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, gv); err != nil {
		return nil, fmt.Errorf("failed to analyze DOT: %w", err)
	}
	if !gv.Directed {
		return nil, fmt.Errorf("flowchart must be a digraph")
	}
	if len(gv.SubGraphs.SubGraphs) > 0 {
		return nil, fmt.Errorf("subgraphs are not supported")
	}

	g := &flowchart.Graph{
		ID:          unquote(gv.Name),
		Name:        getAttr(gv.Attrs, "label"),
		Description: getAttr(gv.Attrs, "comment"),
		StartNodeID: getAttr(gv.Attrs, "root"),
		Nodes:       make([]flowchart.Node, 0, len(gv.Nodes.Nodes)),
	}

	// 1) Nodes
	order := make([]float64, 0, len(gv.Nodes.Nodes))
	sorted := true
	for _, n := range gv.Nodes.Nodes {
		node, err := compileNode(n)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, node)

		v, ok := getFloat(n.Attrs, "sortv")
		sorted = sorted && ok
		order = append(order, v)
	}
	if sorted {
		idx := make([]int, len(g.Nodes))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return order[idx[a]] < order[idx[b]] })
		nodes := make([]flowchart.Node, len(idx))
		for i, j := range idx {
			nodes[i] = g.Nodes[j]
		}
		g.Nodes = nodes
	}

	// 2) Edges, grouped by source in statement order
	bySource := map[string][]*gographviz.Edge{}
	for _, e := range gv.Edges.Edges {
		src := unquote(e.Src)
		bySource[src] = append(bySource[src], e)
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		edges := bySource[n.ID]
		if len(edges) == 0 {
			continue
		}
		switch n.Kind {
		case flowchart.KindDecision:
			choices, err := compileChoices(n.ID, edges)
			if err != nil {
				return nil, err
			}
			n.DecisionChoices = choices
		case flowchart.KindStep, flowchart.KindReference:
			if len(edges) > 1 {
				return nil, fmt.Errorf("%s node %q has %d outgoing edges, expected at most 1", n.Kind, n.ID, len(edges))
			}
			n.NextNodeID = unquote(edges[0].Dst)
		case flowchart.KindEnd:
			return nil, fmt.Errorf("end node %q cannot have outgoing edges", n.ID)
		}
	}

	return g, nil
}

func compileNode(n *gographviz.Node) (flowchart.Node, error) {
	id := unquote(n.Name)
	shape := getAttr(n.Attrs, "shape")
	kind, ok := shapeKinds[shape]
	if !ok {
		return flowchart.Node{}, fmt.Errorf("node %q: shape %q does not name a node kind", id, shape)
	}

	node := flowchart.Node{
		ID:                id,
		Kind:              kind,
		Title:             getAttr(n.Attrs, "label"),
		Instruction:       getAttr(n.Attrs, "tooltip"),
		ExpertInstruction: getAttr(n.Attrs, "comment"),
		Image:             getAttr(n.Attrs, "image"),
	}
	switch kind {
	case flowchart.KindEnd:
		node.EndKind = flowchart.EndKind(getAttr(n.Attrs, "group"))
		node.EndMessage = getAttr(n.Attrs, "xlabel")
	case flowchart.KindReference:
		node.ReferenceID = getAttr(n.Attrs, "group")
	}

	if raw := getAttr(n.Attrs, "pos"); raw != "" {
		pos, err := parsePos(raw)
		if err != nil {
			return flowchart.Node{}, fmt.Errorf("node %q: %w", id, err)
		}
		node.Position = pos
	}
	return node, nil
}

func compileChoices(from string, edges []*gographviz.Edge) ([]flowchart.Choice, error) {
	type indexed struct {
		choice flowchart.Choice
		index  int
		set    bool
	}
	items := make([]indexed, 0, len(edges))
	explicit := true
	for _, e := range edges {
		cond := strings.TrimSpace(getAttr(e.Attrs, "comment"))
		if err := eval.Check(cond); err != nil {
			return nil, fmt.Errorf("invalid condition on edge %s->%s: %w", from, unquote(e.Dst), err)
		}
		it := indexed{choice: flowchart.Choice{
			Label:        getAttr(e.Attrs, "label"),
			TargetNodeID: unquote(e.Dst),
			Condition:    cond,
		}}
		it.index, it.set = choiceIndex(getAttr(e.Attrs, "id"))
		explicit = explicit && it.set
		items = append(items, it)
	}
	if explicit {
		sort.SliceStable(items, func(a, b int) bool { return items[a].index < items[b].index })
	}

	out := make([]flowchart.Choice, len(items))
	for i, it := range items {
		out[i] = it.choice
	}
	return out, nil
}

func choiceIndex(id string) (int, bool) {
	i := strings.LastIndex(id, "choice-")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+len("choice-"):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parsePos(raw string) (*flowchart.Position, error) {
	parts := strings.Split(strings.TrimSuffix(raw, "!"), ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid pos %q", raw)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid pos %q: %w", raw, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid pos %q: %w", raw, err)
	}
	return &flowchart.Position{X: x, Y: y}, nil
}

func getAttr(attrs gographviz.Attrs, key string) string {
	val, ok := attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}
	return unquote(strings.TrimSpace(val))
}

func getFloat(attrs gographviz.Attrs, key string) (float64, bool) {
	raw := getAttr(attrs, key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}
