// Package layout places flowchart nodes in breadth-first bands and routes a
// curved edge for every resolved outgoing reference.
package layout

import (
	"fmt"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

type Options struct {
	NodeWidth       float64 `json:"nodeWidth" yaml:"nodeWidth"`
	NodeHeight      float64 `json:"nodeHeight" yaml:"nodeHeight"`
	BandHeight      float64 `json:"bandHeight" yaml:"bandHeight"`
	NodeSpacing     float64 `json:"nodeSpacing" yaml:"nodeSpacing"`
	Margin          float64 `json:"margin" yaml:"margin"`
	MinCanvasWidth  float64 `json:"minCanvasWidth" yaml:"minCanvasWidth"`
	MinCanvasHeight float64 `json:"minCanvasHeight" yaml:"minCanvasHeight"`
	// ChoiceOffset is the horizontal step between the anchors of successive
	// choices leaving the same node.
	ChoiceOffset float64 `json:"choiceOffset" yaml:"choiceOffset"`
}

func DefaultOptions() Options {
	return Options{
		NodeWidth:       200,
		NodeHeight:      80,
		BandHeight:      150,
		NodeSpacing:     50,
		Margin:          50,
		MinCanvasWidth:  800,
		MinCanvasHeight: 600,
		ChoiceOffset:    20,
	}
}

// withDefaults fills every non-positive field from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&o.NodeWidth, d.NodeWidth)
	fill(&o.NodeHeight, d.NodeHeight)
	fill(&o.BandHeight, d.BandHeight)
	fill(&o.NodeSpacing, d.NodeSpacing)
	fill(&o.Margin, d.Margin)
	fill(&o.MinCanvasWidth, d.MinCanvasWidth)
	fill(&o.MinCanvasHeight, d.MinCanvasHeight)
	fill(&o.ChoiceOffset, d.ChoiceOffset)
	return o
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PlacedNode struct {
	ID      string         `json:"id"`
	Kind    flowchart.Kind `json:"kind"`
	Title   string         `json:"title"`
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	Width   float64        `json:"width"`
	Height  float64        `json:"height"`
	Depth   int            `json:"depth"`
	IsStart bool           `json:"isStart,omitempty"`
	Style   Style          `json:"style"`
}

func (n PlacedNode) BottomCenter() Point { return Point{X: n.X + n.Width/2, Y: n.Y + n.Height} }

func (n PlacedNode) TopCenter() Point { return Point{X: n.X + n.Width/2, Y: n.Y} }

// RoutedEdge is a quadratic curve From → To bent through Control.
type RoutedEdge struct {
	FromID      string `json:"from"`
	ToID        string `json:"to"`
	ChoiceIndex int    `json:"choiceIndex"`
	Continue    bool   `json:"continue,omitempty"`
	Label       string `json:"label,omitempty"`
	From        Point  `json:"fromPoint"`
	Control     Point  `json:"controlPoint"`
	To          Point  `json:"toPoint"`
	LabelAnchor Point  `json:"labelAnchor"`
	Path        string `json:"path"`
}

type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Diagram struct {
	Nodes  []PlacedNode `json:"nodes"`
	Edges  []RoutedEdge `json:"edges"`
	Canvas Canvas       `json:"canvas"`
	// Bands lists node ids per depth, top to bottom.
	Bands [][]string `json:"bands"`
}

// Node returns the first placed node with id.
func (d Diagram) Node(id string) (PlacedNode, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return PlacedNode{}, false
}

// Compute lays out g. It never fails: dangling references are skipped and
// every node of g appears exactly once in the result, in band order.
func Compute(g *flowchart.Graph, opts Options) Diagram {
	opts = opts.withDefaults()
	d := Diagram{Nodes: []PlacedNode{}, Edges: []RoutedEdge{}, Bands: [][]string{}}
	if g == nil || len(g.Nodes) == 0 {
		d.Canvas = canvasFor(nil, opts)
		return d
	}

	index := g.Index()
	depths, order := assignDepths(g, index)

	bands := make([][]int, 0)
	for _, i := range order {
		depth := depths[i]
		for len(bands) <= depth {
			bands = append(bands, nil)
		}
		bands[depth] = append(bands[depth], i)
	}

	startIdx, hasStart := index[g.StartNodeID]
	placed := make([]int, len(g.Nodes))
	for depth, band := range bands {
		ids := make([]string, 0, len(band))
		bandWidth := float64(len(band))*opts.NodeWidth + float64(len(band)-1)*opts.NodeSpacing
		startX := max(opts.Margin, (opts.MinCanvasWidth-bandWidth)/2)
		y := opts.Margin + float64(depth)*opts.BandHeight

		for col, i := range band {
			n := &g.Nodes[i]
			placed[i] = len(d.Nodes)
			d.Nodes = append(d.Nodes, PlacedNode{
				ID:      n.ID,
				Kind:    n.Kind,
				Title:   n.Title,
				X:       startX + float64(col)*(opts.NodeWidth+opts.NodeSpacing),
				Y:       y,
				Width:   opts.NodeWidth,
				Height:  opts.NodeHeight,
				Depth:   depth,
				IsStart: hasStart && i == startIdx,
				Style:   StyleFor(n.Kind),
			})
			ids = append(ids, n.ID)
		}
		d.Bands = append(d.Bands, ids)
	}

	for i := range g.Nodes {
		from := d.Nodes[placed[i]]
		for _, e := range flowchart.Outgoing(&g.Nodes[i]) {
			j, ok := index[e.Target]
			if !ok {
				continue
			}
			d.Edges = append(d.Edges, route(from, d.Nodes[placed[j]], e, opts))
		}
	}

	d.Canvas = canvasFor(d.Nodes, opts)
	return d
}

// assignDepths runs an iterative BFS over node indices from the start node
// (or the first node). A depth is fixed on first discovery. Nodes never
// reached, including shadows of duplicated ids, share depth maxDepth+1.
// order is the discovery order followed by the unreached nodes in graph order.
func assignDepths(g *flowchart.Graph, index map[string]int) (depths []int, order []int) {
	depths = make([]int, len(g.Nodes))
	visited := make([]bool, len(g.Nodes))
	order = make([]int, 0, len(g.Nodes))

	root, ok := index[g.StartNodeID]
	if !ok {
		root = 0
	}
	visited[root] = true
	queue := []int{root}
	maxDepth := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		maxDepth = max(maxDepth, depths[i])

		for _, e := range flowchart.Outgoing(&g.Nodes[i]) {
			j, ok := index[e.Target]
			if !ok || visited[j] {
				continue
			}
			visited[j] = true
			depths[j] = depths[i] + 1
			queue = append(queue, j)
		}
	}

	for i := range g.Nodes {
		if !visited[i] {
			depths[i] = maxDepth + 1
			order = append(order, i)
		}
	}
	return depths, order
}

func route(from, to PlacedNode, e flowchart.Edge, opts Options) RoutedEdge {
	start := from.BottomCenter()
	if !e.Continue {
		start.X += float64(e.Index)*opts.ChoiceOffset - opts.ChoiceOffset/2
	}
	end := to.TopCenter()
	midY := start.Y + (end.Y-start.Y)/2
	control := Point{X: start.X, Y: midY}

	return RoutedEdge{
		FromID:      from.ID,
		ToID:        to.ID,
		ChoiceIndex: e.Index,
		Continue:    e.Continue,
		Label:       e.Label,
		From:        start,
		Control:     control,
		To:          end,
		LabelAnchor: control,
		Path:        fmt.Sprintf("M %g %g Q %g %g %g %g", start.X, start.Y, control.X, control.Y, end.X, end.Y),
	}
}

func canvasFor(nodes []PlacedNode, opts Options) Canvas {
	right, bottom := opts.MinCanvasWidth, opts.MinCanvasHeight
	for _, n := range nodes {
		right = max(right, n.X+n.Width)
		bottom = max(bottom, n.Y+n.Height)
	}
	return Canvas{Width: right + opts.Margin, Height: bottom + opts.Margin}
}

// Pin returns a copy of g with every node's Position set from d.
func Pin(g *flowchart.Graph, d Diagram) *flowchart.Graph {
	out := g.Clone()
	if out == nil {
		return nil
	}
	used := make(map[string]int, len(d.Nodes))
	for i := range out.Nodes {
		n := &out.Nodes[i]
		k := used[n.ID]
		used[n.ID]++
		seen := 0
		for _, p := range d.Nodes {
			if p.ID != n.ID {
				continue
			}
			if seen == k {
				n.Position = &flowchart.Position{X: p.X, Y: p.Y}
				break
			}
			seen++
		}
	}
	return out
}
