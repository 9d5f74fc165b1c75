package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
)

func chain(ids ...string) *flowchart.Graph {
	g := &flowchart.Graph{ID: "chain", StartNodeID: ids[0]}
	for i, id := range ids {
		n := flowchart.Node{ID: id, Kind: flowchart.KindStep, Title: id}
		if i+1 < len(ids) {
			n.NextNodeID = ids[i+1]
		} else {
			n.Kind = flowchart.KindEnd
		}
		g.Nodes = append(g.Nodes, n)
	}
	return g
}

func branching() *flowchart.Graph {
	return &flowchart.Graph{
		ID:          "bleeding",
		StartNodeID: "A",
		Nodes: []flowchart.Node{
			{ID: "A", Kind: flowchart.KindDecision, DecisionChoices: []flowchart.Choice{
				{Label: "Heavy", TargetNodeID: "B"},
				{Label: "Light", TargetNodeID: "C"},
				{Label: "Unknown", TargetNodeID: "gone"},
			}},
			{ID: "B", Kind: flowchart.KindStep, NextNodeID: "D"},
			{ID: "C", Kind: flowchart.KindDecision, DecisionChoices: []flowchart.Choice{
				{Label: "Again", TargetNodeID: "A"},
				{Label: "Done", TargetNodeID: "D"},
			}},
			{ID: "D", Kind: flowchart.KindEnd},
		},
	}
}

func depthsByID(d Diagram) map[string]int {
	out := make(map[string]int, len(d.Nodes))
	for _, n := range d.Nodes {
		out[n.ID] = n.Depth
	}
	return out
}

func TestCompute_ChainGivesOneNodePerBand(t *testing.T) {
	d := Compute(chain("A", "B", "C", "D", "E"), DefaultOptions())

	require.Len(t, d.Nodes, 5)
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}, {"D"}, {"E"}}, d.Bands)
	for i, n := range d.Nodes {
		assert.Equal(t, i, n.Depth)
		assert.Equal(t, 50+float64(i)*150, n.Y)
		assert.Equal(t, float64(300), n.X, "single node band is centred in 800")
	}
	assert.True(t, d.Nodes[0].IsStart)
	assert.Len(t, d.Edges, 4)
}

func TestCompute_IsolatedNodeGoesToDeepestBand(t *testing.T) {
	g := chain("A", "B", "C")
	g.Nodes = append(g.Nodes, flowchart.Node{ID: "lonely", Kind: flowchart.KindStep})

	d := Compute(g, DefaultOptions())

	require.Len(t, d.Nodes, 4)
	assert.Equal(t, 3, depthsByID(d)["lonely"])
	assert.Equal(t, []string{"lonely"}, d.Bands[len(d.Bands)-1])
}

func TestCompute_DepthIsShortestDistance(t *testing.T) {
	d := Compute(branching(), DefaultOptions())

	assert.Equal(t, map[string]int{"A": 0, "B": 1, "C": 1, "D": 2}, depthsByID(d))
	assert.Equal(t, [][]string{{"A"}, {"B", "C"}, {"D"}}, d.Bands)
}

func TestCompute_UnreachableKeepOriginalOrder(t *testing.T) {
	g := &flowchart.Graph{StartNodeID: "A", Nodes: []flowchart.Node{
		{ID: "X", Kind: flowchart.KindStep, NextNodeID: "Y"},
		{ID: "A", Kind: flowchart.KindStep, NextNodeID: "B"},
		{ID: "Y", Kind: flowchart.KindEnd},
		{ID: "B", Kind: flowchart.KindEnd},
	}}

	d := Compute(g, DefaultOptions())

	assert.Equal(t, [][]string{{"A"}, {"B"}, {"X", "Y"}}, d.Bands)
}

func TestCompute_FallsBackToFirstNode(t *testing.T) {
	for _, start := range []string{"", "missing"} {
		g := chain("A", "B")
		g.StartNodeID = start

		d := Compute(g, DefaultOptions())

		assert.Equal(t, [][]string{{"A"}, {"B"}}, d.Bands)
		assert.False(t, d.Nodes[0].IsStart)
	}
}

func TestCompute_IsTotal(t *testing.T) {
	g := branching()
	g.Nodes = append(g.Nodes,
		flowchart.Node{ID: "B", Kind: flowchart.KindEnd},
		flowchart.Node{ID: "orphan", Kind: "mystery"},
		flowchart.Node{ID: "loop", Kind: flowchart.KindStep, NextNodeID: "loop"},
	)

	d := Compute(g, DefaultOptions())

	require.Len(t, d.Nodes, len(g.Nodes))
	count := map[string]int{}
	for _, n := range d.Nodes {
		count[n.ID]++
	}
	assert.Equal(t, 2, count["B"])
	o, ok := d.Node("orphan")
	require.True(t, ok)
	assert.Equal(t, unknownStyle, o.Style)
}

func TestCompute_IsDeterministic(t *testing.T) {
	g := branching()
	first := Compute(g, DefaultOptions())
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, Compute(g, DefaultOptions())); diff != "" {
			t.Fatalf("layout changed between runs (-first +next):\n%s", diff)
		}
	}
}

func TestCompute_DoesNotTouchGraph(t *testing.T) {
	g := branching()
	before := g.Clone()

	Compute(g, DefaultOptions())

	assert.Equal(t, before, g)
}

func TestCompute_EdgesSkipDanglingAndCarryLabels(t *testing.T) {
	d := Compute(branching(), DefaultOptions())

	var labels []string
	for _, e := range d.Edges {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"Heavy", "Light", flowchart.ContinueLabel, "Again", "Done"}, labels)
}

func TestCompute_EdgeGeometry(t *testing.T) {
	d := Compute(branching(), DefaultOptions())

	a, _ := d.Node("A")
	b, _ := d.Node("B")
	c, _ := d.Node("C")

	heavy, light := d.Edges[0], d.Edges[1]
	assert.Equal(t, Point{X: a.X + 100 - 10, Y: a.Y + 80}, heavy.From)
	assert.Equal(t, Point{X: a.X + 100 + 10, Y: a.Y + 80}, light.From)
	assert.Equal(t, b.TopCenter(), heavy.To)
	assert.Equal(t, c.TopCenter(), light.To)

	midY := heavy.From.Y + (heavy.To.Y-heavy.From.Y)/2
	assert.Equal(t, Point{X: heavy.From.X, Y: midY}, heavy.Control)
	assert.Equal(t, heavy.Control, heavy.LabelAnchor)
	assert.Equal(t, "M 390 130 Q 390 165 275 200", heavy.Path)

	cont := d.Edges[2]
	assert.True(t, cont.Continue)
	assert.Equal(t, b.BottomCenter(), cont.From)
}

func TestCompute_BandCentring(t *testing.T) {
	d := Compute(branching(), DefaultOptions())

	b, _ := d.Node("B")
	c, _ := d.Node("C")
	assert.Equal(t, float64(175), b.X)
	assert.Equal(t, float64(425), c.X)
	assert.Equal(t, float64(200), b.Y)
}

func TestCompute_Canvas(t *testing.T) {
	small := Compute(chain("A", "B"), DefaultOptions())
	assert.Equal(t, Canvas{Width: 850, Height: 650}, small.Canvas)

	wide := &flowchart.Graph{StartNodeID: "root"}
	root := flowchart.Node{ID: "root", Kind: flowchart.KindDecision}
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		root.DecisionChoices = append(root.DecisionChoices, flowchart.Choice{Label: id, TargetNodeID: id})
		wide.Nodes = append(wide.Nodes, flowchart.Node{ID: id, Kind: flowchart.KindEnd})
	}
	wide.Nodes = append([]flowchart.Node{root}, wide.Nodes...)

	d := Compute(wide, DefaultOptions())
	// 5*200 + 4*50 = 1200 wide band starting at the margin.
	assert.Equal(t, Canvas{Width: 50 + 1200 + 50, Height: 650}, d.Canvas)

	empty := Compute(&flowchart.Graph{}, DefaultOptions())
	assert.Empty(t, empty.Nodes)
	assert.Equal(t, Canvas{Width: 850, Height: 650}, empty.Canvas)
	assert.Equal(t, Canvas{Width: 850, Height: 650}, Compute(nil, Options{}).Canvas)
}

func TestCompute_CustomOptions(t *testing.T) {
	opts := Options{NodeWidth: 100, NodeHeight: 40, BandHeight: 60, NodeSpacing: 10, Margin: 20, MinCanvasWidth: 300, MinCanvasHeight: 200, ChoiceOffset: 8}
	d := Compute(chain("A", "B"), opts)

	assert.Equal(t, float64(100), d.Nodes[0].X)
	assert.Equal(t, float64(80), d.Nodes[1].Y)
	assert.Equal(t, float64(40), d.Nodes[1].Height)
}

func TestPin_SetsPositions(t *testing.T) {
	g := chain("A", "B")
	d := Compute(g, DefaultOptions())

	pinned := Pin(g, d)

	require.NotNil(t, pinned.Nodes[1].Position)
	assert.Equal(t, flowchart.Position{X: 300, Y: 200}, *pinned.Nodes[1].Position)
	assert.Nil(t, g.Nodes[1].Position)
	assert.Nil(t, Pin(nil, d))
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, "#3B82F6", StyleFor(flowchart.KindStep).Color)
	assert.Equal(t, "#F59E0B", StyleFor(flowchart.KindDecision).Color)
	assert.Equal(t, "#10B981", StyleFor(flowchart.KindEnd).Color)
	assert.Equal(t, "#8B5CF6", StyleFor(flowchart.KindReference).Color)
	assert.Equal(t, "#6B7280", StyleFor("other").Color)
}
