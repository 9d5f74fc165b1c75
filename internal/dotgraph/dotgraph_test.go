package dotgraph

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/layout"
)

func compileFile(t *testing.T, path string) *flowchart.Graph {
	t.Helper()
	dot, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewCompiler().Compile(string(dot))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCompiler_Choking(t *testing.T) {
	g := compileFile(t, "testdata/choking.dot")

	if g.ID != "choking" || g.Name != "Choking" || g.StartNodeID != "can-cough" {
		t.Fatalf("unexpected graph header: id=%q name=%q start=%q", g.ID, g.Name, g.StartNodeID)
	}
	if len(g.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(g.Nodes))
	}

	start, _ := g.Node("can-cough")
	if start.Kind != flowchart.KindDecision {
		t.Fatalf("expected decision, got %s", start.Kind)
	}
	want := []flowchart.Choice{
		{Label: "Yes", TargetNodeID: "encourage"},
		{Label: "No", TargetNodeID: "blows"},
		{Label: "Unconscious", TargetNodeID: "call", Condition: "expert"},
	}
	if diff := cmp.Diff(want, start.DecisionChoices); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
	if start.Instruction != "Ask the victim to cough" {
		t.Fatalf("unexpected instruction %q", start.Instruction)
	}

	enc, _ := g.Node("encourage")
	if enc.NextNodeID != "ok" || enc.ExpertInstruction != "Keep observing for exhaustion" {
		t.Fatalf("unexpected step node: %+v", enc)
	}

	blows, _ := g.Node("blows")
	if blows.Kind != flowchart.KindReference || blows.ReferenceID != "back-blows" {
		t.Fatalf("unexpected reference node: %+v", blows)
	}

	call, _ := g.Node("call")
	if call.EndKind != flowchart.EndEmergency || call.EndMessage != "Stay with the victim" {
		t.Fatalf("unexpected end node: %+v", call)
	}

	if issues := flowchart.Validate(g); len(issues) != 0 {
		t.Fatalf("expected a clean graph, got %v", issues)
	}
}

func TestCompiler_ExplicitChoiceOrder(t *testing.T) {
	dot := `digraph g {
		root=q;
		q [shape=diamond];
		a [shape=doublecircle];
		b [shape=doublecircle];
		q -> b [label="second", id="q-choice-1"];
		q -> a [label="first", id="q-choice-0"];
	}`

	g, err := NewCompiler().Compile(dot)
	if err != nil {
		t.Fatal(err)
	}
	q, _ := g.Node("q")
	if q.DecisionChoices[0].Label != "first" || q.DecisionChoices[1].Label != "second" {
		t.Fatalf("expected explicit order, got %+v", q.DecisionChoices)
	}
}

func TestCompiler_Errors(t *testing.T) {
	tests := []struct {
		name string
		dot  string
		want string
	}{
		{name: "syntax", dot: `digraph {`, want: "parse"},
		{name: "undirected", dot: `graph g { a [shape=box]; }`, want: "digraph"},
		{name: "unknown attribute", dot: `digraph g { a [shape=box, result="x"]; }`, want: "analyze"},
		{name: "missing shape", dot: `digraph g { a; }`, want: "shape"},
		{name: "edge to undeclared node", dot: `digraph g { a [shape=box]; a -> b; }`, want: `node "b"`},
		{name: "two continue edges", dot: `digraph g { a [shape=box]; b [shape=box]; c [shape=box]; a -> b; a -> c; }`, want: "at most 1"},
		{name: "end with edge", dot: `digraph g { a [shape=doublecircle]; b [shape=box]; a -> b; }`, want: "end node"},
		{name: "bad condition", dot: `digraph g { a [shape=diamond]; b [shape=box]; a -> b [comment="len(x)"]; }`, want: "invalid condition"},
		{name: "bad pos", dot: `digraph g { a [shape=box, pos="1"]; }`, want: "pos"},
		{name: "subgraph", dot: `digraph g { subgraph s { a [shape=box]; } }`, want: "subgraph"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler().Compile(tt.dot)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRender_RoundTrip(t *testing.T) {
	g := compileFile(t, "testdata/choking.dot")
	g.Nodes[1].Instruction = "Say \"cough\"\nand wait"
	g.Nodes[1].Image = "https://example.org/cough.png"
	d := layout.Compute(g, layout.DefaultOptions())

	out, err := Render(g, &d)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `fillcolor="#F59E0B"`) {
		t.Fatalf("expected decision colour in output:\n%s", out)
	}

	back, err := NewCompiler().Compile(out)
	if err != nil {
		t.Fatalf("rendered DOT does not compile: %v\n%s", err, out)
	}

	want := layout.Pin(g, d)
	if diff := cmp.Diff(want, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_IsDeterministic(t *testing.T) {
	g := compileFile(t, "testdata/choking.dot")

	first, err := Render(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		next, _ := Render(g, nil)
		if next != first {
			t.Fatalf("render output changed between runs")
		}
	}
}

func TestRender_Errors(t *testing.T) {
	if _, err := Render(nil, nil); err == nil {
		t.Fatalf("expected error for nil graph")
	}

	dangling := &flowchart.Graph{Nodes: []flowchart.Node{{ID: "a", Kind: flowchart.KindStep, NextNodeID: "gone"}}}
	if _, err := Render(dangling, nil); err == nil {
		t.Fatalf("expected error for dangling edge")
	}

	dup := &flowchart.Graph{Nodes: []flowchart.Node{{ID: "a", Kind: flowchart.KindStep}, {ID: "a", Kind: flowchart.KindEnd}}}
	if _, err := Render(dup, nil); err == nil {
		t.Fatalf("expected error for duplicate ids")
	}

	unknown := &flowchart.Graph{Nodes: []flowchart.Node{{ID: "a", Kind: "mystery"}}}
	if _, err := Render(unknown, nil); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestCodec_EncodeRejectsUnsetChoiceTargets(t *testing.T) {
	g := &flowchart.Graph{ID: "wip", StartNodeID: "q", Nodes: []flowchart.Node{
		{ID: "q", Kind: flowchart.KindDecision, DecisionChoices: []flowchart.Choice{{Label: "Yes"}, {Label: "No", TargetNodeID: "e"}}},
		{ID: "e", Kind: flowchart.KindEnd},
	}}

	_, err := NewCodec().Encode(g)
	if !errors.Is(err, ErrUnsetChoiceTarget) {
		t.Fatalf("expected ErrUnsetChoiceTarget, got %v", err)
	}
	if !strings.Contains(err.Error(), `node "q" choice 0 ("Yes")`) {
		t.Fatalf("error should name the node and choice: %v", err)
	}

	if _, err := Render(g, nil); err != nil {
		t.Fatalf("render should stay permissive for previews: %v", err)
	}

	g.Nodes[0].DecisionChoices[0].TargetNodeID = "e"
	if _, err := NewCodec().Encode(g); err != nil {
		t.Fatalf("resolved graph should encode: %v", err)
	}
}

func TestCodec(t *testing.T) {
	c := NewCodec()
	if c.Name() != "dot" {
		t.Fatalf("unexpected codec name %q", c.Name())
	}
	g := compileFile(t, "testdata/choking.dot")

	data, err := c.Encode(g)
	if err != nil {
		t.Fatal(err)
	}
	back, err := c.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(g, back); diff != "" {
		t.Fatalf("codec round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestQuote(t *testing.T) {
	for _, s := range []string{"", "plain", `a "quoted" word`, `back\slash`, "line\nbreak", "📋 emoji"} {
		if got := unquote(quote(s)); got != s {
			t.Fatalf("quote/unquote(%q) = %q", s, got)
		}
	}
	if unquote("bare") != "bare" {
		t.Fatalf("bare ids must pass through")
	}
	if unquote(`"keep \n escapes"`) != `keep \n escapes` {
		t.Fatalf("unknown escapes must be kept")
	}
}
