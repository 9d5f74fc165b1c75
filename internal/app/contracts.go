package app

import (
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/layout"
	"github.com/softtagz-sys/medikits-flowchart/internal/snapshot"
	"github.com/softtagz-sys/medikits-flowchart/internal/traversal"
)

// FlowchartService is what the command line needs from the service.
type FlowchartService interface {
	Load(data []byte, f snapshot.Format) (*flowchart.Graph, error)
	Check(g *flowchart.Graph) []flowchart.Issue
	Layout(g *flowchart.Graph) layout.Diagram
	Pin(g *flowchart.Graph) *flowchart.Graph
	RenderDOT(g *flowchart.Graph) ([]byte, error)
	Convert(data []byte, from, to snapshot.Format) ([]byte, error)
	Walk(g *flowchart.Graph, actions []traversal.Action, vars map[string]any) (traversal.Report, error)
}

var _ FlowchartService = (*Service)(nil)
