package layout

import "github.com/softtagz-sys/medikits-flowchart/internal/flowchart"

type Style struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

var kindStyles = map[flowchart.Kind]Style{
	flowchart.KindStep:      {Color: "#3B82F6", Icon: "📋", Label: "Step"},
	flowchart.KindDecision:  {Color: "#F59E0B", Icon: "❓", Label: "Decision"},
	flowchart.KindEnd:       {Color: "#10B981", Icon: "✅", Label: "End"},
	flowchart.KindReference: {Color: "#8B5CF6", Icon: "🔄", Label: "Reference"},
}

var unknownStyle = Style{Color: "#6B7280", Icon: "⚪", Label: "Unknown"}

// StyleFor is a pure lookup on kind; unknown kinds render grey.
func StyleFor(k flowchart.Kind) Style {
	if s, ok := kindStyles[k]; ok {
		return s
	}
	return unknownStyle
}
