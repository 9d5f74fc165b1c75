package flowchart

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart/eval"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

const (
	CodeDanglingTarget   = "dangling-target"
	CodeDuplicateID      = "duplicate-id"
	CodeMissingStart     = "missing-start"
	CodeDanglingStart    = "dangling-start"
	CodeIsolatedNode     = "isolated-node"
	CodeUnsetTarget      = "unset-target"
	CodeKindMismatch     = "kind-mismatch"
	CodeEndHasOutgoing   = "end-has-outgoing"
	CodeInvalidField     = "invalid-field"
	CodeInvalidCondition = "invalid-condition"
)

type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	NodeID   string   `json:"nodeId,omitempty"`
	Choice   *int     `json:"choice,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(string(i.Severity))
	b.WriteString(" [")
	b.WriteString(i.Code)
	b.WriteString("]")
	if i.NodeID != "" {
		b.WriteString(" node=")
		b.WriteString(i.NodeID)
	}
	if i.Choice != nil {
		fmt.Fprintf(&b, " choice=%d", *i.Choice)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	fieldValidatorOnce sync.Once
	fieldValidator     *validator.Validate
)

func structValidator() *validator.Validate {
	fieldValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		fieldValidator = v
	})
	return fieldValidator
}

// Validate reports structural problems of g. It never fails: graphs under
// editing are expected to be transiently invalid.
func Validate(g *Graph) []Issue {
	if g == nil {
		return nil
	}
	issues := make([]Issue, 0)

	issues = append(issues, fieldIssues("", g)...)

	index := g.Index()
	if len(g.Nodes) > 0 {
		if g.StartNodeID == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeMissingStart,
				Message:  "graph has nodes but no start node",
			})
		} else if _, ok := index[g.StartNodeID]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeDanglingStart,
				Field:    "startNodeId",
				Message:  fmt.Sprintf("start node %q does not exist", g.StartNodeID),
			})
		}
	}

	incoming := make(map[string]int, len(g.Nodes))
	for i := range g.Nodes {
		for _, e := range Outgoing(&g.Nodes[i]) {
			if e.Target != "" {
				incoming[e.Target]++
			}
		}
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]

		if _, dup := seen[n.ID]; dup && n.ID != "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeDuplicateID,
				NodeID:   n.ID,
				Message:  fmt.Sprintf("node id %q is used more than once", n.ID),
			})
		}
		seen[n.ID] = struct{}{}

		issues = append(issues, fieldIssues(n.ID, n)...)
		issues = append(issues, kindIssues(n)...)

		out := Outgoing(n)
		for _, e := range out {
			var choice *int
			if !e.Continue {
				idx := e.Index
				choice = &idx
			}
			if e.Target == "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Code:     CodeUnsetTarget,
					NodeID:   n.ID,
					Choice:   choice,
					Message:  fmt.Sprintf("edge %q has no target yet", e.Label),
				})
			} else if _, ok := index[e.Target]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     CodeDanglingTarget,
					NodeID:   n.ID,
					Choice:   choice,
					Message:  fmt.Sprintf("edge %q points at missing node %q", e.Label, e.Target),
				})
			}
			if e.Condition != "" {
				if err := eval.Check(e.Condition); err != nil {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Code:     CodeInvalidCondition,
						NodeID:   n.ID,
						Choice:   choice,
						Message:  fmt.Sprintf("condition %q: %v", e.Condition, err),
					})
				}
			}
		}

		if n.Kind != KindEnd && n.Kind.Valid() && len(out) == 0 && incoming[n.ID] == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Code:     CodeIsolatedNode,
				NodeID:   n.ID,
				Message:  "node has no incoming and no outgoing edges",
			})
		}
	}

	return issues
}

func kindIssues(n *Node) []Issue {
	var out []Issue
	mismatch := func(field string) {
		out = append(out, Issue{
			Severity: SeverityWarning,
			Code:     CodeKindMismatch,
			NodeID:   n.ID,
			Field:    field,
			Message:  fmt.Sprintf("%s is ignored on %s nodes", field, n.Kind),
		})
	}

	switch n.Kind {
	case KindEnd:
		if len(n.DecisionChoices) > 0 || n.NextNodeID != "" {
			out = append(out, Issue{
				Severity: SeverityError,
				Code:     CodeEndHasOutgoing,
				NodeID:   n.ID,
				Message:  "end nodes cannot have outgoing edges",
			})
		}
		if n.ReferenceID != "" {
			mismatch("referenceId")
		}
	case KindDecision:
		if n.NextNodeID != "" {
			mismatch("nextNodeId")
		}
		if n.ReferenceID != "" {
			mismatch("referenceId")
		}
		if n.EndKind != "" || n.EndMessage != "" {
			mismatch("endKind")
		}
	case KindStep, KindReference:
		if len(n.DecisionChoices) > 0 {
			mismatch("decisionChoices")
		}
		if n.EndKind != "" || n.EndMessage != "" {
			mismatch("endKind")
		}
		if n.Kind == KindStep && n.ReferenceID != "" {
			mismatch("referenceId")
		}
	}
	return out
}

func fieldIssues(nodeID string, v any) []Issue {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []Issue{{Severity: SeverityError, Code: CodeInvalidField, NodeID: nodeID, Message: err.Error()}}
	}
	out := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, Issue{
			Severity: SeverityError,
			Code:     CodeInvalidField,
			NodeID:   nodeID,
			Field:    field,
			Message:  describeFieldError(fe),
		})
	}
	return out
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value()))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	}
	return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
}
