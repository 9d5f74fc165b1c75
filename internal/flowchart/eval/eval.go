// Package eval evaluates the guard conditions attached to decision choices.
package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

type MissingVariablesError struct {
	Vars []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing variables [%s]", strings.Join(e.Vars, ", "))
}

// Eval reports whether cond holds for vars. An empty condition always holds.
func Eval(cond string, vars map[string]any) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	if err := Validate(cond); err != nil {
		return false, err
	}

	names, err := Identifiers(cond)
	if err != nil {
		return false, err
	}
	var missing []string
	for _, name := range names {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return false, &MissingVariablesError{Vars: missing}
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}
	out, err := expr.Eval(cond, env)
	if err != nil {
		return false, err
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("cond must evaluate to bool (got %T)", out)
	}

	return b, nil
}

// Check validates cond and makes sure it parses.
func Check(cond string) error {
	if err := Validate(cond); err != nil {
		return err
	}
	_, err := Identifiers(cond)
	return err
}

// Identifiers lists the variable names referenced by cond, sorted.
func Identifiers(cond string) ([]string, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil, nil
	}
	tree, err := parser.Parse(cond)
	if err != nil {
		return nil, err
	}
	v := &identCollector{seen: map[string]struct{}{}}
	ast.Walk(&tree.Node, v)
	sort.Strings(v.names)
	return v.names, nil
}

type identCollector struct {
	seen  map[string]struct{}
	names []string
}

func (c *identCollector) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, dup := c.seen[id.Value]; dup {
		return
	}
	c.seen[id.Value] = struct{}{}
	c.names = append(c.names, id.Value)
}
