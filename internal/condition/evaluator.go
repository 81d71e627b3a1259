package condition

import (
	"fmt"
)

// Root names understood by Env.
const (
	RootVars = "vars"
	RootNode = "node"
)

// Scope resolves field paths during evaluation.
type Scope interface {
	Lookup(path []string) (interface{}, bool)
}

// Env is the evaluation scope of one node's activation rule: the graph-state
// variable snapshot plus the node's own name and type.
type Env struct {
	Vars     map[string]interface{}
	NodeName string
	NodeType string
}

// Lookup implements Scope.
func (e Env) Lookup(path []string) (interface{}, bool) {
	if len(path) != 2 {
		return nil, false
	}
	switch path[0] {
	case RootVars:
		v, ok := e.Vars[path[1]]
		return v, ok
	case RootNode:
		switch path[1] {
		case "name":
			return e.NodeName, true
		case "type":
			return e.NodeType, true
		}
	}
	return nil, false
}

// Evaluate reports whether a compiled rule holds in scope.
func Evaluate(expr Expr, scope Scope) (bool, error) {
	switch e := expr.(type) {
	case *LogicalExpr:
		left, err := Evaluate(e.Left, scope)
		if err != nil {
			return false, err
		}
		if e.Op == "AND" && !left {
			return false, nil
		}
		if e.Op == "OR" && left {
			return true, nil
		}
		return Evaluate(e.Right, scope)
	case *NotExpr:
		v, err := Evaluate(e.Expr, scope)
		return !v && err == nil, err
	case *TruthExpr:
		v, err := resolve(e.Operand, scope)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	case *ComparisonExpr:
		left, err := resolve(e.Left, scope)
		if err != nil {
			return false, err
		}
		right, err := resolve(e.Right, scope)
		if err != nil {
			return false, err
		}
		return compare(e, left, right)
	}
	return false, fmt.Errorf("unknown expression %T", expr)
}

func resolve(op Operand, scope Scope) (interface{}, error) {
	switch o := op.(type) {
	case *Literal:
		return o.Value, nil
	case *Field:
		v, ok := scope.Lookup(o.Path)
		if !ok {
			return nil, fmt.Errorf("field %q not found", o.String())
		}
		return v, nil
	case *List:
		out := make([]interface{}, 0, len(o.Items))
		for _, it := range o.Items {
			v, err := resolve(it, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown operand %T", op)
}
