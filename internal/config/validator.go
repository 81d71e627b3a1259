package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gyaneshwarpardhi/nodegraph/internal/condition"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// scoped records where a node was declared. scope is the name of the
// enclosing group, "" for the root graph.
type scoped struct {
	def   *NodeDef
	scope string
}

// Validate checks the scene for:
//   - required fields and numeric bounds (struct tags)
//   - unique node names across every scope and unique port names per node
//   - compilable activation rules, never combined with a literal active flag
//   - connection endpoints that exist, point the right way and share a scope
//   - at most one incoming connection per input or return port
func Validate(sc *Scene) error {
	var errs []string

	if err := structValidator.Struct(sc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Scene."), fe.Tag()))
		}
	}

	index := make(map[string]scoped)
	indexNodes(sc.Nodes, "", index, &errs)

	dests := make(map[string]string)
	for i, c := range sc.Connections {
		loc := fmt.Sprintf("connections[%d]", i)
		from, err := ParseEndpoint(c.From)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s.from: %s", loc, err))
			continue
		}
		to, err := ParseEndpoint(c.To)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s.to: %s", loc, err))
			continue
		}
		fromScope, ok := endpointScope(index, from, true, loc+".from", &errs)
		if !ok {
			continue
		}
		toScope, ok := endpointScope(index, to, false, loc+".to", &errs)
		if !ok {
			continue
		}
		if fromScope != toScope {
			errs = append(errs, fmt.Sprintf("%s: %s and %s are in different scopes (%s vs %s)",
				loc, from, to, scopeName(fromScope), scopeName(toScope)))
		}
		if prev, dup := dests[to.String()]; dup {
			errs = append(errs, fmt.Sprintf("%s: %s already fed by %s", loc, to, prev))
		} else {
			dests[to.String()] = from.String()
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func indexNodes(defs []NodeDef, scope string, index map[string]scoped, errs *[]string) {
	for i := range defs {
		n := &defs[i]
		if n.Name == "" {
			continue // reported by the struct validator
		}
		if strings.ContainsAny(n.Name, ".@") {
			*errs = append(*errs, fmt.Sprintf("node %q: name must not contain '.' or '@'", n.Name))
		}
		if prev, dup := index[n.Name]; dup {
			*errs = append(*errs, fmt.Sprintf("duplicate node %q (in %s and %s)", n.Name, scopeName(prev.scope), scopeName(scope)))
			continue
		}
		index[n.Name] = scoped{def: n, scope: scope}

		checkPorts(n, "inputs", n.Inputs, errs)
		checkPorts(n, "outputs", n.Outputs, errs)

		if n.ActiveWhen != "" {
			if n.Active != nil {
				*errs = append(*errs, fmt.Sprintf("node %s: active and active_when are mutually exclusive", n.Name))
			}
			if _, err := condition.Parse(n.ActiveWhen); err != nil {
				*errs = append(*errs, fmt.Sprintf("node %s: active_when %q: %s", n.Name, n.ActiveWhen, err))
			}
		}
		if len(n.Children) > 0 {
			indexNodes(n.Children, n.Name, index, errs)
		}
	}
}

func checkPorts(n *NodeDef, field string, ports []string, errs *[]string) {
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if strings.ContainsAny(p, ".@") {
			*errs = append(*errs, fmt.Sprintf("node %s: %s port %q must not contain '.' or '@'", n.Name, field, p))
		}
		if seen[p] {
			*errs = append(*errs, fmt.Sprintf("node %s: duplicate %s port %q", n.Name, field, p))
		}
		seen[p] = true
	}
}

// endpointScope resolves the scope an endpoint lives in. Sources are output
// ports or group entry faces; destinations are input ports or group return
// faces. The internal faces of a group belong to the group's own scope.
func endpointScope(index map[string]scoped, ep Endpoint, source bool, loc string, errs *[]string) (string, bool) {
	n, ok := index[ep.Node]
	if !ok {
		*errs = append(*errs, fmt.Sprintf("%s: unknown node %q", loc, ep.Node))
		return "", false
	}
	if ep.Internal && !n.def.IsGroup() {
		*errs = append(*errs, fmt.Sprintf("%s: %s is not a group, %s has no internal face", loc, ep.Node, ep))
		return "", false
	}
	// A source reads an output, or the internal face of an input (entry).
	want, field := n.def.Outputs, "output"
	if source == ep.Internal {
		want, field = n.def.Inputs, "input"
	}
	if !contains(want, ep.Port) {
		*errs = append(*errs, fmt.Sprintf("%s: %s has no %s port %q", loc, ep.Node, field, ep.Port))
		return "", false
	}
	if ep.Internal {
		return ep.Node, true
	}
	return n.scope, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func scopeName(s string) string {
	if s == "" {
		return "root"
	}
	return "group " + s
}
