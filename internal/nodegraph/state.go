package nodegraph

import (
	"github.com/gyaneshwarpardhi/nodegraph/internal/condition"
)

// evaluate derives the activation marker of every node from g.vars.
// Unconstrained nodes are activated; a rule that fails to evaluate leaves
// its node inactive and is kept in activationErrs.
func (g *Graph) evaluate() {
	g.activated = make(map[string]bool, len(g.records))
	g.activationErrs = make(map[string]error)
	for _, name := range g.order {
		r := g.records[name]
		switch {
		case r.rule != nil:
			ok, err := condition.Evaluate(r.rule, condition.Env{Vars: g.vars, NodeName: r.name, NodeType: r.typ})
			if err != nil {
				g.activationErrs[name] = err
				ok = false
			}
			g.activated[name] = ok
		case r.active != nil:
			g.activated[name] = *r.active
		default:
			g.activated[name] = true
		}
	}
}

// WithVariables returns a snapshot sharing g's topology whose activation is
// evaluated against g's variables overlaid with overrides. g is unchanged.
func (g *Graph) WithVariables(overrides map[string]interface{}) *Graph {
	if len(overrides) == 0 {
		return g
	}
	vars := g.Variables()
	for k, v := range overrides {
		vars[k] = v
	}
	next := &Graph{
		records: g.records,
		order:   g.order,
		links:   g.links,
		vars:    vars,
	}
	next.evaluate()
	return next
}

// StateVariables lists the graph-state variables activation rules read, in
// node declaration order, without duplicates and without the excluded names.
func (g *Graph) StateVariables(exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var out []string
	for _, name := range g.order {
		r := g.records[name]
		if r.rule == nil {
			continue
		}
		for _, v := range condition.Variables(r.rule) {
			if !skip[v] {
				skip[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
