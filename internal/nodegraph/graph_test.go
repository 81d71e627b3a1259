package nodegraph_test

import (
	"reflect"
	"testing"

	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
)

const lightingScene = `
version: v1
variables:
  shot: "010"
  lod: high
nodes:
  - name: plate
    type: Alembic_In
    outputs: [out]
  - name: proxy
    type: Alembic_In
    outputs: [out]
    active_when: vars.lod == "low"
  - name: pick
    type: VariableSwitch
    inputs: [high, low]
    outputs: [out]
  - name: look
    type: Group
    inputs: [in]
    outputs: [out]
    children:
      - name: material
        type: MaterialAssign
        inputs: [in]
        outputs: [out]
        active_when: vars.lod in ["high", "mid"] && vars.shot != "000"
      - name: broken
        type: AttributeSet
        active_when: vars.missing > 1
  - name: render
    type: Render
    inputs: [in]
    active: false
connections:
  - {from: plate.out, to: pick.high}
  - {from: proxy.out, to: pick.low}
  - {from: pick.out, to: look.in}
  - {from: look.@in, to: material.in}
  - {from: material.out, to: look.@out}
  - {from: look.out, to: render.in}
`

func buildScene(t *testing.T) *nodegraph.Graph {
	t.Helper()
	sc, err := config.Parse([]byte(lightingScene))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := config.Validate(sc); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	g, err := nodegraph.Build(sc)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return g
}

func activation(g *nodegraph.Graph) map[string]bool {
	out := make(map[string]bool)
	for _, n := range g.Nodes() {
		out[n.Name()] = n.IsActivated()
	}
	return out
}

func TestBuild_FromScene(t *testing.T) {
	g := buildScene(t)

	if g.NodeCount() != 7 {
		t.Fatalf("expected 7 nodes, got %d", g.NodeCount())
	}
	var order []string
	for _, n := range g.Nodes() {
		order = append(order, n.Name())
	}
	want := []string{"plate", "proxy", "pick", "look", "material", "broken", "render"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("node order = %v, want %v", order, want)
	}

	look, ok := g.Node("look")
	if !ok {
		t.Fatal("look not found")
	}
	grp, ok := look.(nodegraph.GroupNode)
	if !ok {
		t.Fatal("look should be a group")
	}
	ret := grp.ReturnPortFor("out")
	if ret == nil || ret.Kind() != nodegraph.Return {
		t.Fatalf("ReturnPortFor(out) = %v", ret)
	}
	if src := ret.ConnectedSource(); src == nil || src.Node().Name() != "material" {
		t.Errorf("look.@out should be fed by material, got %v", src)
	}
	if grp.ReturnPortFor("nope") != nil {
		t.Error("ReturnPortFor should be nil for an undeclared output")
	}
	if e := grp.EntryPortFor("in"); e == nil || e.Kind() != nodegraph.Entry || e.ConnectedSource() != nil {
		t.Errorf("EntryPortFor(in) = %v", e)
	}
	if _, isGroup := mustNode(t, g, "pick").(nodegraph.GroupNode); isGroup {
		t.Error("pick should not be a group")
	}
}

func mustNode(t *testing.T, g *nodegraph.Graph, name string) nodegraph.Node {
	t.Helper()
	n, ok := g.Node(name)
	if !ok {
		t.Fatalf("node %s not found", name)
	}
	return n
}

func TestBuild_Activation(t *testing.T) {
	g := buildScene(t)
	want := map[string]bool{
		"plate":    true,
		"proxy":    false,
		"pick":     true,
		"look":     true,
		"material": true,
		"broken":   false,
		"render":   false,
	}
	if got := activation(g); !reflect.DeepEqual(got, want) {
		t.Errorf("activation = %v, want %v", got, want)
	}
	errs := g.ActivationErrors()
	if len(errs) != 1 || errs["broken"] == nil {
		t.Errorf("expected one activation error for broken, got %v", errs)
	}
}

func TestWithVariables(t *testing.T) {
	g := buildScene(t)

	low := g.WithVariables(map[string]interface{}{"lod": "low"})
	if !mustNode(t, low, "proxy").IsActivated() {
		t.Error("proxy should be active with lod=low")
	}
	if mustNode(t, low, "material").IsActivated() {
		t.Error("material should be inactive with lod=low")
	}
	if mustNode(t, g, "proxy").IsActivated() {
		t.Error("base snapshot changed")
	}
	if g.Variables()["lod"] != "high" || low.Variables()["lod"] != "low" {
		t.Errorf("variables: base %v, override %v", g.Variables(), low.Variables())
	}
	if g.WithVariables(nil) != g {
		t.Error("WithVariables(nil) should return the same snapshot")
	}

	fixed := g.WithVariables(map[string]interface{}{"missing": 5})
	if !mustNode(t, fixed, "broken").IsActivated() || len(fixed.ActivationErrors()) != 0 {
		t.Errorf("broken should evaluate once missing is set: %v", fixed.ActivationErrors())
	}
}

func TestStateVariables(t *testing.T) {
	g := buildScene(t)

	if got, want := g.StateVariables(), []string{"lod", "shot", "missing"}; !reflect.DeepEqual(got, want) {
		t.Errorf("StateVariables() = %v, want %v", got, want)
	}
	if got, want := g.StateVariables("lod"), []string{"shot", "missing"}; !reflect.DeepEqual(got, want) {
		t.Errorf("StateVariables(lod) = %v, want %v", got, want)
	}
}

func TestResolve(t *testing.T) {
	g := buildScene(t)
	tests := []struct {
		addr string
		node string
		kind nodegraph.PortKind
		port bool
	}{
		{"render", "render", 0, false},
		{"pick.out", "pick", nodegraph.Output, true},
		{"pick.high", "pick", nodegraph.Input, true},
		{"look.@out", "look", nodegraph.Return, true},
		{"look.@in", "look", nodegraph.Entry, true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			n, p, err := g.Resolve(tt.addr)
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if n.Name() != tt.node {
				t.Errorf("node = %s, want %s", n.Name(), tt.node)
			}
			if (p != nil) != tt.port {
				t.Fatalf("port = %v, want port: %v", p, tt.port)
			}
			if p != nil && (p.Kind() != tt.kind || p.Node() != n) {
				t.Errorf("port %v: kind %s, owner %v", p, p.Kind(), p.Node())
			}
		})
	}

	for _, bad := range []string{"ghost", "pick.nope", "pick.@out", "look.", ".out"} {
		if _, _, err := g.Resolve(bad); err == nil {
			t.Errorf("Resolve(%q) should fail", bad)
		}
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    *nodegraph.Builder
	}{
		{"duplicate node", nodegraph.NewBuilder().AddNode("a", "Op", nil, nil).AddNode("a", "Op", nil, nil)},
		{"empty name", nodegraph.NewBuilder().AddNode("", "Op", nil, nil)},
		{"unknown node", nodegraph.NewBuilder().SetActive("a", false)},
		{"bad rule", nodegraph.NewBuilder().AddNode("a", "Op", nil, nil).SetActiveWhen("a", "vars.x ==")},
		{"bad endpoint", nodegraph.NewBuilder().Connect("a", "b.in")},
		{"double feed", nodegraph.NewBuilder().Connect("a.out", "c.in").Connect("b.out", "c.in")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); err == nil {
				t.Error("expected an error")
			}
		})
	}

	b := nodegraph.NewBuilder()
	if _, err := b.Build(); err != nil {
		t.Fatalf("empty build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Error("second Build should fail")
	}
}

func TestPortRef_String(t *testing.T) {
	if got := (nodegraph.PortRef{Node: "g", Kind: nodegraph.Output, Name: "out"}).String(); got != "g.out" {
		t.Errorf("got %s", got)
	}
	if got := (nodegraph.PortRef{Node: "g", Kind: nodegraph.Return, Name: "out"}).String(); got != "g.@out" {
		t.Errorf("got %s", got)
	}
}
