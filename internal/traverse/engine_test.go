package traverse_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
	"github.com/gyaneshwarpardhi/nodegraph/internal/traverse"
)

var (
	in     = []string{"in"}
	out    = []string{"out"}
	merge2 = []string{"i0", "i1"}
)

func names(nodes []nodegraph.Node) []string {
	res := make([]string, 0, len(nodes))
	for _, n := range nodes {
		res = append(res, n.Name())
	}
	return res
}

func mustBuild(t *testing.T, b *nodegraph.Builder) *nodegraph.Graph {
	t.Helper()
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func node(t *testing.T, g *nodegraph.Graph, name string) nodegraph.Node {
	t.Helper()
	n, ok := g.Node(name)
	require.True(t, ok, "node %s", name)
	return n
}

func upstream(t *testing.T, g *nodegraph.Graph, start string, s traverse.Settings) []string {
	t.Helper()
	n, p, err := g.Resolve(start)
	require.NoError(t, err)
	st := traverse.FromNode(n)
	if p != nil {
		st = traverse.FromPort(p)
	}
	nodes, err := traverse.UpstreamNodes(st, s)
	require.NoError(t, err)
	return names(nodes)
}

func physical() traverse.Settings { return traverse.DefaultSettings().WithLogicalOnly(false) }

// A -> B -> C.i0, D -> C.i1; D is not activated.
func switchGraph(t *testing.T) *nodegraph.Graph {
	return mustBuild(t, nodegraph.NewBuilder().
		AddNode("A", "Read", nil, out).
		AddNode("B", "Transform", in, out).
		AddNode("D", "Read", nil, out).
		AddNode("C", "VariableSwitch", merge2, out).
		Connect("A.out", "B.in").
		Connect("B.out", "C.i0").
		Connect("D.out", "C.i1").
		SetActive("D", false))
}

func TestUpstreamNodes_LogicalFiltering(t *testing.T) {
	g := switchGraph(t)

	assert.Equal(t, []string{"C", "B", "A"}, upstream(t, g, "C", traverse.DefaultSettings()))
	assert.Equal(t, []string{"C", "B", "A", "D"}, upstream(t, g, "C", physical()))
}

func TestUpstreamNodes_ActivationFromVariables(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddNode("hero", "Read", nil, out).
		AddNode("stunt", "Read", nil, out).
		AddNode("sw", "VariableSwitch", merge2, out).
		Connect("hero.out", "sw.i0").
		Connect("stunt.out", "sw.i1").
		SetActiveWhen("hero", `vars.take == "hero"`).
		SetActiveWhen("stunt", `vars.take == "stunt"`).
		Variables(map[string]interface{}{"take": "hero"}))

	assert.Equal(t, []string{"sw", "hero"}, upstream(t, g, "sw", traverse.DefaultSettings()))

	stunt := g.WithVariables(map[string]interface{}{"take": "stunt"})
	assert.Equal(t, []string{"sw", "stunt"}, upstream(t, stunt, "sw", traverse.DefaultSettings()))
	assert.Equal(t, []string{"sw", "hero"}, upstream(t, g, "sw", traverse.DefaultSettings()), "snapshot must not change")
}

func TestUpstreamNodes_BranchOrder(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddNode("A3", "Read", nil, out).
		AddNode("A2", "Op", in, out).
		AddNode("A1", "Op", in, out).
		AddNode("B1", "Read", nil, out).
		AddNode("C", "Merge", merge2, out).
		Connect("A3.out", "A2.in").
		Connect("A2.out", "A1.in").
		Connect("A1.out", "C.i0").
		Connect("B1.out", "C.i1"))

	assert.Equal(t, []string{"C", "A1", "A2", "A3", "B1"}, upstream(t, g, "C", traverse.DefaultSettings()))
}

func TestUpstreamNodes_DiamondListsNodesOnce(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddNode("R", "Read", nil, out).
		AddNode("A", "Op", in, out).
		AddNode("B", "Op", in, out).
		AddNode("C", "Merge", merge2, out).
		Connect("R.out", "A.in").
		Connect("R.out", "B.in").
		Connect("A.out", "C.i0").
		Connect("B.out", "C.i1"))

	assert.Equal(t, []string{"C", "A", "R", "B"}, upstream(t, g, "C", traverse.DefaultSettings()))
}

func TestUpstreamNodes_SameSourceOnTwoInputs(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddNode("R", "Read", nil, out).
		AddNode("C", "Merge", merge2, out).
		Connect("R.out", "C.i0").
		Connect("R.out", "C.i1"))

	assert.Equal(t, []string{"C", "R"}, upstream(t, g, "C", traverse.DefaultSettings()))
}

func TestUpstreamNodes_CycleTerminates(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddNode("A", "Op", in, out).
		AddNode("B", "Op", in, out).
		Connect("A.out", "B.in").
		Connect("B.out", "A.in"))

	assert.Equal(t, []string{"A", "B"}, upstream(t, g, "A", traverse.DefaultSettings()))
}

// X -> G.in; inside G: G.@in -> E -> F -> G.@out.
func groupGraph(t *testing.T, groupType string) *nodegraph.Graph {
	return mustBuild(t, nodegraph.NewBuilder().
		AddNode("X", "Read", nil, out).
		AddGroup("G", groupType, in, out).
		AddNode("E", "Op", in, out).
		AddNode("F", "Op", in, out).
		AddNode("C", "Op", in, out).
		Connect("X.out", "G.in").
		Connect("G.@in", "E.in").
		Connect("E.out", "F.in").
		Connect("F.out", "G.@out").
		Connect("G.out", "C.in"))
}

func TestUpstreamNodes_GroupScope(t *testing.T) {
	g := groupGraph(t, "Group")
	withGroups := traverse.DefaultSettings().WithIncludeGroups(true)

	assert.Equal(t, []string{"G", "F", "E", "X"}, upstream(t, g, "G", withGroups))
	assert.Equal(t, []string{"F", "E", "X"}, upstream(t, g, "G", traverse.DefaultSettings()))
	assert.Equal(t, []string{"C", "G", "F", "E", "X"}, upstream(t, g, "C", withGroups))
	assert.Equal(t, []string{"C", "F", "E", "X"}, upstream(t, g, "C", traverse.DefaultSettings()))
	assert.Equal(t, []string{"F", "E", "X"}, upstream(t, g, "G.out", traverse.DefaultSettings()))
}

func TestUpstreamNodes_GroupOpacity(t *testing.T) {
	excluded, err := traverse.DefaultSettings().WithExcludedGroupTypes("GafferThree")
	require.NoError(t, err)

	opaque := upstream(t, groupGraph(t, "GafferThree"), "C", excluded)
	assert.Equal(t, []string{"C", "G", "X"}, opaque)

	// Same result as a plain node standing where the group is.
	plain := mustBuild(t, nodegraph.NewBuilder().
		AddNode("X", "Read", nil, out).
		AddNode("G", "GafferThree", in, out).
		AddNode("C", "Op", in, out).
		Connect("X.out", "G.in").
		Connect("G.out", "C.in"))
	assert.Equal(t, opaque, upstream(t, plain, "C", excluded))

	// Other group types are still entered.
	assert.Equal(t, []string{"C", "F", "E", "X"}, upstream(t, groupGraph(t, "Group"), "C", excluded))
}

func TestUpstreamNodes_NestedGroups(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddNode("X", "Read", nil, out).
		AddGroup("O", "Group", in, out).
		AddNode("M", "Op", in, out).
		AddGroup("H", "Group", in, out).
		AddNode("K", "Op", in, out).
		Connect("X.out", "O.in").
		Connect("O.@in", "M.in").
		Connect("M.out", "H.in").
		Connect("H.@in", "K.in").
		Connect("K.out", "H.@out").
		Connect("H.out", "O.@out"))

	withGroups := traverse.DefaultSettings().WithIncludeGroups(true)
	assert.Equal(t, []string{"O", "H", "K", "M", "X"}, upstream(t, g, "O", withGroups))
	assert.Equal(t, []string{"K", "M", "X"}, upstream(t, g, "O", traverse.DefaultSettings()))
}

func TestUpstreamNodes_PassThroughGroup(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddNode("X", "Read", nil, out).
		AddGroup("P", "Group", in, out).
		AddNode("C", "Op", in, out).
		Connect("X.out", "P.in").
		Connect("P.@in", "P.@out").
		Connect("P.out", "C.in"))

	assert.Equal(t, []string{"C", "X"}, upstream(t, g, "C", traverse.DefaultSettings()))
	assert.Equal(t, []string{"C", "P", "X"}, upstream(t, g, "C", traverse.DefaultSettings().WithIncludeGroups(true)))
}

func TestUpstreamNodes_GroupWithTwoOutputs(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().
		AddGroup("G", "Group", nil, []string{"a", "b"}).
		AddNode("Ra", "Read", nil, out).
		AddNode("Rb", "Read", nil, out).
		AddNode("C", "Merge", merge2, out).
		Connect("Ra.out", "G.@a").
		Connect("Rb.out", "G.@b").
		Connect("G.a", "C.i0").
		Connect("G.b", "C.i1"))

	withGroups := traverse.DefaultSettings().WithIncludeGroups(true)
	assert.Equal(t, []string{"C", "G", "Ra", "Rb"}, upstream(t, g, "C", withGroups))
	assert.Equal(t, []string{"C", "Ra", "Rb"}, upstream(t, g, "C", traverse.DefaultSettings()))
}

func TestUpstreamNodes_LeaveThroughEntryPort(t *testing.T) {
	g := groupGraph(t, "Group")

	assert.Equal(t, []string{"X"}, upstream(t, g, "G.@in", traverse.DefaultSettings()))
	assert.Equal(t, []string{"G", "X"}, upstream(t, g, "G.in", traverse.DefaultSettings().WithIncludeGroups(true)))
}

func TestUpstreamNodes_Deterministic(t *testing.T) {
	g := groupGraph(t, "Group")
	s := traverse.DefaultSettings().WithIncludeGroups(true)
	first := upstream(t, g, "C", s)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, upstream(t, g, "C", s))
	}
}

func TestUpstreamNodes_Reachability(t *testing.T) {
	graphs := map[string]*nodegraph.Graph{
		"switch": switchGraph(t),
		"group":  groupGraph(t, "Group"),
	}
	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			for _, n := range g.Nodes() {
				nodes, err := traverse.UpstreamNodes(traverse.FromNode(n), physical().WithIncludeGroups(true))
				if err != nil {
					continue
				}
				reach := structuralClosure(n)
				seen := make(map[string]bool)
				for _, got := range nodes {
					assert.False(t, seen[got.Name()], "%s listed twice from %s", got.Name(), n.Name())
					seen[got.Name()] = true
					assert.True(t, reach[got.Name()], "%s not upstream of %s", got.Name(), n.Name())
				}
			}
		})
	}
}

// structuralClosure is every node reachable backward from n through any
// connection, including group interiors, ignoring order and activation.
func structuralClosure(n nodegraph.Node) map[string]bool {
	reach := map[string]bool{}
	var visit func(nodegraph.Node)
	visit = func(n nodegraph.Node) {
		if reach[n.Name()] {
			return
		}
		reach[n.Name()] = true
		var ports []nodegraph.Port
		ports = append(ports, n.InputPorts()...)
		if g, ok := n.(nodegraph.GroupNode); ok {
			for _, o := range g.OutputPorts() {
				ports = append(ports, g.ReturnPortFor(o.Name()))
			}
		}
		for _, p := range ports {
			if src := p.ConnectedSource(); src != nil && src.Node() != nil {
				visit(src.Node())
			}
		}
	}
	visit(n)
	return reach
}

func TestUpstreamNodes_DepthCeiling(t *testing.T) {
	b := nodegraph.NewBuilder().AddNode("n0", "Read", nil, out)
	for i := 1; i < 10; i++ {
		b.AddNode(fmt.Sprintf("n%d", i), "Op", in, out).
			Connect(fmt.Sprintf("n%d.out", i-1), fmt.Sprintf("n%d.in", i))
	}
	g := mustBuild(t, b)

	shallow, err := traverse.DefaultSettings().WithMaxDepth(3)
	require.NoError(t, err)
	_, err = traverse.UpstreamNodes(traverse.FromNode(node(t, g, "n9")), shallow)
	var deep *traverse.GraphTooDeepError
	require.ErrorAs(t, err, &deep)
	assert.Equal(t, 3, deep.Limit)
	assert.Equal(t, "n5", deep.Node)

	nodes, err := traverse.UpstreamNodes(traverse.FromNode(node(t, g, "n9")), traverse.DefaultSettings())
	require.NoError(t, err)
	assert.Len(t, nodes, 10)
}

func TestUpstreamNodes_DanglingConnection(t *testing.T) {
	cases := map[string]*nodegraph.Builder{
		"missing node": nodegraph.NewBuilder().
			AddNode("C", "Op", in, out).
			Connect("ghost.out", "C.in"),
		"undeclared port": nodegraph.NewBuilder().
			AddNode("A", "Read", nil, out).
			AddNode("C", "Op", in, out).
			Connect("A.nope", "C.in"),
		"entry face of plain node": nodegraph.NewBuilder().
			AddNode("A", "Read", in, out).
			AddNode("C", "Op", in, out).
			Connect("A.@in", "C.in"),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			g := mustBuild(t, b)
			_, err := traverse.UpstreamNodes(traverse.FromNode(node(t, g, "C")), physical())
			var ce *traverse.GraphConsistencyError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "C", ce.Node)
			assert.Equal(t, "in", ce.Port)
		})
	}
}

func TestUpstreamNodes_BareGroupWithoutOutput(t *testing.T) {
	g := mustBuild(t, nodegraph.NewBuilder().AddGroup("G", "Group", in, nil))

	_, err := traverse.UpstreamNodes(traverse.FromNode(node(t, g, "G")), traverse.DefaultSettings())
	var shape *traverse.UnsupportedGraphShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "G", shape.Node)
}

func TestUpstreamNodes_StartValidation(t *testing.T) {
	g := switchGraph(t)
	a, b := node(t, g, "A"), node(t, g, "B")

	_, err := traverse.UpstreamNodes(traverse.Start{Node: a, Port: b.OutputPorts()[0]}, traverse.DefaultSettings())
	var ce *traverse.GraphConsistencyError
	assert.ErrorAs(t, err, &ce)

	_, err = traverse.UpstreamNodes(traverse.Start{}, traverse.DefaultSettings())
	var shape *traverse.UnsupportedGraphShapeError
	assert.ErrorAs(t, err, &shape)

	_, err = traverse.UpstreamNodes(traverse.FromNode(a), traverse.Settings{})
	var cfg *traverse.ConfigurationError
	assert.ErrorAs(t, err, &cfg)
}

// A host model whose group lacks the return mapping for a declared output.
type fakePort struct {
	owner nodegraph.Node
	name  string
	kind  nodegraph.PortKind
	src   nodegraph.Port
}

func (p *fakePort) Node() nodegraph.Node     { return p.owner }
func (p *fakePort) Name() string             { return p.name }
func (p *fakePort) Kind() nodegraph.PortKind { return p.kind }
func (p *fakePort) ConnectedSource() nodegraph.Port {
	if p.src == nil {
		return nil
	}
	return p.src
}

type fakeNode struct {
	name      string
	ins, outs []nodegraph.Port
}

func (n *fakeNode) Name() string                  { return n.name }
func (n *fakeNode) Type() string                  { return "Fake" }
func (n *fakeNode) InputPorts() []nodegraph.Port  { return n.ins }
func (n *fakeNode) OutputPorts() []nodegraph.Port { return n.outs }
func (n *fakeNode) IsActivated() bool             { return true }

type fakeGroup struct {
	fakeNode
}

func (g *fakeGroup) ReturnPortFor(string) nodegraph.Port { return nil }
func (g *fakeGroup) EntryPortFor(string) nodegraph.Port  { return nil }

func TestUpstreamNodes_MissingReturnMapping(t *testing.T) {
	grp := &fakeGroup{fakeNode{name: "G"}}
	gout := &fakePort{owner: grp, name: "out", kind: nodegraph.Output}
	grp.outs = []nodegraph.Port{gout}
	c := &fakeNode{name: "C"}
	c.ins = []nodegraph.Port{&fakePort{owner: c, name: "in", kind: nodegraph.Input, src: gout}}

	_, err := traverse.UpstreamNodes(traverse.FromNode(c), traverse.DefaultSettings())
	var ce *traverse.GraphConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "G", ce.Node)
	assert.Equal(t, "out", ce.Port)
}
