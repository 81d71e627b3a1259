package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodegraph/internal/service"
)

const exampleScene = "../../configs/scene.yaml"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--scene", exampleScene))
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Fields(s)
}

func TestQueryCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			"defaults",
			[]string{"query", "--start", "render"},
			[]string{"render", "render_settings", "lights", "look_merge", "material", "shot_fix", "dot1", "lod_switch", "plate"},
		},
		{
			"include groups skip dots",
			[]string{"query", "--start", "render", "--include-groups", "--skip-type", "Dot"},
			[]string{"render", "render_settings", "lights", "look", "look_merge", "material", "shot_fix", "lod_switch", "plate"},
		},
		{
			"variable override",
			[]string{"query", "--start", "lod_switch", "--var", "lod=low"},
			[]string{"lod_switch", "plate", "plate_proxy"},
		},
		{
			"physical",
			[]string{"query", "--start", "lod_switch", "--physical"},
			[]string{"lod_switch", "plate", "plate_proxy"},
		},
		{
			"opaque group entered when not excluded",
			[]string{"query", "--start", "lights.out", "--exclude-group-type", "LiveGroup"},
			[]string{"rig", "look_merge", "material", "shot_fix", "dot1", "lod_switch", "plate"},
		},
		{
			"shot filtered",
			[]string{"query", "--start", "look", "--var", "shot=sh999"},
			[]string{"look_merge", "material", "dot1", "lod_switch", "plate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, lines(out))
		})
	}
}

func TestQueryCmd_JSON(t *testing.T) {
	out, err := run(t, "query", "--start", "dot1", "--json")
	require.NoError(t, err)

	var res service.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"dot1", "lod_switch", "plate"}, res.Nodes)
	assert.Equal(t, []string{"Dot", "VariableSwitch", "Alembic_In"}, res.Types)
}

func TestQueryCmd_Errors(t *testing.T) {
	_, err := run(t, "query")
	assert.Error(t, err, "missing --start")

	_, err = run(t, "query", "--start", "ghost")
	assert.Error(t, err)

	_, err = run(t, "query", "--start", "render", "--var", "novalue")
	assert.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "scene v1 is valid: 12 nodes, 14 connections")
}

func TestVarsCmd(t *testing.T) {
	out, err := run(t, "vars")
	require.NoError(t, err)
	assert.Equal(t, []string{"lod", "shot"}, lines(out))

	out, err = run(t, "vars", "--exclude", "lod")
	require.NoError(t, err)
	assert.Equal(t, []string{"shot"}, lines(out))
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"lod=low", "frame=101", "hero=true", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "low", vars["lod"])
	assert.Equal(t, 101, vars["frame"])
	assert.Equal(t, true, vars["hero"])
	assert.Nil(t, vars["empty"])

	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}
