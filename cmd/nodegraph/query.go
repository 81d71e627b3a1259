package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/nodegraph/internal/service"
	"github.com/gyaneshwarpardhi/nodegraph/internal/traverse"
)

func newQueryCmd() *cobra.Command {
	var (
		start         string
		physical      bool
		includeGroups bool
		excluded      []string
		skipTypes     []string
		vars          []string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List the nodes upstream of a start node",
		Long: `Walks the scene graph upstream from --start ("node" or "node.port", with
"group.@port" for a group's internal face) and prints the nodes in visit order.`,
		Example: `  nodegraph query --scene scene.yaml --start render
  nodegraph query --start look.out --include-groups --skip-type Dot --var lod=low`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := loadScene(cmd)
			if err != nil {
				return err
			}

			overrides := map[string]interface{}{}
			if cmd.Flags().Changed("physical") {
				overrides[traverse.KeyLogicalOnly] = !physical
			}
			if cmd.Flags().Changed("include-groups") {
				overrides[traverse.KeyIncludeGroups] = includeGroups
			}
			if cmd.Flags().Changed("exclude-group-type") {
				overrides[traverse.KeyExcludedGroupTypes] = excluded
			}
			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			res, err := service.Run(ls.graph, ls.defaults, &service.Query{
				ID:        "cli",
				Start:     start,
				Settings:  overrides,
				Variables: variables,
				SkipTypes: skipTypes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			for _, name := range res.Nodes {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&start, "start", "", `Start node, "node" or "node.port"`)
	f.BoolVar(&physical, "physical", false, "Follow every connection, not only those from activated nodes")
	f.BoolVar(&includeGroups, "include-groups", false, "List group nodes in the output")
	f.StringSliceVar(&excluded, "exclude-group-type", nil, "Group type to treat as a plain node (repeatable)")
	f.StringSliceVar(&skipTypes, "skip-type", nil, "Node type to leave out of the output (repeatable)")
	f.StringArrayVar(&vars, "var", nil, "Graph-state variable override key=value (repeatable)")
	f.BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

// parseVars turns key=value pairs into variables. Values are read as YAML
// scalars, so "3" is a number and "true" a bool.
func parseVars(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--var %q: want key=value", p)
		}
		var val interface{}
		if err := yaml.Unmarshal([]byte(v), &val); err != nil {
			return nil, fmt.Errorf("--var %s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}
