package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
	"github.com/gyaneshwarpardhi/nodegraph/internal/traverse"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nodegraph",
		Short: "Query the logical upstream of nodes in a scene graph",
		Long: `nodegraph loads a scene document (nodes, ports, groups and connections)
and lists the nodes feeding a given node, following only the connections that
are active for the current graph-state variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("scene", "configs/scene.yaml", "Path to scene YAML document")

	root.AddCommand(newQueryCmd(), newValidateCmd(), newVarsCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadedScene is a validated scene with its graph and traversal defaults.
type loadedScene struct {
	scene    *config.Scene
	graph    *nodegraph.Graph
	defaults traverse.Settings
}

func loadScene(cmd *cobra.Command) (*loadedScene, error) {
	path, _ := cmd.Flags().GetString("scene")
	sc, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(sc); err != nil {
		return nil, err
	}
	g, err := nodegraph.Build(sc)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	defaults, err := traverse.SettingsFromConfig(sc.Traversal)
	if err != nil {
		return nil, err
	}
	return &loadedScene{scene: sc, graph: g, defaults: defaults}, nil
}
