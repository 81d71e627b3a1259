package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a scene document for consistency",
		Long:  `Decodes the scene, checks names, ports, scopes and connections, compiles every activation rule and evaluates it.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := loadScene(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			warn := color.New(color.FgYellow)
			for _, n := range ls.graph.Nodes() {
				if err := ls.graph.ActivationErrors()[n.Name()]; err != nil {
					warn.Fprintf(out, "warning: node %s: activation rule failed, node inactive: %v\n", n.Name(), err)
				}
			}
			color.New(color.FgGreen, color.Bold).Fprintf(out, "scene %s is valid: %d nodes, %d connections\n",
				ls.scene.Version, ls.graph.NodeCount(), len(ls.scene.Connections))
			return nil
		},
	}
}
