package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVarsCmd() *cobra.Command {
	var exclude []string
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "List the graph-state variables the activation rules read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := loadScene(cmd)
			if err != nil {
				return err
			}
			for _, v := range ls.graph.StateVariables(exclude...) {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Variable to leave out (repeatable)")
	return cmd
}
