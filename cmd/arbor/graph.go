package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [document-id]",
	Short: "Export the instance tree as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD) of a stored document, template or file.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()

		root, _, err := st.LoadTree(cmd.Context(), sourceOf(cmd, args))
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if selected, _ := cmd.Flags().GetString("highlight"); selected != "" {
			overlay = &graph.GraphOverlay{Selected: selected}
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(root, st.Workspace.Registry(), overlay))
		return err
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addSourceFlags(graphCmd)
	graphCmd.Flags().String("highlight", "", "Instance id to mark as selected")
}
