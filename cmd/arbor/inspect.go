package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [document-id]",
	Short: "Print a document's tree",
	Long:  `Prints the flat serialized tree of a stored document, template or file, or a markdown outline with --outline.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()

		root, version, err := st.LoadTree(cmd.Context(), sourceOf(cmd, args))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outline, _ := cmd.Flags().GetBool("outline"); outline {
			md := tui.Outline(root, "")
			if isTerminal() {
				if rendered, err := tui.NewRenderer()(md); err == nil {
					md = rendered
				}
			}
			_, err := fmt.Fprint(out, md)
			return err
		}

		data, err := json.MarshalIndent(struct {
			Version uint64                `json:"version"`
			Tree    domain.SerializedTree `json:"tree"`
		}{version, domain.Flatten(root)}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addSourceFlags(inspectCmd)
	inspectCmd.Flags().Bool("outline", false, "Print a markdown outline instead of JSON")
}
