package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/arbor/pkg/registry"
	"github.com/spf13/cobra"
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List the components offered in the palette",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLABEL\tTRAITS")
		for _, meta := range registry.Default().Listed() {
			var traits []string
			if meta.AcceptsChildren {
				traits = append(traits, "container")
			}
			if meta.ContentEditable {
				traits = append(traits, "editable")
			}
			if meta.InlineOnly {
				traits = append(traits, "inline")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", meta.Name, meta.Label, strings.Join(traits, ","))
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(componentsCmd)
}
