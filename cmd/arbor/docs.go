package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage stored documents",
}

var docsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()

		ids, err := st.Workspace.Documents(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No documents found.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var docsRmCmd = &cobra.Command{
	Use:   "rm <document-id>...",
	Short: "Remove one or more documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()

		out := cmd.OutOrStdout()
		var failed int
		for _, id := range args {
			if err := st.Workspace.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(out, "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Removed document '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d document(s) not removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsLsCmd)
	docsCmd.AddCommand(docsRmCmd)
}
