package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List or scaffold page templates",
}

var templatesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List available templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()

		names, err := st.Workspace.Templates()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), "- "+name)
		}
		return nil
	},
}

var templatesInitCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Write the starter templates into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := cli.Scaffold(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d templates to %s\n", len(names), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesLsCmd)
	templatesCmd.AddCommand(templatesInitCmd)
}
