package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check trees for consistency",
	Long: `Validates the given JSON tree files, or every template when no file is
given: one root, no orphans, no shared children and only known components.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()

		out := cmd.OutOrStdout()
		failed := 0
		if len(args) > 0 {
			for _, path := range args {
				if _, _, err := st.LoadTree(cmd.Context(), cli.Source{File: path}); err != nil {
					fmt.Fprintf(out, "✗ %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "✓ %s\n", path)
			}
		} else {
			names, failures, err := st.ValidateTemplates(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				if err, bad := failures[name]; bad {
					fmt.Fprintf(out, "✗ %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "✓ %s\n", name)
			}
			failed = len(failures)
		}
		if failed > 0 {
			return errors.New("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
