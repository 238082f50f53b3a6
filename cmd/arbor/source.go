package main

import (
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("template", "", "Read a template instead of a stored document")
	cmd.Flags().String("file", "", "Read a JSON tree file instead of a stored document")
}

// sourceOf resolves the tree source from flags, or the document id argument.
func sourceOf(cmd *cobra.Command, args []string) cli.Source {
	template, _ := cmd.Flags().GetString("template")
	file, _ := cmd.Flags().GetString("file")
	src := cli.Source{Template: template, File: file}
	if template == "" && file == "" {
		src.Document = "default"
		if len(args) > 0 {
			src.Document = args[0]
		}
	}
	return src
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
