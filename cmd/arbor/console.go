package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console [document-id]",
	Short: "Edit a document from an interactive console",
	Long: `Opens a document and reads editing commands (add, rm, mv, set, text,
select, arrow keys to reorder) from stdin. With --json, reads and writes NDJSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()

		doc := "default"
		if len(args) > 0 {
			doc = args[0]
		}
		template, _ := cmd.Flags().GetString("template")
		jsonMode, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
		defer stop()

		return st.RunConsole(ctx, cli.ConsoleOptions{
			Document: doc,
			Template: template,
			JSON:     jsonMode,
			Pretty:   !jsonMode && isTerminal(),
			In:       os.Stdin,
			Out:      cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("template", "", "Template used when the document does not exist")
	consoleCmd.Flags().Bool("json", false, "Read and write NDJSON")
}
