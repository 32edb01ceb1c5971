package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepwise/internal/cli"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question step by step",
	Long: `Answers the question given as arguments and exits.
Without arguments, starts an interactive prompt; type 'exit' or 'quit' to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		headless, _ := cmd.Flags().GetBool("headless")

		return cli.Ask(context.Background(), cli.AskOptions{
			Options:  commonOptions(cmd),
			Query:    strings.Join(args, " "),
			JSON:     jsonMode,
			Headless: headless,
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	askCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, no system messages)")

	// 'ask' is the default when no command is provided.
	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.Flags().AddFlagSet(askCmd.Flags())
	rootCmd.RunE = askCmd.RunE
}
