package cmd

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <conversation-id>",
	Short: "Resume an interrupted deliberation",
	Long: `Pick up a deliberation that was interrupted mid-flight. Completed
stages are replayed from the checkpoint; only the remaining work runs.

Equivalent to: synod ask --conversation <id> --resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		askConversation = args[0]
		askResume = true
		return runAsk(cmd, nil)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().StringVar(&askMode, "mode", "council", `deliberation mode: "council" or "debate"`)
	resumeCmd.Flags().BoolVar(&askPlain, "plain", false, "print plain progress lines instead of the interactive view")
}
