package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/view"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv", "sessions"},
	Short:   "Manage stored conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		summaries, err := app.store.List()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%s  %s  (%d messages, %s)\n",
				s.ID, s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation's messages and deliberation results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		conv, err := app.store.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s\n%s\n\n", conv.Title, strings.Repeat("─", len(conv.Title)))
		for _, msg := range conv.Messages {
			switch msg.Role {
			case "user":
				fmt.Printf("You: %s\n\n", msg.Content)
			case "assistant":
				printSession(msg.Content, msg.Session)
			}
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted conversation %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
}

// printSession renders a stored assistant turn: per-round peer standings
// followed by the synthesized answer and session totals.
func printSession(content string, session *council.Session) {
	if session == nil {
		fmt.Printf("Council: %s\n\n", content)
		return
	}
	snapshot := view.SnapshotOf(session)
	for _, round := range snapshot.Rounds {
		if len(round.Standings) == 0 {
			continue
		}
		fmt.Printf("Standings (%s):\n", round.Kind)
		for i, st := range round.Standings {
			if st.Reviews == 0 {
				fmt.Printf("  #%d %s — %s (unranked)\n", i+1, st.Label, st.Model)
				continue
			}
			fmt.Printf("  #%d %s — %s (mean %.2f over %d reviews)\n",
				i+1, st.Label, st.Model, st.MeanRank, st.Reviews)
		}
	}
	fmt.Printf("Council: %s\n", content)
	for _, pe := range snapshot.Errors {
		fmt.Printf("  ! %s failed during %s: %s\n", pe.Model, pe.Stage, pe.Message)
	}
	if snapshot.Metrics != nil {
		fmt.Printf("  %d tokens · $%.4f\n", snapshot.Metrics.TotalTokens, snapshot.Metrics.CostUSD)
	}
	fmt.Println()
}
