package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/store"
	"github.com/synod-dev/synod/internal/tui"
)

var (
	askMode         string
	askRounds       int
	askConversation string
	askResume       bool
	askPlain        bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the council a question",
	Long: `Send a question to the council and watch the deliberation live:
concurrent responses, anonymous peer ranking, and the chairman's
synthesized answer.

An interrupted deliberation can be picked up where it stopped:

  synod ask --conversation <id> --resume`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askMode, "mode", "council", `deliberation mode: "council" or "debate"`)
	askCmd.Flags().IntVar(&askRounds, "rounds", 0, "rebuttal rounds in debate mode (default from config)")
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "continue an existing conversation by ID")
	askCmd.Flags().BoolVar(&askResume, "resume", false, "resume an interrupted deliberation")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "print plain progress lines instead of the interactive view")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && !askResume {
		return fmt.Errorf("a question is required (or --resume to continue an interrupted deliberation)")
	}

	mode := council.Mode(askMode)
	if mode != council.ModeCouncil && mode != council.ModeDebate {
		return fmt.Errorf("unknown mode %q", askMode)
	}

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	conv, err := resolveConversation(app, question)
	if err != nil {
		return err
	}

	lock, err := app.store.AcquireLock(conv.ID)
	if err != nil {
		return err
	}
	defer lock.Release()

	if question != "" {
		if _, err := app.store.AppendMessage(conv.ID, store.Message{
			Role:      "user",
			Content:   question,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
	} else {
		question = lastQuestion(app, conv.ID)
	}

	rounds := askRounds
	if rounds == 0 {
		rounds = app.cfg.Council.DebateRounds
	}
	req := council.Request{
		ConversationID: conv.ID,
		Content:        question,
		Mode:           mode,
		DebateRounds:   rounds,
		Resume:         askResume,
	}

	if askPlain {
		return runPlain(ctx, app, conv.ID, req)
	}
	return runInteractive(ctx, app, conv.ID, req, question)
}

// resolveConversation loads the requested conversation or starts a new one.
func resolveConversation(app *app, question string) (*store.Conversation, error) {
	if askConversation != "" {
		return app.store.Load(askConversation)
	}
	if askResume {
		return nil, fmt.Errorf("--resume requires --conversation")
	}
	return app.store.Create(question)
}

func lastQuestion(app *app, conversationID string) string {
	conv, err := app.store.Load(conversationID)
	if err != nil {
		return ""
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == "user" {
			return conv.Messages[i].Content
		}
	}
	return ""
}

func runInteractive(ctx context.Context, app *app, conversationID string, req council.Request, question string) error {
	p := tea.NewProgram(tui.New(question), tea.WithContext(ctx))

	go func() {
		session, runErr := app.orch.Run(ctx, req, func(ev council.Event) {
			p.Send(tui.EventMsg{Event: ev})
		})
		persistOutcome(app, conversationID, session, runErr)
		p.Send(tui.DoneMsg{Session: session, Err: runErr})
	}()

	final, err := p.Run()
	if ctx.Err() != nil {
		fmt.Fprintf(os.Stderr, "interrupted — resume with: synod resume %s\n", conversationID)
		return nil
	}
	if err != nil {
		return err
	}
	if m, ok := final.(tui.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

func runPlain(ctx context.Context, app *app, conversationID string, req council.Request) error {
	session, runErr := app.orch.Run(ctx, req, func(ev council.Event) {
		switch ev.Type {
		case council.EventStageStart:
			fmt.Printf("▸ %s\n", ev.Stage)
		case council.EventModelComplete:
			fmt.Printf("  ✓ %s\n", ev.Response.Model)
		case council.EventModelError:
			fmt.Printf("  ✗ %s (%s)\n", ev.Model, ev.Error.Category)
		case council.EventStageComplete:
			for i, s := range ev.Standings {
				fmt.Printf("  #%d %s — %s\n", i+1, s.Label, s.Model)
			}
		case council.EventSynthesisComplete:
			fmt.Printf("\n%s\n", ev.Synthesis.Content)
		case council.EventMetricsComplete:
			fmt.Printf("\n%d tokens · $%.4f\n", ev.Metrics.TotalTokens, ev.Metrics.CostUSD)
		case council.EventSessionInterrupted:
			fmt.Fprintf(os.Stderr, "interrupted at %s — resume with: synod ask --conversation %s --resume\n", ev.Stage, conversationID)
		}
	})
	persistOutcome(app, conversationID, session, runErr)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// persistOutcome appends the assistant message for completed runs.
// Interrupted runs keep their checkpoint instead; resume rebuilds from it.
func persistOutcome(app *app, conversationID string, session *council.Session, runErr error) {
	if session == nil || runErr != nil {
		return
	}
	content := ""
	if session.Synthesis != nil {
		content = session.Synthesis.Content
	}
	if _, err := app.store.AppendMessage(conversationID, store.Message{
		Role:      "assistant",
		Content:   content,
		Session:   session,
		CreatedAt: time.Now(),
	}); err != nil {
		app.logger.Error("failed to persist assistant message", "error", err)
	}
}
