package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ralmansi/pifchat/internal/generator"
	"github.com/ralmansi/pifchat/internal/logging"
)

// chatHistoryWindow bounds the in-memory conversation fed back into each
// answer, matching the generator's transcript window.
const chatHistoryWindow = 8

// NewChatCmd constructs the `pifchat chat` command: an interactive terminal
// session with conversation memory.
func NewChatCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively about the PIF annual reports",
		Long: `Start an interactive chat session. Follow-up questions see the recent
conversation, so "how does that compare to 2022?" resolves against the
previous exchange.

Session commands:
  /clear        forget the conversation so far
  exit, quit    leave the session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			svc, cleanup, err := buildServices(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer cleanup()

			fmt.Println("pifchat — ask about the PIF annual reports (Arabic or English).")
			fmt.Println("Type 'exit' to leave, '/clear' to start over.")
			fmt.Println()

			var history []generator.Turn
			scanner := bufio.NewScanner(os.Stdin)

			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())

				switch strings.ToLower(line) {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "/clear":
					history = nil
					fmt.Println("conversation cleared")
					continue
				}

				question, err := validateQuestion(line)
				if err != nil {
					fmt.Println(err)
					continue
				}

				answer := svc.rag.AnswerWithSources(ctx, question, history)
				fmt.Println()
				printSourcedAnswer(answer, showSources)
				fmt.Println()

				history = append(history,
					generator.Turn{Role: generator.RoleUser, Content: question},
					generator.Turn{Role: generator.RoleAssistant, Content: answer.Answer},
				)
				if len(history) > chatHistoryWindow {
					history = history[len(history)-chatHistoryWindow:]
				}
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: read input: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Show source years and similarity scores with each answer")

	return cmd
}
