package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ralmansi/pifchat/internal/logging"
)

// NewAskCmd constructs the `pifchat ask` command, which answers a single
// question and exits.
func NewAskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question about the PIF annual reports",
		Long: `Answer one question, Arabic or English, grounded in the indexed annual
reports, then exit.

Examples:
  pifchat ask "What were PIF's total assets under management in 2023?"
  pifchat ask "ما هي استثمارات نيوم؟"
  pifchat ask --sources "How many jobs did PIF create?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			question, err := validateQuestion(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			svc, cleanup, err := buildServices(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			answer := svc.rag.AnswerWithSources(ctx, question, nil)
			printSourcedAnswer(answer, showSources)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Show source years and similarity scores with the answer")

	return cmd
}
