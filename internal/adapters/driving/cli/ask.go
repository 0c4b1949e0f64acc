package cli

import (
	"fmt"
	"iter"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

var (
	askTopK    int
	askSession string
	askStream  bool
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about past meetings",
	Long: `Answers a question from the meeting history.

The question is expanded by the LLM, matched against the semantic index, and
answered from the retrieved meetings with numbered source citations.

Pass --session to keep a conversation going across invocations of a running
process, or --stream to print the answer as it is generated.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "limit", "n", domain.DefaultTopK, "number of meetings to retrieve (1-50)")
	askCmd.Flags().StringVar(&askSession, "session", "", "conversation session id")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer while it is generated")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	if ragService == nil {
		cmd.Println(domain.NotConfiguredAnswer)
		return nil
	}
	if askStream && !askJSON {
		return streamAnswer(cmd, question)
	}

	var (
		res *domain.ChatResult
		err error
	)
	if askSession != "" {
		res, err = ragService.Ask(cmd.Context(), askSession, question, askTopK)
	} else {
		res, err = ragService.Chat(cmd.Context(), question, nil, askTopK)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputJSON(cmd, res)
	}
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(res.Answer)
	printSources(cmd, st, res.Sources)
	return nil
}

func streamAnswer(cmd *cobra.Command, question string) error {
	var events iter.Seq[domain.RAGEvent]
	if askSession != "" {
		events = ragService.AskStream(cmd.Context(), askSession, question, askTopK)
	} else {
		events = ragService.ChatStream(cmd.Context(), question, nil, askTopK)
	}

	st := newStyles(cmd.OutOrStdout())
	var sources []domain.Source
	for ev := range events {
		switch ev.Kind {
		case domain.RAGEventSources:
			sources = ev.Sources
		case domain.RAGEventChunk:
			cmd.Print(ev.Chunk)
		case domain.RAGEventError:
			cmd.Println()
			return fmt.Errorf("ask failed: %w", ev.Err)
		}
	}
	cmd.Println()
	printSources(cmd, st, sources)
	return nil
}

func printSources(cmd *cobra.Command, st styles, sources []domain.Source) {
	if len(sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(st.Title("Sources:"))
	for i, src := range sources {
		line := fmt.Sprintf("  [%d] %s %s", i+1, st.Label(src.Name), st.Score(fmt.Sprintf("(%.2f)", src.Score)))
		if src.Timestamp != "" {
			line += " " + st.Muted(src.Timestamp)
		}
		cmd.Println(line)
	}
}
