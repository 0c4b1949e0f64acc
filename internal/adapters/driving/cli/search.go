package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// snippetLength is the preview length of a matched document.
const snippetLength = 160

var (
	searchLimit int
	searchType  string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search meeting history",
	Long: `Performs semantic search across indexed meeting analyses.
The query is embedded and ranked against every indexed meeting by cosine
similarity. Run 'minutes index' first if results look incomplete.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultTopK, "maximum number of results (1-50)")
	searchCmd.Flags().StringVar(&searchType, "type", "", "only meetings of this type (e.g. Standup)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	var filters map[string]string
	if searchType != "" {
		filters = map[string]string{domain.MetaMeetingType: searchType}
	}

	results, err := searchService.SemanticSearch(cmd.Context(), args[0], searchLimit, filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title("Results:"))
	cmd.Println()
	for i := range results {
		r := results[i]
		cmd.Printf("  [%d] %s %s\n", i+1, st.Label(r.Name()), st.Score(fmt.Sprintf("(%.2f)", r.Score)))

		var details []string
		if ts := r.Metadata[domain.MetaTimestamp]; ts != "" {
			details = append(details, ts)
		}
		if mt := r.Metadata[domain.MetaMeetingType]; mt != "" {
			details = append(details, mt)
		}
		if len(details) > 0 {
			cmd.Printf("      %s\n", st.Muted(strings.Join(details, " | ")))
		}
		if snippet := strings.Join(strings.Fields(r.MatchedText), " "); snippet != "" {
			cmd.Printf("      %s\n", truncate(snippet, snippetLength))
		}
		cmd.Println()
	}
	return nil
}
