package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

var (
	historyType  string
	historySort  string
	historyDesc  bool
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved meeting analyses",
	Long:  `List, show and look up saved meeting analyses.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyFindCmd = &cobra.Command{
	Use:   "find [filename]",
	Short: "Find the newest analysis of an uploaded file",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryFind,
}

func init() {
	historyListCmd.Flags().StringVar(&historyType, "type", "", "only meetings of this type")
	historyListCmd.Flags().StringVar(&historySort, "sort", string(domain.SortByTimestamp), "sort by timestamp or original_file")
	historyListCmd.Flags().BoolVar(&historyDesc, "desc", true, "sort in descending order")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum number of analyses (0 = all)")

	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "output as JSON")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyFindCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}
	sortBy := domain.SortField(historySort)
	if !sortBy.IsValid() {
		return fmt.Errorf("sort must be %q or %q: %w", domain.SortByTimestamp, domain.SortByOriginalFile, domain.ErrInvalidInput)
	}

	items, err := historyService.List(cmd.Context(), domain.ListOptions{
		MeetingType: historyType,
		SortBy:      sortBy,
		Descending:  historyDesc,
		Limit:       historyLimit,
	})
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	if historyJSON {
		if items == nil {
			items = []domain.CompactAnalysis{}
		}
		return outputJSON(cmd, items)
	}
	if len(items) == 0 {
		cmd.Println("No meetings recorded yet.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for _, item := range items {
		header := fmt.Sprintf("%s  %s", st.Label(item.ID), item.OriginalFile)
		if item.MeetingType != "" {
			header += " " + st.Muted("["+item.MeetingType+"]")
		}
		cmd.Println(header)
		cmd.Printf("    %s  %s\n", st.Muted(item.Timestamp.Local().Format(time.DateTime)), item.SummaryPreview)
	}
	cmd.Println()
	cmd.Println(st.Muted(fmt.Sprintf("%d meetings", len(items))))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}
	analysis, err := historyService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}
	if historyJSON {
		return outputJSON(cmd, analysis)
	}
	printAnalysis(cmd, analysis)
	return nil
}

func runHistoryFind(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}
	analysis, err := historyService.FindByFilename(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		if historyJSON {
			return outputJSON(cmd, map[string]bool{"found": false})
		}
		cmd.Printf("No analysis found for %s.\n", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding %s: %w", args[0], err)
	}
	if historyJSON {
		return outputJSON(cmd, analysis)
	}
	printAnalysis(cmd, analysis)
	return nil
}

// printAnalysis renders an analysis as sections of plain text.
func printAnalysis(cmd *cobra.Command, a *domain.MeetingAnalysis) {
	st := newStyles(cmd.OutOrStdout())

	cmd.Println(st.Title(a.OriginalFile))
	meta := []string{a.ID, a.Timestamp.Local().Format(time.DateTime)}
	if mt := a.MeetingType(); mt != "" {
		meta = append(meta, mt)
	}
	if lang := a.Language(); lang != "" {
		meta = append(meta, lang)
	}
	cmd.Println(st.Muted(strings.Join(meta, " | ")))
	cmd.Println()

	if strings.TrimSpace(a.Summary) != "" {
		cmd.Println(st.Label("Summary"))
		cmd.Println(a.Summary)
		cmd.Println()
	}
	printItems(cmd, st, "Topics", a.Topics)
	printItems(cmd, st, "Action items", a.ActionItems)
	printItems(cmd, st, "Decisions", a.Decisions)
}

func printItems(cmd *cobra.Command, st styles, title string, items []domain.AnalysisItem) {
	lines := domain.RenderItems(items)
	if len(lines) == 0 {
		return
	}
	cmd.Println(st.Label(title))
	for _, line := range lines {
		cmd.Printf("  - %s\n", line)
	}
	cmd.Println()
}
