package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index meeting history for search",
	Long: `Embeds every saved meeting analysis into the semantic index.

Meetings that are already indexed are skipped unless --force is given,
which re-embeds everything (use it after changing the embedding model).`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "re-index meetings that are already indexed")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("indexing not configured: set an embedding provider with 'minutes config embedding'")
	}

	n, err := indexService.IndexAll(cmd.Context(), indexForce)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	total, err := indexService.Count(cmd.Context())
	if err != nil {
		cmd.Println(st.Success(fmt.Sprintf("Indexed %d meetings.", n)))
		return nil
	}
	cmd.Println(st.Success(fmt.Sprintf("Indexed %d meetings (%d in index).", n, total)))
	return nil
}
