package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	analyzeLanguage string
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyse a recording or transcript",
	Long: `Transcribes an audio recording (or reads a text transcript), extracts the
summary, topics, action items and decisions, saves the analysis to the
history and indexes it for search.

Accepted formats: .wav .mp3 .m4a .webm .ogg .flac .mp4 (audio) and
.txt .md .vtt .srt (text).`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeLanguage, "language", "l", "", "spoken language hint (e.g. en, es)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the analysis as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("analysis not configured: set an LLM provider with 'minutes config llm'")
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	analysis, err := ingestService.Ingest(cmd.Context(), filepath.Base(path), f, info.Size(), analyzeLanguage)
	if err != nil {
		return fmt.Errorf("analysing %s: %w", path, err)
	}

	if analyzeJSON {
		return outputJSON(cmd, analysis)
	}
	printAnalysis(cmd, analysis)
	cmd.Println(newStyles(cmd.OutOrStdout()).Success("Saved as " + analysis.ID))
	return nil
}
