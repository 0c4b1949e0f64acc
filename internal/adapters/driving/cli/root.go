// Package cli implements the minutes command-line interface.
//
// Commands talk to the core through driving ports only. The binary's main
// package supplies a Bootstrap that builds those ports from the config
// directory; commands annotated with skipServices run without it.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// skipServices marks commands that never need the bootstrapped services.
const skipServices = "minutes/skip-services"

// Services holds the driving ports used by the commands.
// Nil members are features that are not configured.
type Services struct {
	History       driving.HistoryService
	Search        driving.SearchService
	Index         driving.IndexService
	Ingest        driving.IngestService
	RAG           driving.RAGService
	Conversations driving.ConversationService
	Transcription driving.TranscriptionService
	Settings      driving.SettingsService
	Scheduler     driving.Scheduler
	Watcher       driving.Watcher

	// Warmup starts background model loading for long-running commands.
	Warmup func(ctx context.Context)

	// Close releases stores and model clients.
	Close func()
}

// Bootstrap builds the services for a config directory.
// An empty configDir selects the default home directory.
type Bootstrap func(ctx context.Context, configDir string) (*Services, error)

var bootstrap Bootstrap

// Service handles, populated before a command runs.
var (
	historyService       driving.HistoryService
	searchService        driving.SearchService
	indexService         driving.IndexService
	ingestService        driving.IngestService
	ragService           driving.RAGService
	conversationService  driving.ConversationService
	transcriptionService driving.TranscriptionService
	settingsService      driving.SettingsService
	scheduler            driving.Scheduler
	watcher              driving.Watcher
	warmup               func(ctx context.Context)
	closeServices        func()
)

// Global flags.
var (
	configDir string
	envFile   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "minutes",
	Short: "Meeting transcription, analysis and search",
	Long: `Minutes transcribes meetings live or from uploads, extracts summaries,
topics, action items and decisions, and answers questions about past
meetings from a semantic index of their analyses.

Run 'minutes serve' to start the HTTP API, or use the commands below to
work with the meeting history directly.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if closeServices != nil {
			closeServices()
			closeServices = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default $MINUTES_HOME or ~/.minutes)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetBootstrap installs the function that builds the services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command with ctx. Command output goes to stdout
// so it can be piped.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if err := loadEnv(envFile); err != nil {
		return err
	}
	if cmd.Annotations[skipServices] != "" || bootstrap == nil {
		return nil
	}

	svc, err := bootstrap(cmd.Context(), configDir)
	if err != nil {
		return err
	}
	useServices(svc)
	return nil
}

// loadEnv loads KEY=value pairs without overriding the environment.
// A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func useServices(svc *Services) {
	historyService = svc.History
	searchService = svc.Search
	indexService = svc.Index
	ingestService = svc.Ingest
	ragService = svc.RAG
	conversationService = svc.Conversations
	transcriptionService = svc.Transcription
	settingsService = svc.Settings
	scheduler = svc.Scheduler
	watcher = svc.Watcher
	warmup = svc.Warmup
	closeServices = svc.Close
}
