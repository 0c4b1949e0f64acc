package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change settings stored in config.toml.

Environment variables override the file: MINUTES_<SECTION>_<KEY> for any
key (e.g. MINUTES_LLM_MODEL), plus OPENAI_API_KEY and ANTHROPIC_API_KEY.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set one config value",
	Long: `Stores one value under a dotted key, for example:

  minutes config set server.addr :9000
  minutes config set stt.provider faster_whisper
  minutes config set conversation.max_age 2h`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long:  `Interactively configure the embedding provider used for semantic search.`,
	RunE:  runConfigEmbedding,
}

var configLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the LLM provider",
	Long:  `Interactively configure the LLM used for analysis, query expansion and answers.`,
	RunE:  runConfigLLM,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to the configured providers",
	RunE:  runConfigCheck,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configEmbeddingCmd)
	configCmd.AddCommand(configLLMCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	s := settingsService.Get()
	st := newStyles(cmd.OutOrStdout())

	cmd.Println(st.Title("Current Settings"))
	cmd.Println()

	cmd.Println(st.Label("[Server]"))
	cmd.Printf("  Address: %s\n", s.Server.Addr)
	cmd.Printf("  Data directory: %s\n", s.Data.Dir)
	cmd.Printf("  Log format: %s\n", s.Logging.Format)
	cmd.Printf("  Upload limit: %d MiB\n", s.Upload.MaxBytes>>20)
	cmd.Println()

	cmd.Println(st.Label("[LLM]"))
	printProvider(cmd, s.LLM.Provider, s.LLM.Model, s.LLM.BaseURL, s.LLM.APIKey, s.LLM.IsConfigured())
	if s.LLM.RequestsPerSecond > 0 {
		cmd.Printf("  Requests per second: %g\n", s.LLM.RequestsPerSecond)
	}
	cmd.Println()

	cmd.Println(st.Label("[Embedding]"))
	printProvider(cmd, s.Embedding.Provider, s.Embedding.Model, s.Embedding.BaseURL, s.Embedding.APIKey, s.Embedding.IsConfigured())
	if s.Embedding.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", s.Embedding.Dimensions)
	}
	cmd.Println()

	cmd.Println(st.Label("[Speech-to-text]"))
	cmd.Printf("  Provider: %s\n", s.STT.Provider)
	if s.STT.Model != "" {
		cmd.Printf("  Model: %s\n", s.STT.Model)
	}
	if s.STT.Language != "" {
		cmd.Printf("  Language: %s\n", s.STT.Language)
	}
	cmd.Println()

	cmd.Println(st.Label("[Diarization]"))
	cmd.Printf("  Provider: %s\n", s.Diarization.Provider)
	cmd.Printf("  Refresh every: %d chunks\n", s.Diarization.RefreshEvery)
	cmd.Println()

	cmd.Println(st.Label("[Search]"))
	cmd.Printf("  Vector store: %s\n", s.Vector.Store)
	cmd.Printf("  Index batch size: %d\n", s.Index.BatchSize)
	if s.Index.Interval > 0 {
		cmd.Printf("  Re-index every: %s\n", s.Index.Interval)
	}
	cmd.Printf("  Conversation turns kept: %d (idle expiry %s)\n", s.Conversation.MaxTurns, s.Conversation.MaxAge)
	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", provider.Description())
	if model != "" {
		cmd.Printf("  Model: %s\n", model)
	}
	if provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	key, value := args[0], args[1]
	if err := settingsService.Set(key, parseValue(value)); err != nil {
		return err
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

// parseValue stores integers, floats and booleans with their TOML types.
func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func runConfigEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runConfigLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	st := newStyles(cmd.OutOrStdout())

	var failed bool
	check := func(name string, configured bool, validate func() error) {
		cmd.Printf("%s: ", name)
		if !configured {
			cmd.Println(st.Muted("not configured"))
			return
		}
		if err := validate(); err != nil {
			failed = true
			cmd.Println(st.Warning("FAILED: " + err.Error()))
			return
		}
		cmd.Println(st.Success("OK"))
	}

	s := settingsService.Get()
	check("Embedding", s.Embedding.IsConfigured(), settingsService.ValidateEmbeddingConfig)
	check("LLM", s.LLM.IsConfigured(), settingsService.ValidateLLMConfig)

	if failed {
		return errors.New("some providers are unreachable")
	}
	return nil
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use OPENAI_API_KEY): ")
		apiKey = readPassword(cmd, reader)
		cmd.Println()
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n", selectedProvider.Description(), model)
	cmd.Println("Run 'minutes index --force' to re-embed existing meetings.")
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n", selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when input is a terminal, else a plain line.
func readPassword(cmd *cobra.Command, reader *bufio.Reader) string {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
