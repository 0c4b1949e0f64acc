package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/minutes/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/minutes/internal/adapters/driving/mcp"
	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/logger"
)

var (
	serveAddr    string
	serveNoMCP   bool
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the Minutes HTTP server:

  GET  /ws/transcribe          live transcription (websocket)
  POST /api/upload             analyse a recording or transcript
  GET  /api/history            list saved analyses
  POST /api/history/search     semantic search
  POST /api/rag/query          question answering (/api/rag/stream for SSE)
       /mcp                    MCP streamable HTTP transport

Background tasks clean up idle conversations, re-index the history on the
configured interval and index analyses written to the history directory by
other processes. Stop the server with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr or :8080)")
	serveCmd.Flags().BoolVar(&serveNoMCP, "no-mcp", false, "do not mount the MCP transport under /mcp")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "allowed websocket origins (default any)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if historyService == nil || searchService == nil {
		return errors.New("history and search services not configured")
	}

	settings := domain.DefaultSettings()
	if settingsService != nil {
		settings = settingsService.Get()
	}
	addr := serveAddr
	if addr == "" {
		addr = settings.Server.Addr
	}

	svc := httpapi.Services{
		History:       historyService,
		Search:        searchService,
		Index:         indexService,
		Ingest:        ingestService,
		RAG:           ragService,
		Conversations: conversationService,
		Transcription: transcriptionService,
	}
	if !serveNoMCP {
		server, err := mcp.NewServer(mcpPorts())
		if err != nil {
			return err
		}
		svc.MCP = server.Handler()
	}

	api, err := httpapi.New(svc, httpapi.Config{
		MaxUploadBytes: settings.Upload.MaxBytes,
		AllowedOrigins: serveOrigins,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if warmup != nil {
		warmup(ctx)
	}
	var wg sync.WaitGroup
	runBackground(ctx, &wg)

	fmt.Fprintf(cmd.ErrOrStderr(), "Minutes listening on %s\n", addr)
	err = api.Run(ctx, addr)

	cancel()
	if scheduler != nil {
		if stopErr := scheduler.Stop(); stopErr != nil {
			logger.Warn("stopping scheduler: %v", stopErr)
		}
	}
	wg.Wait()
	return err
}

// runBackground starts the scheduler and history watcher until ctx ends.
func runBackground(ctx context.Context, wg *sync.WaitGroup) {
	if scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("scheduler stopped: %v", err)
			}
		}()
	}
	if watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("history watcher stopped: %v", err)
			}
		}()
	}
}
