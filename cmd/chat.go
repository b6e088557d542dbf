package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cvforge/cvforge/internal/config"
	"github.com/cvforge/cvforge/internal/engine"
	"github.com/cvforge/cvforge/internal/log"
	"github.com/cvforge/cvforge/internal/observability"
	"github.com/cvforge/cvforge/internal/session"
	"github.com/cvforge/cvforge/internal/timeline"
	"github.com/cvforge/cvforge/internal/transport"
	"github.com/cvforge/cvforge/internal/tui"
)

var newConversation bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the resume assistant",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&newConversation, "new", false, "start a fresh conversation instead of resuming the last one")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Logs go to a file: stderr belongs to the TUI's alternate screen.
	logger, closeLog, err := newFileLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	tracer, shutdownTracing, err := observability.Setup(ctx, logger, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	conversationID, err := resolveConversation()
	if err != nil {
		return err
	}

	client := transport.NewClient(logger, transport.Config{
		BaseURL:    cfg.BackendURL,
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.StreamTimeout},
	})

	tl := timeline.NewStore()
	bridge := tui.NewBridge(tl)
	eng := engine.New(logger, client, bridge, bridge, tl, engine.Options{
		ConversationID: conversationID.String(),
		UpdateInterval: cfg.UpdateInterval,
		Tracer:         tracer,
	})

	model, err := tui.New(ctx, eng, bridge)
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}

// resolveConversation returns the conversation to talk in: the persisted
// one unless --new was given, minting and saving a fresh id as needed.
func resolveConversation() (uuid.UUID, error) {
	if !newConversation {
		existing, err := session.LoadCurrentConversationID()
		if err != nil {
			return uuid.Nil, fmt.Errorf("loading conversation state: %w", err)
		}
		if existing != nil {
			return *existing, nil
		}
	}

	id := uuid.New()
	if err := session.SaveCurrentConversationID(id); err != nil {
		return uuid.Nil, fmt.Errorf("saving conversation state: %w", err)
	}
	return id, nil
}

// newFileLogger opens ~/.cvforge/cvforge.log for append and builds the
// application logger on it.
func newFileLogger(cfg *config.Config) (log.Logger, func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("getting user home directory: %w", err)
	}
	dir := filepath.Join(home, ".cvforge")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "cvforge.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := log.NewWithWriter(f, log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	return logger, func() { _ = f.Close() }, nil
}
