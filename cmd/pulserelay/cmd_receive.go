package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/pulserelay/internal/archive"
	"github.com/user/pulserelay/internal/receiver"
	"github.com/user/pulserelay/pkg/agent"
	"github.com/user/pulserelay/pkg/agent/chat"
	"github.com/user/pulserelay/pkg/agent/openai"
)

func init() {
	rootCmd.AddCommand(receiveCmd)
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Start the verifying webhook receiver",
	RunE:  runReceive,
}

// pickResponder chooses how replies get generated: a companion agent
// service when one is configured, a direct model call when an API key
// is present, and a canned acknowledgement otherwise.
func pickResponder(agentURL, apiKey, model string) agent.Responder {
	if agentURL != "" {
		slog.Info("using agent service responder", "agent_url", agentURL)
		return chat.New(agentURL, "")
	}
	if apiKey != "" {
		slog.Info("using model responder", "model", model)
		return openai.New(&openai.Config{APIKey: apiKey, Model: model})
	}
	slog.Warn("no agent service or API key configured, using static replies")
	return &agent.Static{}
}

func runReceive(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Receiver.Secret == "" {
		slog.Warn("receiver secret not configured, incoming payloads will be rejected")
	}

	responder := pickResponder(cfg.Receiver.AgentURL, cfg.Receiver.APIKey, cfg.Receiver.Model)
	cache := receiver.NewReplyCache()

	var arch *archive.Store
	if cfg.Receiver.DataDir != "" {
		var err error
		arch, err = archive.Open(cfg.Receiver.DataDir)
		if err != nil {
			slog.Error("failed to open reply archive, continuing without one", "data_dir", cfg.Receiver.DataDir, "error", err)
		} else {
			defer arch.Close()
			recent, err := arch.Recent(100)
			if err != nil {
				slog.Warn("failed to load archived replies", "error", err)
			} else if len(recent) > 0 {
				cache.Seed(recent)
				slog.Info("reply history restored", "entries", len(recent))
			}
		}
	}

	srv := receiver.NewServer(cfg.Receiver.Secret, responder, cache, arch)
	httpServer := &http.Server{
		Addr:    cfg.Receiver.Listen,
		Handler: srv,
	}
	go func() {
		slog.Info("receiver started", "listen", cfg.Receiver.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("receiver server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	slog.Info("shutting down", "signal", sig)
	return nil
}
