package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/pulserelay/internal/buffer"
	"github.com/user/pulserelay/internal/ingest"
	"github.com/user/pulserelay/internal/poll"
	"github.com/user/pulserelay/internal/relay"
	"github.com/user/pulserelay/internal/scheduler"
	"github.com/user/pulserelay/internal/source"
	"github.com/user/pulserelay/internal/state"
)

func init() {
	rootCmd.AddCommand(bufferCmd)
}

var bufferCmd = &cobra.Command{
	Use:   "buffer",
	Short: "Start the activity buffer daemon",
	RunE:  runBuffer,
}

func runBuffer(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Probe the activity source before starting; the provider is often
	// still coming up when the buffer starts at login.
	src := source.New(cfg.Source.BaseURL)
	if err := source.DefaultProbePolicy().ProbeWithRetry(ctx, src); err != nil {
		return fmt.Errorf("activity source unreachable at %s: %w", cfg.Source.BaseURL, err)
	}
	slog.Info("activity source connected", "base_url", cfg.Source.BaseURL)

	tracker := state.NewTracker()
	window := buffer.New()
	wm := poll.NewWatermark(time.Now().Add(-poll.DefaultLookback))
	poller := poll.NewPoller(src, tracker, window, wm)

	sender := relay.NewSender(cfg.Relay.TargetURL, cfg.Relay.Secret, cfg.Relay.AgentID)
	if cfg.Relay.Secret == "" {
		slog.Warn("relay secret not configured, outgoing payloads will be rejected by the receiver")
	}

	sched := scheduler.New()
	if err := sched.Every("poll", cfg.Buffer.PollInterval(), func() {
		poller.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("schedule poll job: %w", err)
	}
	if err := sched.Every("flush", cfg.Buffer.WindowInterval(), func() {
		batch := window.Flush()
		if len(batch) == 0 {
			return
		}
		// Fire and forget so a slow receiver never delays the next window.
		go func() {
			if err := sender.Send(ctx, batch); err != nil {
				slog.Error("relay send failed", "events", len(batch), "error", err)
				return
			}
			slog.Info("relayed activity batch", "events", len(batch))
		}()
	}); err != nil {
		return fmt.Errorf("schedule flush job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:    cfg.Buffer.Listen,
		Handler: ingest.NewServer(tracker, window),
	}
	go func() {
		slog.Info("buffer server started", "listen", cfg.Buffer.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("buffer server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	slog.Info("buffer started",
		"source", cfg.Source.BaseURL,
		"target", cfg.Relay.TargetURL,
		"poll_interval", cfg.Buffer.PollInterval(),
		"window", cfg.Buffer.WindowInterval(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	slog.Info("shutting down", "signal", sig)
	return nil
}
