package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/pulserelay/internal/source"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the pipeline endpoints",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// localURL turns a listen address like ":3000" into a local base URL.
func localURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}

func checkHealth(ctx context.Context, name, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stdout, "%-10s unreachable (%v)\n", name, err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stdout, "%-10s unreachable (%v)\n", name, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stdout, "%-10s unhealthy (status %d)\n", name, resp.StatusCode)
		return
	}
	fmt.Fprintf(os.Stdout, "%-10s ok (%s)\n", name, url)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := source.New(cfg.Source.BaseURL)
	if _, err := src.Info(ctx); err != nil {
		fmt.Fprintf(os.Stdout, "%-10s unreachable (%v)\n", "source", err)
	} else {
		fmt.Fprintf(os.Stdout, "%-10s ok (%s)\n", "source", cfg.Source.BaseURL)
	}

	checkHealth(ctx, "buffer", localURL(cfg.Buffer.Listen)+"/health")
	checkHealth(ctx, "receiver", localURL(cfg.Receiver.Listen)+"/health")
	return nil
}
