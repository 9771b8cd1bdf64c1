package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"batchwatch/internal/model"
	"batchwatch/internal/repository"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Aggregator model.AggregatorSnapshot `json:"aggregator"`
			Clients    int                      `json:"clients"`
			Stored     *repository.Stats        `json:"stored"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		snap := result.Aggregator
		state := color.YellowString("starting")
		if snap.Ready {
			state = color.GreenString("ready")
		}
		if !snap.Watching {
			state = color.RedString("stopped")
		}

		lastFlush := "-"
		if snap.LastFlush != nil {
			lastFlush = snap.LastFlush.Format("2006-01-02 15:04:05")
		}

		fmt.Printf("state:       %s\n", state)
		fmt.Printf("targets:     %s\n", strings.Join(snap.Targets, ", "))
		fmt.Printf("uptime:      %s\n", time.Since(snap.StartedAt).Round(time.Second))
		fmt.Printf("subscribers: %d (%d live clients)\n", snap.Subscribers, result.Clients)
		fmt.Printf("pending:     %d\n", snap.Pending)
		fmt.Printf("flushes:     %d (%d events, %d failed)\n", snap.Flushes, snap.EventsDelivered, snap.Failures)
		fmt.Printf("last flush:  %s\n", lastFlush)
		if result.Stored != nil {
			fmt.Printf("stored:      %d batches, %d events\n", result.Stored.Batches, result.Stored.Events)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
