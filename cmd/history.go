package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"batchwatch/internal/model"
	"batchwatch/internal/pipeline"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyN      int
	historyLatest bool
	historyPath   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recently flushed batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		query.Set("n", fmt.Sprint(historyN))
		if historyPath != "" {
			abs, err := filepath.Abs(historyPath)
			if err != nil {
				return fmt.Errorf("failed to resolve path: %w", err)
			}
			historyPath = abs
			query.Set("path", abs)
		}

		resp, err := http.Get(daemonURL("/batches") + "?" + query.Encode())
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}

		if historyPath != "" {
			return printPathHistory(resp.Body)
		}

		var batches []model.Batch
		if err := json.NewDecoder(resp.Body).Decode(&batches); err != nil {
			return err
		}

		if len(batches) == 0 {
			fmt.Println("no batches yet")
			return nil
		}

		for _, b := range batches {
			fmt.Printf("%s #%d %d events\n",
				color.CyanString("[%s]", b.FlushedAt.Format("2006-01-02 15:04:05")),
				b.ID,
				b.Size)

			events := b.ChangeEvents()
			if historyLatest {
				events = pipeline.LatestFilesEvents(events)
			}
			for _, ev := range events {
				fmt.Printf("  %s %s\n", kindLabel(ev.Kind), ev.Path)
			}
		}

		return nil
	},
}

func printPathHistory(r io.Reader) error {
	var events []model.BatchEvent
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Printf("no changes recorded for %s\n", historyPath)
		return nil
	}

	for _, ev := range events {
		fmt.Printf("%s #%d %s\n",
			color.CyanString("[%s]", ev.CreatedAt.Format("2006-01-02 15:04:05")),
			ev.BatchID,
			kindLabel(ev.Kind))
	}

	return nil
}

func kindLabel(kind model.EventKind) string {
	label := fmt.Sprintf("%-6s", kind)
	switch kind {
	case model.EventCreate:
		return color.GreenString(label)
	case model.EventDelete, model.EventRename:
		return color.RedString(label)
	default:
		return color.YellowString(label)
	}
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of batches to show")
	historyCmd.Flags().BoolVar(&historyLatest, "latest", false, "show only the last event per path")
	historyCmd.Flags().StringVar(&historyPath, "path", "", "show the recorded changes of one path")
	rootCmd.AddCommand(historyCmd)
}
