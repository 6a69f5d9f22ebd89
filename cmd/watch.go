package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/api"
)

var (
	watchView  viewFlags
	watchLimit int
)

const watchReconnectDelay = 3 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the first page of entries and refresh it on every new log event",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchView.bind(watchCmd)
	watchCmd.Flags().IntVar(&watchLimit, "limit", 10, "Entries per page")
}

// streamEvent is the part of a log stream event the watcher reads.
type streamEvent struct {
	Event string `json:"event"`
	LogID string `json:"logId"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	snap, err := watchView.snapshot()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	client := newClient(ctx, false)

	refresh := func() error {
		page, err := client.FetchEntries(ctx, query(snap, 1, watchLimit))
		if err != nil {
			return err
		}
		fmt.Printf("\n── %s ──\n", time.Now().Format("15:04:05"))
		printPage(os.Stdout, page, 1)
		return nil
	}
	if err := refresh(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for {
		err := client.StreamLogs(ctx, func(data string) error {
			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err == nil && ev.Event != "" {
				logger.Debug("log event", "event", ev.Event, "logId", ev.LogID)
			}
			return refresh()
		})
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, api.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logger.Warn("log stream interrupted, reconnecting", "err", err, "in", watchReconnectDelay)
		if err := waitReconnect(ctx); err != nil {
			return nil
		}
	}
}

func waitReconnect(ctx context.Context) error {
	t := time.NewTimer(watchReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
