package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/cache"
	"github.com/Tiliavir/entrylog/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the API endpoint and session state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	now := time.Now()
	store := tokenStore()

	sess, err := store.Session()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("API: %s\n", cfg.API.BaseURL)
	printCacheStatus(cmd.Context())
	if !sess.SignedIn {
		fmt.Println("Not signed in.")
		return nil
	}

	who := sess.Subject
	if who == "" {
		who = "unknown user"
	}
	fmt.Printf("Signed in as %s\n", who)
	switch {
	case sess.Expiry.IsZero():
		fmt.Println("  Session: no expiry")
	case sess.Expired(now):
		fmt.Println("  Session: expired, run `elog login`")
	default:
		fmt.Printf("  Session: expires in %s\n", timecalc.FormatDuration(int64(sess.Expiry.Sub(now).Seconds())))
	}
	fmt.Printf("  Token: %s\n", store.Path())
	return nil
}

func printCacheStatus(ctx context.Context) {
	switch cfg.Cache.Backend {
	case "redis":
		r := cache.NewRedis(cfg.Cache.RedisAddr, cache.DefaultPrefix)
		defer r.Close()
		state := "unreachable, pages are fetched uncached"
		if r.Healthy(ctx) {
			state = "reachable"
		}
		fmt.Printf("Cache: redis at %s (%s)\n", cfg.Cache.RedisAddr, state)
	case "memory":
		fmt.Printf("Cache: in-process, %s\n", cfg.Cache.TTL)
	}
}
