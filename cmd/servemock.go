package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/mockapi"
	"github.com/Tiliavir/entrylog/internal/timecalc"
)

var (
	mockAddr             string
	mockSeed             int
	mockRandSeed         int64
	mockEnvelope         string
	mockRequireAuth      bool
	mockLegacyManualOnly bool
)

var serveMockCmd = &cobra.Command{
	Use:   "serve-mock",
	Short: "Run a local fake of the entry-logging API",
	Long: `serve-mock starts an in-memory backend with seeded users and entries.
It honours the list, filter, delete, manual-entry, analytics and log-stream
endpoints, caps page sizes and rate-limits requests like the real API.`,
	Args: cobra.NoArgs,
	RunE: runServeMock,
}

func init() {
	serveMockCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (default from config)")
	serveMockCmd.Flags().IntVar(&mockSeed, "seed", 500, "Number of entries to generate")
	serveMockCmd.Flags().Int64Var(&mockRandSeed, "rand-seed", 1, "Random seed for generated data")
	serveMockCmd.Flags().StringVar(&mockEnvelope, "envelope", "", "List response shape: data, entries, bare (default from config)")
	serveMockCmd.Flags().BoolVar(&mockRequireAuth, "require-auth", false, "Reject API calls without an admin token")
	serveMockCmd.Flags().BoolVar(&mockLegacyManualOnly, "legacy-manual-only", false, "Answer POST /entries with 404")
}

func runServeMock(cmd *cobra.Command, args []string) error {
	addr := mockAddr
	if addr == "" {
		addr = cfg.Mock.Addr
	}
	envelope := mockEnvelope
	if envelope == "" {
		envelope = cfg.Mock.Envelope
	}
	switch envelope {
	case mockapi.EnvelopeData, mockapi.EnvelopeEntries, mockapi.EnvelopeBare:
	default:
		fmt.Fprintf(os.Stderr, "unknown envelope %q (want data, entries or bare)\n", envelope)
		os.Exit(2)
	}
	loc, err := timecalc.LoadLocation(cfg.Display.Timezone)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	gin.SetMode(gin.ReleaseMode)

	store := mockapi.NewStore(time.Now)
	store.Seed(mockSeed, mockRandSeed)

	srv := mockapi.New(mockapi.Config{
		MaxLimit:         cfg.Mock.MaxLimit,
		RateLimitPerMin:  cfg.Mock.RateLimitPerMin,
		SigningKey:       cfg.Mock.JWTSigningKey,
		Envelope:         envelope,
		AdminUser:        cfg.Mock.AdminUser,
		AdminPassword:    cfg.Mock.AdminPassword,
		RequireAuth:      mockRequireAuth,
		LegacyManualOnly: mockLegacyManualOnly,
		Location:         loc,
		Logger:           logger,
	}, store)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("fake backend listening", "addr", addr, "entries", store.Len(), "envelope", envelope, "requireAuth", mockRequireAuth)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return nil
}
