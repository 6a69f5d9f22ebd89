package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/config"
	"github.com/Tiliavir/entrylog/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	apiURL     string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "elog",
	Short: "elog – admin console for the library entry log",
	Long: `elog lists, searches, exports and manages library entry records
through the entry-logging REST API. Settings live in ~/.elog/config.json.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadEnvironment,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.elog/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL, e.g. http://localhost:5000/api")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveMockCmd)
}

// loadEnvironment reads the config and applies command-line overrides.
func loadEnvironment(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if apiURL != "" {
		c.API.BaseURL = strings.TrimRight(apiURL, "/")
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	cfg = c
	logger = logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return nil
}
