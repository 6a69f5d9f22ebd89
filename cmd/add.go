package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	addIDNumber string
	addAt       string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a manual entry for a user",
	Args:  cobra.NoArgs,
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addIDNumber, "id-number", "", "ID number of the user checking in (required)")
	addCmd.Flags().StringVar(&addAt, "at", "", "Entry time in RFC 3339 (default now)")
	_ = addCmd.MarkFlagRequired("id-number")
}

func runAdd(cmd *cobra.Command, args []string) error {
	idNumber := strings.TrimSpace(addIDNumber)
	if idNumber == "" {
		fmt.Fprintln(os.Stderr, "--id-number must not be empty.")
		os.Exit(1)
	}
	at := time.Now()
	if addAt != "" {
		t, err := time.Parse(time.RFC3339, addAt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --at %q: %v\n", addAt, err)
			os.Exit(1)
		}
		at = t
	}
	requireSession()

	usedLegacy, err := newClient(cmd.Context(), true).CreateManualEntry(cmd.Context(), idNumber, at)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Recorded manual entry for %s.\n", idNumber)
	if usedLegacy {
		fmt.Println("  (backend accepted it on the legacy manual-entry endpoint, entry time was set by the server)")
	}
	return nil
}
