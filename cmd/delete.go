package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/normalize"
)

var (
	deleteView  viewFlags
	deleteKeys  []string
	deletePage  int
	deleteLimit int
	deleteYes   bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete [logId...]",
	Short: "Delete entries by log ID or by row key",
	Long: `delete removes entries by their log ID. With --key, the row keys shown
by "elog list" are resolved against the same page of the same view first.`,
	RunE: runDelete,
}

func init() {
	deleteView.bind(deleteCmd)
	deleteCmd.Flags().StringSliceVar(&deleteKeys, "key", nil, "Row key from elog list (repeatable)")
	deleteCmd.Flags().IntVar(&deletePage, "page", 1, "Page the row keys were listed on")
	deleteCmd.Flags().IntVar(&deleteLimit, "limit", 10, "Page size the row keys were listed with")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(deleteKeys) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to delete: pass log IDs or --key.")
		os.Exit(1)
	}
	requireSession()

	ctx := cmd.Context()
	client := newClient(ctx, true)

	logIDs := append([]string(nil), args...)
	if len(deleteKeys) > 0 {
		snap, err := deleteView.snapshot()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		page, err := client.FetchEntries(ctx, query(snap, deletePage, deleteLimit))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		resolved, err := resolveKeys(page.Entries, deleteKeys)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logIDs = append(logIDs, resolved...)
	}

	if !deleteYes && !confirm(fmt.Sprintf("Delete %d entr%s?", len(logIDs), plural(len(logIDs), "y", "ies"))) {
		fmt.Println("Cancelled.")
		return nil
	}

	failed := 0
	for _, id := range logIDs {
		if err := client.DeleteEntry(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
			failed++
			continue
		}
		fmt.Printf("Deleted %s\n", id)
	}
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

// resolveKeys maps row keys to log IDs using the same keys a listing shows.
// Every key must match a row that carries a log ID.
func resolveKeys(rows []model.EntryRow, keys []string) ([]string, error) {
	byKey := make(map[string]model.EntryRow, len(rows))
	for i, k := range normalize.RowKeys(rows) {
		byKey[k] = rows[i]
	}

	var ids []string
	var problems []string
	for _, k := range keys {
		row, ok := byKey[k]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("no row with key %q on this page", k))
		case row.LogID == "":
			problems = append(problems, fmt.Sprintf("row %q has no log ID and cannot be deleted", k))
		default:
			ids = append(ids, row.LogID)
		}
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return ids, nil
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	answer := strings.ToLower(strings.TrimSpace(readLine(bufio.NewReader(os.Stdin))))
	return answer == "y" || answer == "yes"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
