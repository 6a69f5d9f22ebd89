package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/api"
	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/normalize"
)

var (
	listView  viewFlags
	listPage  int
	listLimit int
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of entries",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listView.bind(listCmd)
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listLimit, "limit", 10, "Entries per page")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the page as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	snap, err := listView.snapshot()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client := newClient(cmd.Context(), true)
	page, err := client.ViewEntries(cmd.Context(), query(snap, listPage, listLimit))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if listJSON {
		return printPageJSON(os.Stdout, page)
	}
	printPage(os.Stdout, page, listPage)
	return nil
}

func printPageJSON(w io.Writer, page api.EntriesPage) error {
	entries := page.Entries
	if entries == nil {
		entries = []model.EntryRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Entries    []model.EntryRow  `json:"entries"`
		Pagination *model.Pagination `json:"pagination,omitempty"`
	}{entries, page.Pagination})
}

// printPage renders rows as a table keyed by row key, followed by a pager.
func printPage(w io.Writer, page api.EntriesPage, current int) {
	if len(page.Entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	keys := normalize.RowKeys(page.Entries)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tID\tNAME\tROLE\tDEPARTMENT\tDATE\tTIME\tMETHOD\tSTATUS")
	for i, row := range page.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			keys[i],
			dash(row.ID),
			dash(strings.TrimSpace(row.FirstName+" "+row.LastName)),
			row.Role,
			dash(row.Department),
			dash(deref(row.LogDate)),
			dash(deref(row.LogTime)),
			dash(row.EntryMethod),
			dash(row.Status),
		)
	}
	tw.Flush()

	if p := page.Pagination; p != nil && p.TotalPages > 0 {
		fmt.Fprintf(w, "\nPage %d of %d (%d entries)  %s\n", current, p.TotalPages, p.Total, pager(p.TotalPages, current))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// visiblePages lists the page links to show: all of them up to 7 pages,
// otherwise the first, the last and the neighbours of current, with 0
// marking an elided run.
func visiblePages(total, current int) []int {
	if total <= 7 {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	left := max(2, current-1)
	right := min(total-1, current+1)
	pages := []int{1}
	if left > 2 {
		pages = append(pages, 0)
	}
	for i := left; i <= right; i++ {
		pages = append(pages, i)
	}
	if right < total-1 {
		pages = append(pages, 0)
	}
	return append(pages, total)
}

// pager renders visiblePages with the current page in brackets.
func pager(total, current int) string {
	parts := make([]string, 0, 9)
	for _, p := range visiblePages(total, current) {
		switch p {
		case 0:
			parts = append(parts, "…")
		case current:
			parts = append(parts, "["+strconv.Itoa(p)+"]")
		default:
			parts = append(parts, strconv.Itoa(p))
		}
	}
	return strings.Join(parts, " ")
}
