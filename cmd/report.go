package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/api"
	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/timecalc"
)

var (
	reportFormat  string
	reportPeriod  string
	reportFrom    string
	reportTo      string
	reportSection string
	reportCollege string
)

var reportCmd = &cobra.Command{
	Use:       "report trends|colleges|departments|peak-hours",
	Short:     "Show entry analytics",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"trends", "colleges", "departments", "peak-hours"},
	RunE:      runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
	reportCmd.Flags().StringVar(&reportPeriod, "period", "7d", "Trend period: 7d, 30d, 90d, 365d, 1y")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start day YYYY-MM-DD (with --to, replaces --period)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End day YYYY-MM-DD")
	reportCmd.Flags().StringVar(&reportSection, "section", "all", "Trend population: students, faculties or all")
	reportCmd.Flags().StringVar(&reportCollege, "college", "", "Limit departments to one college")
}

// table is a report flattened for printing.
type table struct {
	title  string
	header []string
	rows   [][]string
	total  int
}

func runReport(cmd *cobra.Command, args []string) error {
	if (reportFrom == "") != (reportTo == "") {
		fmt.Fprintln(os.Stderr, "--from and --to must be given together.")
		os.Exit(1)
	}
	if err := checkRange(reportPeriod, reportFrom, reportTo); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := cmd.Context()
	client := newClient(ctx, false)
	r := api.DateRange{Start: reportFrom, End: reportTo}

	var (
		payload any
		tbl     table
		err     error
	)
	switch args[0] {
	case "trends":
		var t api.Trends
		t, err = client.Trends(ctx, reportPeriod, model.UserTypeForSection(reportSection), r)
		payload, tbl = t, trendsTable(t)
	case "colleges":
		var b api.CollegeBreakdown
		b, err = client.ByCollege(ctx, r)
		payload, tbl = b, collegeTable(b)
	case "departments":
		var b api.DepartmentBreakdown
		b, err = client.ByDepartment(ctx, r, reportCollege)
		payload, tbl = b, departmentTable(b)
	case "peak-hours":
		var p api.PeakHours
		p, err = client.PeakHours(ctx)
		payload, tbl = p, peakTable(p)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch reportFormat {
	case "json":
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error encoding JSON:", err)
			os.Exit(2)
		}
		fmt.Println(string(data))
	case "csv":
		printTableCSV(os.Stdout, tbl)
	default: // md
		printTableMD(os.Stdout, tbl)
	}
	return nil
}

// checkRange rejects bad dates and periods before any request is made.
func checkRange(period, from, to string) error {
	if from != "" {
		_, _, err := timecalc.ParseDayRange(from, to, time.UTC)
		return err
	}
	_, _, err := timecalc.PeriodRange(period, time.Now())
	return err
}

func trendsTable(t api.Trends) table {
	tbl := table{title: "Entries per day (" + t.Period + ")", header: []string{"date", "count"}, total: t.TotalEntries}
	for _, p := range t.Trends {
		tbl.rows = append(tbl.rows, []string{p.Date, fmt.Sprint(p.Count)})
	}
	return tbl
}

func collegeTable(b api.CollegeBreakdown) table {
	tbl := table{title: "Entries by college", header: []string{"college", "count", "percentage"}, total: b.TotalEntries}
	for _, c := range b.Colleges {
		tbl.rows = append(tbl.rows, []string{c.College, fmt.Sprint(c.Count), c.Percentage + "%"})
	}
	return tbl
}

func departmentTable(b api.DepartmentBreakdown) table {
	tbl := table{title: "Entries by department", header: []string{"department", "college", "count", "percentage"}, total: b.TotalEntries}
	for _, d := range b.Departments {
		tbl.rows = append(tbl.rows, []string{d.Department, d.College, fmt.Sprint(d.Count), d.Percentage + "%"})
	}
	return tbl
}

func peakTable(p api.PeakHours) table {
	tbl := table{title: "Entries by hour", header: []string{"hour", "count"}, total: -1}
	for _, h := range p.PeakHours {
		tbl.rows = append(tbl.rows, []string{h.Label, fmt.Sprint(h.Count)})
	}
	if p.PeakHour != nil {
		tbl.title += ", busiest " + p.PeakHour.Label
	}
	return tbl
}

func printTableCSV(w io.Writer, tbl table) {
	fmt.Fprintln(w, strings.Join(tbl.header, ","))
	for _, row := range tbl.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if strings.ContainsAny(c, ",\"\n\r") {
				c = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
			}
			cells[i] = c
		}
		fmt.Fprintln(w, strings.Join(cells, ","))
	}
}

// printTableMD prints the first column left-aligned and the rest after it,
// in the plain layout of a console report.
func printTableMD(w io.Writer, tbl table) {
	fmt.Fprintln(w, tbl.title)
	fmt.Fprintln(w, "--------------------------------")
	if len(tbl.rows) == 0 {
		fmt.Fprintln(w, "No data.")
	}
	for _, row := range tbl.rows {
		fmt.Fprintf(w, "%-28s%s\n", row[0], strings.Join(row[1:], "  "))
	}
	if tbl.total >= 0 {
		fmt.Fprintln(w, "--------------------------------")
		fmt.Fprintf(w, "%-28s%d\n", "Total", tbl.total)
	}
}
