package export

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/storage"
	"github.com/Tiliavir/entrylog/internal/timecalc"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv, xlsx or json in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, xlsx or json)", s)
	}
}

// SheetName is the worksheet that holds exported rows in xlsx files.
const SheetName = "Entries"

// Columns is the fixed column order of tabular exports.
var Columns = []string{
	"id", "userId", "logId", "role", "firstName", "lastName", "department",
	"college", "yearLevel", "entryMethod", "status", "logDate", "logTime", "createdAt",
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// cells returns row's values in Columns order.
func cells(row model.EntryRow) []string {
	return []string{
		row.ID, row.UserID, row.LogID, row.Role, row.FirstName, row.LastName, row.Department,
		row.College, row.YearLevel, row.EntryMethod, row.Status,
		deref(row.LogDate), deref(row.LogTime), deref(row.CreatedAt),
	}
}

// Write encodes rows to w in format f.
func Write(w io.Writer, f Format, rows []model.EntryRow) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	default:
		return WriteCSV(w, rows)
	}
}

// WriteCSV writes a header line and one line per row, separated by "\n".
// Zero rows produce the header alone.
func WriteCSV(w io.Writer, rows []model.EntryRow) error {
	var b strings.Builder
	b.WriteString(strings.Join(Columns, ","))
	for _, row := range rows {
		b.WriteByte('\n')
		for i, v := range cells(row) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(csvEscape(v))
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteXLSX writes rows as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []model.EntryRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing xlsx header: %w", err)
	}
	for i, row := range rows {
		values := cells(row)
		line := make([]any, len(values))
		for j, v := range values {
			line[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &line); err != nil {
			return fmt.Errorf("writing xlsx row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}

// WriteJSON writes rows as an indented array of merged row objects.
func WriteJSON(w io.Writer, rows []model.EntryRow) error {
	if rows == nil {
		rows = []model.EntryRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("writing json: %w", err)
	}
	return nil
}

// FileName is "<base>-export_<UTC stamp>.<format>".
func FileName(base string, f Format, at time.Time) string {
	return fmt.Sprintf("%s-export_%s.%s", base, timecalc.FileStamp(at), f)
}

// Save writes rows into dir under FileName and returns the path. The file
// appears only once it is complete.
func Save(dir string, snap Snapshot, f Format, rows []model.EntryRow, at time.Time) (string, error) {
	path := filepath.Join(dir, FileName(snap.BaseName(), f, at))
	err := storage.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return Write(w, f, rows)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}
