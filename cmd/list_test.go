package cmd

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/Tiliavir/entrylog/internal/api"
	"github.com/Tiliavir/entrylog/internal/model"
)

func TestVisiblePages(t *testing.T) {
	tests := []struct {
		total, current int
		want           []int
	}{
		{0, 1, []int{}},
		{1, 1, []int{1}},
		{7, 4, []int{1, 2, 3, 4, 5, 6, 7}},
		{10, 1, []int{1, 2, 0, 10}},
		{10, 3, []int{1, 2, 3, 4, 0, 10}},
		{10, 5, []int{1, 0, 4, 5, 6, 0, 10}},
		{10, 9, []int{1, 0, 8, 9, 10}},
		{10, 10, []int{1, 0, 9, 10}},
	}
	for _, tt := range tests {
		got := visiblePages(tt.total, tt.current)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("visiblePages(%d, %d) = %v, want %v", tt.total, tt.current, got, tt.want)
		}
	}
}

func TestPager(t *testing.T) {
	if got, want := pager(10, 5), "1 … 4 [5] 6 … 10"; got != want {
		t.Errorf("pager(10, 5) = %q, want %q", got, want)
	}
	if got, want := pager(3, 1), "[1] 2 3"; got != want {
		t.Errorf("pager(3, 1) = %q, want %q", got, want)
	}
}

func TestPrintPage(t *testing.T) {
	date := "Oct 15, 2026"
	page := api.EntriesPage{
		Entries: []model.EntryRow{
			{LogID: "L1", ID: "2021-0001", FirstName: "Ana", LastName: "Cruz", Role: "Student", LogDate: &date},
			{ID: "F-0004", FirstName: "Ben", Role: "Faculty"},
		},
		Pagination: &model.Pagination{Total: 25, Page: 2, Limit: 2, TotalPages: 13},
	}

	var buf bytes.Buffer
	printPage(&buf, page, 2)
	out := buf.String()

	for _, want := range []string{"KEY", "L1", "Ana Cruz", "Oct 15, 2026", "F-0004-1", "Page 2 of 13 (25 entries)", "1 [2] 3 … 13"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintPageEmpty(t *testing.T) {
	var buf bytes.Buffer
	printPage(&buf, api.EntriesPage{}, 1)
	if got := buf.String(); got != "No entries found.\n" {
		t.Errorf("got %q", got)
	}
}

func TestPrintPageJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := printPageJSON(&buf, api.EntriesPage{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"entries": []`) {
		t.Errorf("empty page should encode an empty array, got %s", buf.String())
	}
}
