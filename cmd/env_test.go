package cmd

import (
	"testing"

	"github.com/Tiliavir/entrylog/internal/model"
)

func TestViewSnapshot(t *testing.T) {
	v := viewFlags{section: "students", search: "  cruz ", sort: "name_az"}
	snap, err := v.snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Search != "cruz" {
		t.Errorf("Search = %q, want trimmed", snap.Search)
	}
	if snap.Sort != "user.lastName:asc" {
		t.Errorf("Sort = %q", snap.Sort)
	}

	q := query(snap, 3, 25)
	if q.UserType != model.UserTypeStudent || q.Page != 3 || q.Limit != 25 {
		t.Errorf("query = %+v", q)
	}
}

func TestViewSnapshotRejects(t *testing.T) {
	tests := []viewFlags{
		{section: "staff"},
		{section: "all", sort: "shoe-size"},
	}
	for _, v := range tests {
		if _, err := v.snapshot(); err == nil {
			t.Errorf("snapshot(%+v) should fail", v)
		}
	}
}
