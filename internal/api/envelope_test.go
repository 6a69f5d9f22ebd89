package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Tiliavir/entrylog/internal/model"
)

func TestDecodeEnvelopeShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape envelopeShape
		wantCount int
		wantPag   bool
	}{
		{"bare array", `[{"logId":"a"},{"logId":"b"}]`, shapeBareArray, 2, false},
		{"data entries", `{"success":true,"data":{"entries":[{"logId":"a"}],"pagination":{"total":1}}}`, shapeDataEntries, 1, true},
		{"data entries no pagination", `{"data":{"entries":[]}}`, shapeDataEntries, 0, false},
		{"top entries", `{"entries":[{"logId":"a"},{}],"pagination":{"total":2}}`, shapeTopEntries, 2, true},
		{"data without entries falls through", `{"data":{"items":[]},"entries":[{}]}`, shapeTopEntries, 1, false},
		{"data is array", `{"data":[{"logId":"a"}]}`, shapeEmpty, 0, false},
		{"entries not array", `{"entries":{"logId":"a"}}`, shapeEmpty, 0, false},
		{"message only", `{"success":true,"message":"ok"}`, shapeEmpty, 0, false},
		{"scalar", `42`, shapeEmpty, 0, false},
		{"not json", `<html>oops</html>`, shapeEmpty, 0, false},
		{"empty body", ``, shapeEmpty, 0, false},
		{"non-object elements", `[1,"x",null,{"logId":"a"}]`, shapeBareArray, 4, false},
	}
	for _, tt := range tests {
		env := decodeEnvelope([]byte(tt.body))
		if env.shape != tt.wantShape {
			t.Errorf("%s: shape = %v, want %v", tt.name, env.shape, tt.wantShape)
		}
		if len(env.records) != tt.wantCount {
			t.Errorf("%s: records = %d, want %d", tt.name, len(env.records), tt.wantCount)
		}
		if (env.pagination != nil) != tt.wantPag {
			t.Errorf("%s: pagination present = %v, want %v", tt.name, env.pagination != nil, tt.wantPag)
		}
	}
}

func TestDecodeEnvelopeKeepsNumbersExact(t *testing.T) {
	env := decodeEnvelope([]byte(`[{"entryTimestamp":1700000000123,"logId":9007199254740993}]`))
	if len(env.records) != 1 {
		t.Fatalf("records = %d, want 1", len(env.records))
	}
	if got := fmt.Sprint(env.records[0]["logId"]); got != "9007199254740993" {
		t.Errorf("logId = %s, want 9007199254740993", got)
	}
}

func TestResolvePagination(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		q     Query
		count int
		want  *model.Pagination
	}{
		{
			"complete",
			`{"data":{"entries":[],"pagination":{"total":450,"page":2,"limit":200,"totalPages":3}}}`,
			Query{Page: 2, Limit: 200}, 0,
			&model.Pagination{Total: 450, Page: 2, Limit: 200, TotalPages: 3},
		},
		{
			"totalPages computed from total and limit",
			`{"data":{"entries":[],"pagination":{"total":401,"limit":200}}}`,
			Query{}, 0,
			&model.Pagination{Total: 401, Page: 1, Limit: 200, TotalPages: 3},
		},
		{
			"page and limit from request",
			`{"data":{"entries":[],"pagination":{"total":25}}}`,
			Query{Page: 3, Limit: 10}, 0,
			&model.Pagination{Total: 25, Page: 3, Limit: 10, TotalPages: 3},
		},
		{
			"no total uses entry count",
			`{"data":{"entries":[{},{},{}],"pagination":{}}}`,
			Query{}, 3,
			&model.Pagination{Total: 0, Page: 1, Limit: 3, TotalPages: 3},
		},
		{
			"numeric strings",
			`{"entries":[],"pagination":{"total":"30","page":"1","limit":"10"}}`,
			Query{}, 0,
			&model.Pagination{Total: 30, Page: 1, Limit: 10, TotalPages: 3},
		},
		{
			"garbage values treated as absent",
			`{"entries":[],"pagination":{"total":"lots","page":null,"limit":"ten"}}`,
			Query{Page: 4, Limit: 5}, 0,
			&model.Pagination{Total: 0, Page: 4, Limit: 5, TotalPages: 0},
		},
		{
			"absent",
			`{"data":{"entries":[]}}`,
			Query{}, 0,
			nil,
		},
	}
	for _, tt := range tests {
		env := decodeEnvelope([]byte(tt.body))
		got := resolvePagination(env.pagination, tt.q, tt.count)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, *got, *tt.want)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{400, `{"success":false,"message":"Invalid page"}`, "Invalid page"},
		{429, `{"error":"rate limit"}`, "rate limit"},
		{500, `{"message":"","error":"boom"}`, "boom"},
		{422, `{"error":{"field":"limit"}}`, `{"field":"limit"}`},
		{502, `<html>bad gateway</html>`, "Request failed with status code 502"},
		{429, ``, "Request failed with status code 429"},
	}
	for _, tt := range tests {
		err := statusError(tt.status, []byte(tt.body))
		if err.Message != tt.want {
			t.Errorf("statusError(%d, %s) = %q, want %q", tt.status, tt.body, err.Message, tt.want)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&FetchError{Status: 429, Message: "slow down"}, true},
		{&FetchError{Status: 500, Message: "Request failed with status code 429"}, true},
		{errors.New("Too Many Requests"), true},
		{fmt.Errorf("page 2: %w", &FetchError{Status: 429}), true},
		{&FetchError{Status: 503, Message: "unavailable"}, false},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := IsRateLimited(tt.err); got != tt.want {
			t.Errorf("IsRateLimited(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestEntriesRequest(t *testing.T) {
	r := entriesRequest(Query{UserType: model.UserTypeFaculty, Search: "reyes", Sort: "user.lastName:asc"})
	if r.method != "POST" || r.path != "/entries/filter" {
		t.Fatalf("search request = %s %s", r.method, r.path)
	}
	body, ok := r.body.(filterBody)
	if !ok {
		t.Fatalf("body type %T", r.body)
	}
	want := filterBody{SearchQuery: "reyes", Page: 1, Limit: 10, UserType: "faculty", Sort: "user.lastName:asc"}
	if body != want {
		t.Errorf("filter body = %+v, want %+v", body, want)
	}

	r = entriesRequest(Query{UserType: model.UserTypeAll, Page: 2, Limit: 25, Sort: "entryTimestamp:desc"})
	if r.method != "GET" || r.path != "/entries" {
		t.Fatalf("listing request = %s %s", r.method, r.path)
	}
	if r.query.Has("userType") {
		t.Errorf("userType sent for all: %v", r.query)
	}
	if r.query.Get("page") != "2" || r.query.Get("limit") != "25" || r.query.Get("sortDir") != "desc" {
		t.Errorf("listing query = %v", r.query)
	}

	r = entriesRequest(Query{})
	if len(r.query) != 0 {
		t.Errorf("empty query = %v, want none", r.query)
	}
}
