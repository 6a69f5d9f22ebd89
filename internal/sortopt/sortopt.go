// Package sortopt maps the console's sort choices to backend sort directives.
package sortopt

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// UI sort tokens.
const (
	DateDesc = "date_desc"
	DateAsc  = "date_asc"
	NameAZ   = "name_az"
	NameZA   = "name_za"
	TimeDesc = "time_desc"
	TimeAsc  = "time_asc"
)

// The backend has a single chronological ordering, so date and time share directives.
var directives = map[string]string{
	DateDesc: "entryTimestamp:desc",
	DateAsc:  "entryTimestamp:asc",
	TimeDesc: "entryTimestamp:desc",
	TimeAsc:  "entryTimestamp:asc",
	NameAZ:   "user.lastName:asc",
	NameZA:   "user.lastName:desc",
}

// Directive returns the backend "field:direction" directive for a UI token.
// ok is false for unrecognized tokens.
func Directive(token string) (directive string, ok bool) {
	directive, ok = directives[token]
	return directive, ok
}

// Tokens lists the accepted UI tokens in a stable order.
func Tokens() []string {
	out := make([]string, 0, len(directives))
	for k := range directives {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Split separates a directive into field and direction. A directive without
// ':' is a bare field.
func Split(directive string) (field, dir string) {
	field, rest, _ := strings.Cut(directive, ":")
	dir, _, _ = strings.Cut(rest, ":")
	return field, dir
}

var dottedSegment = regexp.MustCompile(`\.([A-Za-z0-9_]+)`)

// SnakeField transliterates every dotted segment of field to snake_case,
// e.g. "user.lastName" becomes "user.last_name". The leading segment is kept.
func SnakeField(field string) string {
	return dottedSegment.ReplaceAllStringFunc(field, func(seg string) string {
		var b strings.Builder
		b.Grow(len(seg) + 4)
		for _, r := range seg {
			if r >= 'A' && r <= 'Z' {
				b.WriteByte('_')
				b.WriteRune(r + ('a' - 'A'))
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	})
}

// SetListingParams writes the directive and every alias spelling the
// backend has been seen to read into v.
func SetListingParams(v url.Values, directive string) {
	if directive == "" {
		return
	}
	v.Set("sort", directive)
	if !strings.Contains(directive, ":") {
		return
	}
	field, dir := Split(directive)
	if field != "" {
		v.Set("sortBy", field)
		v.Set("sort_by", field)
		v.Set("sortField", field)
	}
	if dir != "" {
		v.Set("order", dir)
		v.Set("sort_dir", dir)
		v.Set("sortDir", dir)
	}
	if snake := SnakeField(field); snake != "" && snake != field {
		v.Set("sortBySnake", snake)
		v.Set("sort_by_snake", snake)
	}
}
