package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/Tiliavir/entrylog/internal/model"
)

// envelopeShape enumerates the list response layouts the backend produces.
type envelopeShape int

const (
	shapeEmpty       envelopeShape = iota // nothing recognizable
	shapeBareArray                        // [ {...}, ... ]
	shapeDataEntries                      // { data: { entries: [...], pagination } }
	shapeTopEntries                       // { entries: [...], pagination }
)

func (s envelopeShape) String() string {
	switch s {
	case shapeBareArray:
		return "bare"
	case shapeDataEntries:
		return "data.entries"
	case shapeTopEntries:
		return "entries"
	default:
		return "empty"
	}
}

// envelope is a decoded list response.
type envelope struct {
	shape      envelopeShape
	records    []model.RawRecord
	pagination map[string]any // raw pagination object, nil when absent
}

// shapeParsers are tried in priority order against the decoded JSON value.
var shapeParsers = []func(v any) (envelope, bool){
	parseBareArray,
	parseDataEntries,
	parseTopEntries,
}

// decodeEnvelope never fails: a body matching no known shape, or not JSON at
// all, decodes to an empty envelope.
func decodeEnvelope(body []byte) envelope {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return envelope{shape: shapeEmpty}
	}
	for _, parse := range shapeParsers {
		if env, ok := parse(v); ok {
			return env
		}
	}
	return envelope{shape: shapeEmpty}
}

func parseBareArray(v any) (envelope, bool) {
	arr, ok := v.([]any)
	if !ok {
		return envelope{}, false
	}
	return envelope{shape: shapeBareArray, records: toRecords(arr)}, true
}

func parseDataEntries(v any) (envelope, bool) {
	top, ok := v.(map[string]any)
	if !ok {
		return envelope{}, false
	}
	data, ok := top["data"].(map[string]any)
	if !ok {
		return envelope{}, false
	}
	arr, ok := data["entries"].([]any)
	if !ok {
		return envelope{}, false
	}
	p, _ := data["pagination"].(map[string]any)
	return envelope{shape: shapeDataEntries, records: toRecords(arr), pagination: p}, true
}

func parseTopEntries(v any) (envelope, bool) {
	top, ok := v.(map[string]any)
	if !ok {
		return envelope{}, false
	}
	arr, ok := top["entries"].([]any)
	if !ok {
		return envelope{}, false
	}
	p, _ := top["pagination"].(map[string]any)
	return envelope{shape: shapeTopEntries, records: toRecords(arr), pagination: p}, true
}

// toRecords keeps one record per element; non-object elements become empty records.
func toRecords(arr []any) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(arr))
	for _, el := range arr {
		m, _ := el.(map[string]any)
		if m == nil {
			m = map[string]any{}
		}
		out = append(out, model.RawRecord(m))
	}
	return out
}

// resolvePagination fills gaps in the backend's pagination object from the
// request and the number of entries received. It returns nil when the
// backend sent no pagination object.
func resolvePagination(p map[string]any, q Query, count int) *model.Pagination {
	if p == nil {
		return nil
	}
	total, _ := number(p["total"])

	page, ok := number(p["page"])
	if !ok {
		page = firstPositive(q.Page, 1)
	}

	limit, hasLimit := number(p["limit"])
	if !hasLimit {
		limit = firstPositive(q.Limit, count)
	}

	totalPages, ok := number(p["totalPages"])
	if !ok {
		divisor := 1
		if hasLimit {
			divisor = limit
		} else if q.Limit > 0 {
			divisor = q.Limit
		}
		n := total
		if n == 0 {
			n = count
		}
		if divisor > 0 {
			totalPages = int(math.Ceil(float64(n) / float64(divisor)))
		}
	}

	return &model.Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

// number reads a JSON number or numeric string. ok is false for anything else.
func number(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), true
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = x
	case int:
		return x, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
