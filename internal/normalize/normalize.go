// Package normalize turns loosely-typed backend entry records into the
// canonical EntryRow shape and derives UI selection keys for rows.
//
// Nothing in this package returns an error: missing or malformed fields
// degrade to empty strings or unset optional fields.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/timecalc"
)

// Normalizer converts raw records to rows, formatting dates in a fixed location.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer that renders logDate and logTime in loc.
// A nil loc means the host's local zone.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Location returns the zone used for display formatting.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize converts one raw record into exactly one EntryRow.
func (n *Normalizer) Normalize(raw model.RawRecord) model.EntryRow {
	if raw == nil {
		raw = model.RawRecord{}
	}
	user := raw.User()

	row := model.EntryRow{
		ID: firstOf(
			field(user, "idNumber"),
			field(user, "id_number"),
			field(user, "rfid_tag"),
			field(user, "userId"),
			field(user, "user_id"),
			field(raw, "userId"),
			field(raw, "user_id"),
		),
		Role:        firstOf(field(user, "userType"), field(user, "user_type"), field(user, "role")),
		FirstName:   firstOf(field(user, "firstName"), field(user, "first_name")),
		LastName:    firstOf(field(user, "lastName"), field(user, "last_name")),
		Department:  field(user, "department"),
		College:     field(user, "college"),
		YearLevel:   firstOf(field(user, "yearLevel"), field(user, "year_level")),
		LogID:       firstOf(field(raw, "logId"), field(raw, "log_id")),
		UserID:      firstOf(field(raw, "userId"), field(raw, "user_id")),
		EntryMethod: firstOf(field(raw, "entryMethod"), field(raw, "entry_method")),
		Status:      field(raw, "status"),
		Raw:         raw,
	}
	if row.Role == "" {
		row.Role = string(model.UserTypeStudent)
	}
	if createdAt := field(raw, "createdAt"); createdAt != "" {
		row.CreatedAt = &createdAt
	}

	if ms, ok := n.resolveTimestamp(raw); ok {
		at := time.UnixMilli(ms).In(n.loc)
		date := timecalc.FormatLogDate(at)
		clock := timecalc.FormatLogTime(at)
		row.LogTimestamp = &ms
		row.LogDate = &date
		row.LogTime = &clock
	}
	return row
}

// NormalizeAll normalizes every record in order.
func (n *Normalizer) NormalizeAll(raws []model.RawRecord) []model.EntryRow {
	rows := make([]model.EntryRow, 0, len(raws))
	for _, r := range raws {
		rows = append(rows, n.Normalize(r))
	}
	return rows
}

var timestampKeys = []string{"entryTimestamp", "entry_timestamp"}

// resolveTimestamp prefers a numeric epoch-millisecond value under either
// key, then falls back to parsing a string under either key.
func (n *Normalizer) resolveTimestamp(raw model.RawRecord) (int64, bool) {
	for _, key := range timestampKeys {
		if ms, ok := millis(raw[key]); ok {
			return ms, true
		}
	}
	for _, key := range timestampKeys {
		s, ok := raw[key].(string)
		if !ok {
			continue
		}
		if t, err := timecalc.ParseTimestamp(s, n.loc); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// maxMillis is the largest epoch-millisecond magnitude a browser Date accepts.
const maxMillis = 8.64e15

func millis(v any) (int64, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return inRange(i)
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		return inRange(int64(x))
	case int64:
		return inRange(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxMillis {
		return 0, false
	}
	return int64(f), true
}

func inRange(ms int64) (int64, bool) {
	if ms > maxMillis || ms < -maxMillis {
		return 0, false
	}
	return ms, true
}

// field returns m[key] rendered as a string, or "" when absent or null.
func field(m map[string]any, key string) string {
	return stringify(m[key])
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
