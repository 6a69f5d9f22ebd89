package model

import (
	"encoding/json"
	"strings"
)

// RawRecord is one entry record exactly as the backend sent it. Any field may
// be missing or spelled in camelCase or snake_case, and user details usually
// sit in a nested "user" object.
type RawRecord map[string]any

// User returns the nested user object, or an empty map when absent or not an object.
func (r RawRecord) User() map[string]any {
	if u, ok := r["user"].(map[string]any); ok {
		return u
	}
	return map[string]any{}
}

// EntryRow is the canonical row shape shown in tables and written to exports.
type EntryRow struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Department  string `json:"department"`
	College     string `json:"college"`
	YearLevel   string `json:"yearLevel"`
	LogID       string `json:"logId"`
	UserID      string `json:"userId"`
	EntryMethod string `json:"entryMethod"`
	Status      string `json:"status"`

	CreatedAt    *string `json:"createdAt"`
	LogTimestamp *int64  `json:"logTimestamp"` // epoch milliseconds
	LogDate      *string `json:"logDate"`
	LogTime      *string `json:"logTime"`

	// Raw holds the record the row was derived from.
	Raw RawRecord `json:"-"`
}

// Fields returns the raw record overlaid with every derived field. Optional
// derived fields that are unset remove the raw key of the same name, so a raw
// value can never stand in for a computed one.
func (e EntryRow) Fields() map[string]any {
	out := make(map[string]any, len(e.Raw)+15)
	for k, v := range e.Raw {
		out[k] = v
	}
	out["id"] = e.ID
	out["role"] = e.Role
	out["firstName"] = e.FirstName
	out["lastName"] = e.LastName
	out["department"] = e.Department
	out["college"] = e.College
	out["yearLevel"] = e.YearLevel
	out["logId"] = e.LogID
	out["userId"] = e.UserID
	out["entryMethod"] = e.EntryMethod
	out["status"] = e.Status
	setOptional(out, "createdAt", e.CreatedAt)
	setOptional(out, "logDate", e.LogDate)
	setOptional(out, "logTime", e.LogTime)
	if e.LogTimestamp != nil {
		out["logTimestamp"] = *e.LogTimestamp
	} else {
		delete(out, "logTimestamp")
	}
	return out
}

func setOptional(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
		return
	}
	delete(m, key)
}

// Record returns the merged fields as a RawRecord, suitable for normalizing again.
func (e EntryRow) Record() RawRecord {
	return RawRecord(e.Fields())
}

// MarshalJSON encodes the merged view of the row.
func (e EntryRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Fields())
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// UserType is the backend's population filter.
type UserType string

const (
	UserTypeAll     UserType = "all"
	UserTypeStudent UserType = "student"
	UserTypeFaculty UserType = "faculty"
)

// UserTypeForSection maps a console section name to the backend filter.
// Unknown sections show everyone.
func UserTypeForSection(section string) UserType {
	switch strings.ToLower(strings.TrimSpace(section)) {
	case "students", "student":
		return UserTypeStudent
	case "faculties", "faculty":
		return UserTypeFaculty
	default:
		return UserTypeAll
	}
}
