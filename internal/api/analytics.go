package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Tiliavir/entrylog/internal/model"
)

// DateRange bounds an analytics query by calendar day (YYYY-MM-DD). It only
// applies when both ends are set.
type DateRange struct {
	Start string
	End   string
}

func (r DateRange) complete() bool { return r.Start != "" && r.End != "" }

func (r DateRange) apply(v url.Values) bool {
	if !r.complete() {
		return false
	}
	v.Set("startDate", r.Start)
	v.Set("endDate", r.End)
	return true
}

type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Label string `json:"label"`
}

type Trends struct {
	Period       string       `json:"period"`
	Trends       []TrendPoint `json:"trends"`
	TotalEntries int          `json:"totalEntries"`
}

type CollegeCount struct {
	College    string `json:"college"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type CollegeBreakdown struct {
	Colleges     []CollegeCount `json:"colleges"`
	TotalEntries int            `json:"totalEntries"`
}

type DepartmentCount struct {
	Department string `json:"department"`
	College    string `json:"college"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type DepartmentBreakdown struct {
	Departments  []DepartmentCount `json:"departments"`
	TotalEntries int               `json:"totalEntries"`
}

type HourCount struct {
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
	Label string `json:"label"`
}

type PeakHours struct {
	PeakHours []HourCount `json:"peakHours"`
	PeakHour  *HourCount  `json:"peakHour"`
}

// Trends returns daily entry counts. A complete range replaces period.
func (c *Client) Trends(ctx context.Context, period string, userType model.UserType, r DateRange) (Trends, error) {
	v := url.Values{}
	if !r.apply(v) {
		v.Set("period", period)
	}
	if userType != "" && userType != model.UserTypeAll {
		v.Set("userType", string(userType))
	}
	var out Trends
	err := c.getData(ctx, "/analytics/trends", v, &out)
	return out, err
}

// ByCollege returns entry counts per college.
func (c *Client) ByCollege(ctx context.Context, r DateRange) (CollegeBreakdown, error) {
	v := url.Values{}
	r.apply(v)
	var out CollegeBreakdown
	err := c.getData(ctx, "/analytics/by-college", v, &out)
	return out, err
}

// ByDepartment returns entry counts per department, optionally within one college.
func (c *Client) ByDepartment(ctx context.Context, r DateRange, college string) (DepartmentBreakdown, error) {
	v := url.Values{}
	r.apply(v)
	if college != "" {
		v.Set("college", college)
	}
	var out DepartmentBreakdown
	err := c.getData(ctx, "/analytics/by-department", v, &out)
	return out, err
}

// PeakHours returns entry counts per hour of day.
func (c *Client) PeakHours(ctx context.Context) (PeakHours, error) {
	var out PeakHours
	err := c.getData(ctx, "/analytics/peak-hours", nil, &out)
	return out, err
}

// getData unwraps the payload under the envelope's "data" key into out. A
// response without data leaves out at its zero value.
func (c *Client) getData(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.send(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return withFallback(err, "Failed to load analytics")
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding %s data: %w", path, err)
	}
	return nil
}
