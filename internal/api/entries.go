package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/sortopt"
)

// Query selects one page of entries.
type Query struct {
	UserType model.UserType // "" and "all" do not filter
	Search   string         // non-empty switches to the filter endpoint
	Page     int
	Limit    int
	Sort     string // backend directive such as "entryTimestamp:desc"
}

// EntriesPage is one page of normalized entries. Pagination is nil when the
// backend did not describe the result set.
type EntriesPage struct {
	Entries    []model.EntryRow
	Pagination *model.Pagination
}

const fetchFallbackMessage = "Failed to fetch entries"

// filterBody is the POST /entries/filter payload.
type filterBody struct {
	SearchQuery string `json:"searchQuery"`
	Page        int    `json:"page"`
	Limit       int    `json:"limit"`
	UserType    string `json:"userType,omitempty"`
	Sort        string `json:"sort,omitempty"`
}

func (q Query) filtersUserType() bool {
	return q.UserType != "" && q.UserType != model.UserTypeAll
}

// entriesRequest picks the filter endpoint for searches and the plain
// listing otherwise.
func entriesRequest(q Query) request {
	if q.Search != "" {
		body := filterBody{
			SearchQuery: q.Search,
			Page:        firstPositive(q.Page, 1),
			Limit:       firstPositive(q.Limit, 10),
			Sort:        q.Sort,
		}
		if q.filtersUserType() {
			body.UserType = string(q.UserType)
		}
		return request{method: http.MethodPost, path: "/entries/filter", body: body}
	}

	params := url.Values{}
	if q.filtersUserType() {
		params.Set("userType", string(q.UserType))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	sortopt.SetListingParams(params, q.Sort)
	return request{method: http.MethodGet, path: "/entries", query: params}
}

// FetchEntries fetches and normalizes one page of entries, bypassing the cache.
func (c *Client) FetchEntries(ctx context.Context, q Query) (EntriesPage, error) {
	return c.fetchEntries(ctx, q, c.send)
}

// ViewEntries is FetchEntries for interactive views; it reads through the
// list-page cache when one is configured.
func (c *Client) ViewEntries(ctx context.Context, q Query) (EntriesPage, error) {
	return c.fetchEntries(ctx, q, c.sendCached)
}

func (c *Client) fetchEntries(ctx context.Context, q Query, send func(context.Context, request) ([]byte, error)) (EntriesPage, error) {
	body, err := send(ctx, entriesRequest(q))
	if err != nil {
		return EntriesPage{}, withFallback(err, fetchFallbackMessage)
	}

	env := decodeEnvelope(body)
	if env.shape == shapeEmpty {
		c.logger.Warn("unrecognized entries response, treating as empty", "bytes", len(body))
	}
	return EntriesPage{
		Entries:    c.normalizer.NormalizeAll(env.records),
		Pagination: resolvePagination(env.pagination, q, len(env.records)),
	}, nil
}

// DeleteEntry deletes one entry by its backend logId.
func (c *Client) DeleteEntry(ctx context.Context, logID string) error {
	if logID == "" {
		return ErrNoLogID
	}
	_, err := c.send(ctx, request{method: http.MethodDelete, path: "/entries/" + url.PathEscape(logID)})
	if err != nil {
		return withFallback(err, "Failed to delete entry")
	}
	c.invalidate(ctx)
	return nil
}

type manualEntryBody struct {
	IDNumber       string `json:"idNumber"`
	EntryMethod    string `json:"entryMethod"`
	Status         string `json:"status"`
	EntryTimestamp string `json:"entryTimestamp"`
}

type legacyManualEntryBody struct {
	IDNumber string `json:"idNumber"`
}

// CreateManualEntry records a manual check-in for the user with idNumber.
// Backends that refuse the generic endpoint with 401, 403 or 404 are retried
// once on the legacy /entries/manual endpoint; usedLegacy reports that.
func (c *Client) CreateManualEntry(ctx context.Context, idNumber string, at time.Time) (usedLegacy bool, err error) {
	_, err = c.send(ctx, request{
		method: http.MethodPost,
		path:   "/entries",
		body: manualEntryBody{
			IDNumber:       idNumber,
			EntryMethod:    "manual",
			Status:         "success",
			EntryTimestamp: at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	})
	switch StatusOf(err) {
	case 0:
		if err != nil {
			return false, withFallback(err, "Failed to add entry")
		}
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		c.logger.Info("generic entry endpoint refused, trying legacy endpoint", "status", StatusOf(err))
		if _, err := c.send(ctx, request{
			method: http.MethodPost,
			path:   "/entries/manual",
			body:   legacyManualEntryBody{IDNumber: idNumber},
		}); err != nil {
			return true, withFallback(err, "Failed to add entry")
		}
		usedLegacy = true
	default:
		return false, withFallback(err, "Failed to add entry")
	}
	c.invalidate(ctx)
	return usedLegacy, nil
}
