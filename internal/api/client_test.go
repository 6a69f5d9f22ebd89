package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/entrylog/internal/api"
	"github.com/Tiliavir/entrylog/internal/cache"
	"github.com/Tiliavir/entrylog/internal/logging"
	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/normalize"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...api.Option) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]api.Option{
		api.WithLogger(logging.Discard()),
		api.WithNormalizer(normalize.New(time.UTC)),
	}, opts...)
	return api.NewClient(srv.URL+"/api", opts...)
}

func TestFetchEntriesListing(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/entries" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"success":true,"data":{"entries":[
			{"logId":"L1","entryTimestamp":1700000000000,"user":{"idNumber":"2021-0001","firstName":"Ana","lastName":"Reyes"}},
			{"log_id":"L2","user":{"id_number":"2021-0002","user_type":"faculty"}}
		],"pagination":{"total":2,"page":1,"limit":10,"totalPages":1}}}`)
	})

	page, err := c.FetchEntries(context.Background(), api.Query{
		UserType: model.UserTypeStudent, Page: 1, Limit: 10, Sort: "user.lastName:asc",
	})
	if err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(page.Entries))
	}
	if page.Entries[0].ID != "2021-0001" || page.Entries[1].Role != "faculty" || page.Entries[1].LogID != "L2" {
		t.Errorf("entries = %+v", page.Entries)
	}
	if page.Pagination == nil || page.Pagination.TotalPages != 1 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
	for _, want := range []string{"userType=student", "page=1", "limit=10", "sortBySnake=user.last_name", "sort_dir=asc"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestFetchEntriesSearchUsesFilterEndpoint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/entries/filter" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body["searchQuery"] != "ana" || body["page"] != float64(2) || body["limit"] != float64(5) {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["userType"]; ok {
			t.Errorf("userType sent for all: %v", body)
		}
		io.WriteString(w, `[{"logId":"L1"}]`)
	})

	page, err := c.FetchEntries(context.Background(), api.Query{UserType: model.UserTypeAll, Search: "ana", Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if len(page.Entries) != 1 || page.Pagination != nil {
		t.Errorf("page = %+v", page)
	}
}

func TestFetchEntriesMalformedSuccessIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":"maintenance"}`)
	})
	page, err := c.FetchEntries(context.Background(), api.Query{})
	if err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(page.Entries))
	}
}

func TestFetchEntriesErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantRate    bool
	}{
		{"envelope message", http.StatusBadRequest, `{"success":false,"message":"Invalid sort"}`, "Invalid sort", false},
		{"error field", http.StatusTooManyRequests, `{"error":"rate limit"}`, "rate limit", true},
		{"no body", http.StatusInternalServerError, ``, "Request failed with status code 500", false},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			io.WriteString(w, tt.body)
		})
		_, err := c.FetchEntries(context.Background(), api.Query{})
		var fe *api.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("%s: error %v is not a FetchError", tt.name, err)
		}
		if fe.Status != tt.status || fe.Message != tt.wantMessage {
			t.Errorf("%s: got (%d, %q), want (%d, %q)", tt.name, fe.Status, fe.Message, tt.status, tt.wantMessage)
		}
		if api.IsRateLimited(err) != tt.wantRate {
			t.Errorf("%s: IsRateLimited = %v, want %v", tt.name, !tt.wantRate, tt.wantRate)
		}
	}
}

func TestFetchEntriesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := api.NewClient(srv.URL, api.WithLogger(logging.Discard()))

	_, err := c.FetchEntries(context.Background(), api.Query{})
	var fe *api.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a FetchError", err)
	}
	if fe.Status != 0 || fe.Message == "" || strings.Contains(fe.Message, srv.URL) {
		t.Errorf("transport error = %+v", fe)
	}
}

func TestViewEntriesUsesCache(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		hits.Add(1)
		io.WriteString(w, `{"data":{"entries":[{"logId":"L1"}]}}`)
	}, api.WithCache(cache.NewMemory(time.Now), time.Minute))

	ctx := context.Background()
	q := api.Query{Page: 1, Limit: 10}
	for i := 0; i < 3; i++ {
		if _, err := c.ViewEntries(ctx, q); err != nil {
			t.Fatalf("ViewEntries: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1", hits.Load())
	}

	if _, err := c.FetchEntries(ctx, q); err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("FetchEntries should bypass cache; hits = %d", hits.Load())
	}

	if err := c.DeleteEntry(ctx, "L1"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := c.ViewEntries(ctx, q); err != nil {
		t.Fatalf("ViewEntries: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("delete should invalidate cache; hits = %d", hits.Load())
	}
}

func TestDeleteEntry(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		io.WriteString(w, `{"success":true}`)
	})
	if err := c.DeleteEntry(context.Background(), "L 1/x"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if gotPath != "/api/entries/L%201%2Fx" {
		t.Errorf("path = %q", gotPath)
	}
	if err := c.DeleteEntry(context.Background(), ""); !errors.Is(err, api.ErrNoLogID) {
		t.Errorf("DeleteEntry(\"\") = %v, want ErrNoLogID", err)
	}
}

func TestCreateManualEntryFallback(t *testing.T) {
	tests := []struct {
		name        string
		firstStatus int
		wantLegacy  bool
		wantErr     bool
		wantCalls   int
	}{
		{"generic accepted", http.StatusCreated, false, false, 1},
		{"forbidden falls back", http.StatusForbidden, true, false, 2},
		{"not found falls back", http.StatusNotFound, true, false, 2},
		{"server error does not", http.StatusInternalServerError, false, true, 1},
	}
	for _, tt := range tests {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			switch r.URL.Path {
			case "/api/entries":
				if body["entryMethod"] != "manual" || body["status"] != "success" || body["idNumber"] != "2021-0001" {
					t.Errorf("%s: generic body = %v", tt.name, body)
				}
				if body["entryTimestamp"] != "2026-10-15T09:30:00.000Z" {
					t.Errorf("%s: entryTimestamp = %v", tt.name, body["entryTimestamp"])
				}
				w.WriteHeader(tt.firstStatus)
			case "/api/entries/manual":
				if len(body) != 1 || body["idNumber"] != "2021-0001" {
					t.Errorf("%s: legacy body = %v", tt.name, body)
				}
				w.WriteHeader(http.StatusCreated)
			}
			io.WriteString(w, `{}`)
		})
		at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
		legacy, err := c.CreateManualEntry(context.Background(), "2021-0001", at)
		if (err != nil) != tt.wantErr || legacy != tt.wantLegacy {
			t.Errorf("%s: got (%v, %v), want legacy=%v err=%v", tt.name, legacy, err, tt.wantLegacy, tt.wantErr)
		}
		if int(calls.Load()) != tt.wantCalls {
			t.Errorf("%s: calls = %d, want %d", tt.name, calls.Load(), tt.wantCalls)
		}
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(exp)}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoginEnvelopeShapes(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, exp)
	for _, body := range []string{
		`{"accessToken":"` + access + `","refreshToken":"r"}`,
		`{"success":true,"data":{"accessToken":"` + access + `","refreshToken":"r"}}`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if r.URL.Path != "/api/auth/login" || creds["username"] != "admin" || creds["password"] != "pw" {
				t.Errorf("login request = %s %v", r.URL.Path, creds)
			}
			io.WriteString(w, body)
		})
		tok, err := c.Login(context.Background(), "admin", "pw")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if tok.AccessToken != access || tok.RefreshToken != "r" || !tok.Expiry.Equal(exp) {
			t.Errorf("token = %+v, want expiry %v", tok, exp)
		}
	}
}

func TestLoginFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"success":false,"message":"Invalid credentials"}`)
	})
	_, err := c.Login(context.Background(), "admin", "wrong")
	if err == nil || err.Error() != "Invalid credentials" {
		t.Errorf("Login error = %v, want Invalid credentials", err)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true}`)
	})
	if _, err := c.Login(context.Background(), "admin", "pw"); err == nil {
		t.Error("Login without token: expected error")
	}
}

func TestAuthenticatedClient(t *testing.T) {
	store := api.NewTokenStore(filepath.Join(t.TempDir(), "auth", "token.json"))
	ctx := context.Background()

	hc, err := api.NewHTTPClient(ctx, store, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient without token: %v", err)
	}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := api.NewClient(srv.URL, api.WithHTTPClient(hc), api.WithLogger(logging.Discard()))
	if _, err := c.FetchEntries(ctx, api.Query{}); err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q without a session", gotAuth)
	}

	if err := store.Save(&oauth2.Token{AccessToken: "abc", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	hc, err = api.NewHTTPClient(ctx, store, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	c = api.NewClient(srv.URL, api.WithHTTPClient(hc), api.WithLogger(logging.Discard()))
	if _, err := c.FetchEntries(ctx, api.Query{}); err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q, want Bearer abc", gotAuth)
	}

	if err := store.Save(&oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	hc, _ = api.NewHTTPClient(ctx, store, time.Second)
	c = api.NewClient(srv.URL, api.WithHTTPClient(hc), api.WithLogger(logging.Discard()))
	if _, err := c.FetchEntries(ctx, api.Query{}); !errors.Is(err, api.ErrSessionExpired) {
		t.Errorf("expired session error = %v, want ErrSessionExpired", err)
	}
}

func TestTokenStoreSession(t *testing.T) {
	store := api.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	s, err := store.Session()
	if err != nil || s.SignedIn {
		t.Fatalf("Session on empty store = (%+v, %v)", s, err)
	}

	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	if err := store.Save(&oauth2.Token{AccessToken: signedToken(t, exp), Expiry: exp}); err != nil {
		t.Fatal(err)
	}
	s, err = store.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if !s.SignedIn || s.Subject != "admin" || !s.Expiry.Equal(exp) || s.Expired(time.Now()) {
		t.Errorf("Session = %+v", s)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s, _ := store.Session(); s.SignedIn {
		t.Error("still signed in after Clear")
	}
}

func TestAnalytics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/api/analytics/trends":
			if q.Get("startDate") != "2026-10-01" || q.Has("period") || q.Get("userType") != "faculty" {
				t.Errorf("trends query = %v", q)
			}
			io.WriteString(w, `{"success":true,"data":{"period":"custom","trends":[{"date":"2026-10-01","count":4,"label":"Oct 1"}],"totalEntries":4}}`)
		case "/api/analytics/by-department":
			if q.Get("college") != "CAS" || q.Has("startDate") {
				t.Errorf("department query = %v", q)
			}
			io.WriteString(w, `{"data":{"departments":[{"department":"Physics","college":"CAS","count":2,"percentage":"100.0"}],"totalEntries":2}}`)
		case "/api/analytics/peak-hours":
			io.WriteString(w, `{"data":null}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	tr, err := c.Trends(ctx, "30d", model.UserTypeFaculty, api.DateRange{Start: "2026-10-01", End: "2026-10-15"})
	if err != nil || tr.TotalEntries != 4 || len(tr.Trends) != 1 || tr.Trends[0].Label != "Oct 1" {
		t.Errorf("Trends = (%+v, %v)", tr, err)
	}
	d, err := c.ByDepartment(ctx, api.DateRange{Start: "2026-10-01"}, "CAS")
	if err != nil || len(d.Departments) != 1 || d.Departments[0].Department != "Physics" {
		t.Errorf("ByDepartment = (%+v, %v)", d, err)
	}
	p, err := c.PeakHours(ctx)
	if err != nil || p.PeakHour != nil || len(p.PeakHours) != 0 {
		t.Errorf("PeakHours = (%+v, %v)", p, err)
	}
}

func TestStreamLogs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": connected\n\ndata: {\"logId\":\"L1\"}\n\nevent: log\ndata: line1\ndata: line2\n\n")
	})
	var got []string
	err := c.StreamLogs(context.Background(), func(data string) error {
		got = append(got, data)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamLogs: %v", err)
	}
	want := []string{`{"logId":"L1"}`, "line1\nline2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestStreamLogsRefused(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"Access token required"}`)
	})
	err := c.StreamLogs(context.Background(), func(string) error {
		t.Error("no event expected")
		return nil
	})
	var fe *api.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a FetchError", err)
	}
	if fe.Status != http.StatusUnauthorized || fe.Message != "Access token required" {
		t.Errorf("got (%d, %q), want (401, %q)", fe.Status, fe.Message, "Access token required")
	}
}

func TestTokenStoreRequire(t *testing.T) {
	store := api.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	now := time.Now()
	if _, err := store.Require(now); !errors.Is(err, api.ErrNotAuthenticated) {
		t.Errorf("Require on empty store = %v, want ErrNotAuthenticated", err)
	}
	if err := store.Save(&oauth2.Token{AccessToken: "abc", Expiry: now.Add(-time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Require(now); !errors.Is(err, api.ErrSessionExpired) {
		t.Errorf("Require with expired token = %v, want ErrSessionExpired", err)
	}
	if err := store.Save(&oauth2.Token{AccessToken: "abc"}); err != nil {
		t.Fatal(err)
	}
	if s, err := store.Require(now); err != nil || !s.SignedIn {
		t.Errorf("Require without expiry = (%+v, %v)", s, err)
	}
}
