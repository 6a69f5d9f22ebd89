package mockapi

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/sortopt"
)

// ErrUnknownUser is returned when a manual entry names an unregistered ID number.
var ErrUnknownUser = errors.New("user not found")

type user struct {
	IDNumber   string
	FirstName  string
	LastName   string
	UserType   string
	Department string
	College    string
	YearLevel  string
}

type entry struct {
	LogID       string
	User        user
	Timestamp   time.Time
	EntryMethod string
	Status      string
	CreatedAt   time.Time
	// legacy entries are served with snake_case keys and a numeric timestamp,
	// the way older backend versions stored them.
	legacy bool
}

// record renders e the way the backend serializes it.
func (e entry) record() map[string]any {
	if e.legacy {
		return map[string]any{
			"log_id":          e.LogID,
			"user_id":         e.User.IDNumber,
			"entry_timestamp": e.Timestamp.UnixMilli(),
			"entry_method":    e.EntryMethod,
			"status":          e.Status,
			"createdAt":       e.CreatedAt.UTC().Format(time.RFC3339),
			"user": map[string]any{
				"id_number":  e.User.IDNumber,
				"first_name": e.User.FirstName,
				"last_name":  e.User.LastName,
				"user_type":  e.User.UserType,
				"department": e.User.Department,
				"college":    e.User.College,
				"year_level": e.User.YearLevel,
			},
		}
	}
	return map[string]any{
		"logId":          e.LogID,
		"userId":         e.User.IDNumber,
		"entryTimestamp": e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"entryMethod":    e.EntryMethod,
		"status":         e.Status,
		"createdAt":      e.CreatedAt.UTC().Format(time.RFC3339),
		"user": map[string]any{
			"idNumber":   e.User.IDNumber,
			"firstName":  e.User.FirstName,
			"lastName":   e.User.LastName,
			"userType":   e.User.UserType,
			"department": e.User.Department,
			"college":    e.User.College,
			"yearLevel":  e.User.YearLevel,
		},
	}
}

// Store is the fake backend's in-memory entry log.
type Store struct {
	mu      sync.RWMutex
	users   map[string]user
	entries []entry
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{users: make(map[string]user), now: now}
}

var (
	firstNames = []string{"Ana", "Ben", "Carla", "Dario", "Elena", "Felix", "Gina", "Hugo", "Iris", "Jon"}
	lastNames  = []string{"Reyes", "Santos", "Cruz", "Bautista", "Garcia", "Mendoza", "Torres", "Flores", `Dela Cruz, "Jr"`}
	colleges   = map[string][]string{
		"CAS":  {"Physics", "Biology", "Mathematics"},
		"CEIT": {"Computer Science", "Civil Engineering"},
		"CBA":  {"Accountancy", "Marketing"},
	}
	methods = []string{"rfid", "rfid", "rfid", "manual", "qr"}
)

// Seed registers users and n entries spread over the 30 days before now.
// The same seed always yields the same data apart from log ids.
func (s *Store) Seed(n int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	collegeNames := make([]string, 0, len(colleges))
	for c := range colleges {
		collegeNames = append(collegeNames, c)
	}
	sort.Strings(collegeNames)

	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]user, 0, 40)
	for i := 0; i < 40; i++ {
		college := collegeNames[rng.Intn(len(collegeNames))]
		depts := colleges[college]
		u := user{
			FirstName:  firstNames[rng.Intn(len(firstNames))],
			LastName:   lastNames[rng.Intn(len(lastNames))],
			Department: depts[rng.Intn(len(depts))],
			College:    college,
		}
		if i%4 == 0 {
			u.IDNumber = fmt.Sprintf("F-%04d", i)
			u.UserType = string(model.UserTypeFaculty)
		} else {
			u.IDNumber = fmt.Sprintf("2021-%04d", i)
			u.UserType = string(model.UserTypeStudent)
			u.YearLevel = strconv.Itoa(1 + rng.Intn(4))
		}
		s.users[u.IDNumber] = u
		users = append(users, u)
	}

	now := s.now()
	for i := 0; i < n; i++ {
		at := now.Add(-time.Duration(rng.Int63n(int64(30 * 24 * time.Hour))))
		s.entries = append(s.entries, entry{
			LogID:       uuid.NewString(),
			User:        users[rng.Intn(len(users))],
			Timestamp:   at.Truncate(time.Millisecond),
			EntryMethod: methods[rng.Intn(len(methods))],
			Status:      "success",
			CreatedAt:   at,
			legacy:      rng.Intn(5) == 0,
		})
	}
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Filter selects and orders entries.
type Filter struct {
	UserType string // "" or "all" for everyone
	Search   string // case-insensitive match on name, ID number, department or college
	Sort     string // "field:direction"
}

func (f Filter) matches(e entry) bool {
	if f.UserType != "" && f.UserType != string(model.UserTypeAll) && e.User.UserType != f.UserType {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	for _, v := range []string{e.User.FirstName, e.User.LastName, e.User.IDNumber, e.User.Department, e.User.College} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

func less(field string) func(a, b entry) bool {
	switch field {
	case "user.lastName", "user.last_name", "lastName":
		return func(a, b entry) bool {
			if a.User.LastName != b.User.LastName {
				return a.User.LastName < b.User.LastName
			}
			return a.User.FirstName < b.User.FirstName
		}
	default:
		return func(a, b entry) bool { return a.Timestamp.Before(b.Timestamp) }
	}
}

// list returns the matching entries in order, newest first by default.
func (s *Store) list(f Filter) []entry {
	s.mu.RLock()
	out := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	field, dir := sortopt.Split(f.Sort)
	lt := less(field)
	desc := dir != "asc"
	if field == "" {
		desc = true
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return lt(out[j], out[i])
		}
		return lt(out[i], out[j])
	})
	return out
}

// all returns every entry in insertion order.
func (s *Store) all() []entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entry(nil), s.entries...)
}

// Delete removes the entry with logID and reports whether it existed.
func (s *Store) Delete(logID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.LogID == logID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// add records an entry for a registered user. A zero at means now.
func (s *Store) add(idNumber, method string, at time.Time) (entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[idNumber]
	if !ok {
		return entry{}, ErrUnknownUser
	}
	now := s.now()
	if at.IsZero() {
		at = now
	}
	e := entry{
		LogID:       uuid.NewString(),
		User:        u,
		Timestamp:   at.Truncate(time.Millisecond),
		EntryMethod: method,
		Status:      "success",
		CreatedAt:   now,
	}
	s.entries = append(s.entries, e)
	return e, nil
}

// AddUser registers a user so entries can be recorded for it.
func (s *Store) AddUser(idNumber, firstName, lastName string, userType model.UserType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[idNumber] = user{IDNumber: idNumber, FirstName: firstName, LastName: lastName, UserType: string(userType)}
}
