package mockapi

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tiliavir/entrylog/internal/timecalc"
)

// window resolves startDate/endDate, then period, to a time range. ok is
// false when the request bounds nothing.
func (s *Server) window(c *gin.Context, defaultPeriod string) (from, to time.Time, ok bool, err error) {
	start, end := c.Query("startDate"), c.Query("endDate")
	if start != "" && end != "" {
		from, to, err = timecalc.ParseDayRange(start, end, s.cfg.Location)
		return from, to, err == nil, err
	}
	period := c.DefaultQuery("period", defaultPeriod)
	if period == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	from, to, err = timecalc.PeriodRange(period, s.cfg.Now().In(s.cfg.Location))
	return from, to, err == nil, err
}

func (s *Server) entriesIn(from, to time.Time, bounded bool, userType string) []entry {
	var out []entry
	for _, e := range s.store.all() {
		if bounded && (e.Timestamp.Before(from) || e.Timestamp.After(to)) {
			continue
		}
		if userType != "" && userType != "all" && e.User.UserType != userType {
			continue
		}
		out = append(out, e)
	}
	return out
}

func percentage(n, total int) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(n)*100/float64(total))
}

func (s *Server) trends(c *gin.Context) {
	from, to, _, err := s.window(c, "7d")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	entries := s.entriesIn(from, to, true, c.Query("userType"))

	counts := make(map[string]int)
	for _, e := range entries {
		counts[timecalc.FormatDay(e.Timestamp.In(s.cfg.Location))]++
	}
	var points []gin.H
	for day := timecalc.StartOfDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		key := timecalc.FormatDay(day)
		points = append(points, gin.H{"date": key, "count": counts[key], "label": day.Format("Jan 2")})
	}
	period := c.Query("period")
	if c.Query("startDate") != "" && c.Query("endDate") != "" {
		period = "custom"
	} else if period == "" {
		period = "7d"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"period":       period,
		"trends":       points,
		"totalEntries": len(entries),
	}})
}

func (s *Server) byCollege(c *gin.Context) {
	from, to, bounded, err := s.window(c, "")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	entries := s.entriesIn(from, to, bounded, "")
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.User.College]++
	}
	keys := sortedByCount(counts)
	colleges := make([]gin.H, 0, len(keys))
	for _, k := range keys {
		colleges = append(colleges, gin.H{"college": k, "count": counts[k], "percentage": percentage(counts[k], len(entries))})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"colleges": colleges, "totalEntries": len(entries)}})
}

func (s *Server) byDepartment(c *gin.Context) {
	from, to, bounded, err := s.window(c, "")
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	college := c.Query("college")
	var entries []entry
	for _, e := range s.entriesIn(from, to, bounded, "") {
		if college == "" || e.User.College == college {
			entries = append(entries, e)
		}
	}
	counts := make(map[string]int)
	collegeOf := make(map[string]string)
	for _, e := range entries {
		counts[e.User.Department]++
		collegeOf[e.User.Department] = e.User.College
	}
	keys := sortedByCount(counts)
	departments := make([]gin.H, 0, len(keys))
	for _, k := range keys {
		departments = append(departments, gin.H{
			"department": k,
			"college":    collegeOf[k],
			"count":      counts[k],
			"percentage": percentage(counts[k], len(entries)),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"departments": departments, "totalEntries": len(entries)}})
}

func (s *Server) peakHours(c *gin.Context) {
	var counts [24]int
	for _, e := range s.store.all() {
		counts[e.Timestamp.In(s.cfg.Location).Hour()]++
	}
	hours := make([]gin.H, 0, 24)
	var peak gin.H
	best := 0
	for h, n := range counts {
		label := time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("3 PM")
		item := gin.H{"hour": h, "count": n, "label": label}
		hours = append(hours, item)
		if n > best {
			best, peak = n, item
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"peakHours": hours, "peakHour": peak}})
}

// sortedByCount orders keys by descending count, then name.
func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
