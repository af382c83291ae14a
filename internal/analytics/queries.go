package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"docspace/entity"
	"docspace/lib/clock"

	"github.com/biter777/countries"
)

// window is the half-open interval [from, to); a zero `to` is unbounded.
type window struct {
	from time.Time
	to   time.Time
}

func (w window) contains(ts time.Time) bool {
	return !ts.Before(w.from) && (w.to.IsZero() || ts.Before(w.to))
}

// trailing is the window of the last `days` days up to now, and the window
// of the same length right before it.
func (t *Tracker) trailing(days int) (window, window) {
	if days <= 0 {
		days = DefaultDays
	}
	cutoff := clock.DaysAgo(t.clock, days)
	return window{from: cutoff}, window{from: cutoff.AddDate(0, 0, -days), to: cutoff}
}

func (t *Tracker) TotalPageViews(days int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, _ := t.trailing(days)
	return t.countPageViews(w)
}

// UniqueVisitors counts sessions started in the window. Two sessions of the
// same user count as two visitors.
func (t *Tracker) UniqueVisitors(days int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, _ := t.trailing(days)
	return t.countSessions(w)
}

// AverageSessionDuration is the floored mean in seconds over ended sessions
// started in the window. Open sessions are left out.
func (t *Tracker) AverageSessionDuration(days int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, _ := t.trailing(days)
	return t.avgDuration(w)
}

func (t *Tracker) TotalSearches(days int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, _ := t.trailing(days)
	return t.countSearches(w)
}

func (t *Tracker) Summary(days int) entity.AnalyticsSummary {
	if days <= 0 {
		days = DefaultDays
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, _ := t.trailing(days)
	return entity.AnalyticsSummary{
		Days:               days,
		TotalPageViews:     t.countPageViews(w),
		UniqueVisitors:     t.countSessions(w),
		AvgSessionDuration: t.avgDuration(w),
		TotalSearches:      t.countSearches(w),
	}
}

// PopularPages ranks paths by views in the window. Ties keep first-seen order.
// Change compares each path with the window of equal length before it.
func (t *Tracker) PopularPages(limit, days int) []entity.PopularPage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, prior := t.trailing(days)
	return t.popular(limit, w, prior)
}

// RecentActivity merges page views and searches, newest first.
func (t *Tracker) RecentActivity(limit int) []entity.ActivityItem {
	if limit <= 0 {
		limit = DefaultLimit
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	type event struct {
		ts   time.Time
		item entity.ActivityItem
	}
	events := make([]event, 0, len(t.pageViews)+len(t.searches))
	for _, v := range t.pageViews {
		title := v.PageTitle
		if title == "" {
			title = v.PagePath
		}
		events = append(events, event{ts: v.Timestamp, item: entity.ActivityItem{
			Action: "Page viewed",
			Item:   title,
			User:   userLabel(v.UserId),
			Time:   v.Timestamp.Format(time.RFC3339),
		}})
	}
	for _, q := range t.searches {
		events = append(events, event{ts: q.Timestamp, item: entity.ActivityItem{
			Action: "Search performed",
			Item:   `"` + q.Query + `"`,
			User:   userLabel(q.UserId),
			Time:   q.Timestamp.Format(time.RFC3339),
		}})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ts.After(events[j].ts)
	})

	if len(events) > limit {
		events = events[:limit]
	}
	items := make([]entity.ActivityItem, 0, len(events))
	for _, e := range events {
		items = append(items, e.item)
	}
	return items
}

// TopCountries counts sessions started in the window by visitor country.
// Sessions without a known country are skipped.
func (t *Tracker) TopCountries(limit, days int) []entity.CountryCount {
	if limit <= 0 {
		limit = DefaultLimit
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, _ := t.trailing(days)

	index := make(map[string]int)
	list := make([]entity.CountryCount, 0)
	for _, s := range t.sessions {
		if s.Country == "" || !w.contains(s.StartTime) {
			continue
		}
		i, ok := index[s.Country]
		if !ok {
			i = len(list)
			index[s.Country] = i
			list = append(list, entity.CountryCount{
				Country: s.Country,
				Name:    countries.ByName(s.Country).String(),
			})
		}
		list[i].Visitors++
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Visitors > list[j].Visitors
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

func (t *Tracker) countPageViews(w window) int {
	n := 0
	for _, v := range t.pageViews {
		if w.contains(v.Timestamp) {
			n++
		}
	}
	return n
}

func (t *Tracker) countSessions(w window) int {
	seen := make(map[string]struct{})
	for _, s := range t.sessions {
		if w.contains(s.StartTime) {
			seen[s.Id] = struct{}{}
		}
	}
	return len(seen)
}

func (t *Tracker) avgDuration(w window) int {
	total, n := 0, 0
	for _, s := range t.sessions {
		if s.Duration == nil || !w.contains(s.StartTime) {
			continue
		}
		total += *s.Duration
		n++
	}
	if n == 0 {
		return 0
	}
	return total / n
}

func (t *Tracker) countSearches(w window) int {
	n := 0
	for _, q := range t.searches {
		if w.contains(q.Timestamp) {
			n++
		}
	}
	return n
}

func (t *Tracker) popular(limit int, w, prior window) []entity.PopularPage {
	if limit <= 0 {
		limit = DefaultLimit
	}

	index := make(map[string]int)
	pages := make([]entity.PopularPage, 0)
	previous := make(map[string]int)
	for _, v := range t.pageViews {
		if prior.contains(v.Timestamp) {
			previous[v.PagePath]++
			continue
		}
		if !w.contains(v.Timestamp) {
			continue
		}
		i, ok := index[v.PagePath]
		if !ok {
			i = len(pages)
			index[v.PagePath] = i
			pages = append(pages, entity.PopularPage{Path: v.PagePath})
		}
		pages[i].Views++
		pages[i].Title = v.PageTitle
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Views > pages[j].Views
	})
	if len(pages) > limit {
		pages = pages[:limit]
	}
	for i := range pages {
		pages[i].Change = change(pages[i].Views, previous[pages[i].Path])
	}
	return pages
}

// change formats the period-over-period difference as a signed percentage
func change(current, previous int) string {
	if previous == 0 {
		return "new"
	}
	pct := int(math.Round(float64(current-previous) * 100 / float64(previous)))
	if pct > 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}

func userLabel(userId string) string {
	if userId == "" {
		return "Anonymous"
	}
	return userId
}
