package analytics

import (
	"fmt"
	"slices"
	"time"

	"docspace/entity"
	"docspace/lib/clock"
)

const maxReportDays = 366

// DailyStats returns one point per calendar day ending today, oldest first.
// Page views come from the daily rollup, so they survive ClearOldData;
// visitors are sessions started that day.
func (t *Tracker) DailyStats(days int) []entity.DailyPoint {
	if days <= 0 {
		days = DefaultDays
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	from := clock.StartOfDay(t.clock.Now()).AddDate(0, 0, -(days - 1))
	points := make([]entity.DailyPoint, 0, days)
	for _, day := range t.breakdown(from, days) {
		points = append(points, entity.DailyPoint{
			Date:      day.Date,
			PageViews: day.PageViews,
			Visitors:  day.UniqueVisitors,
		})
	}
	return points
}

// DayStats returns the full rollup for one date (YYYY-MM-DD).
func (t *Tracker) DayStats(date string) (entity.DailyStat, error) {
	day, err := clock.ParseDate(date)
	if err != nil {
		return entity.DailyStat{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.breakdown(day, 1)[0].DailyStat, nil
}

// GenerateReport aggregates the inclusive range of calendar days between
// start and end.
func (t *Tracker) GenerateReport(start, end time.Time) (entity.Report, error) {
	start = clock.StartOfDay(start)
	end = clock.StartOfDay(end)
	if end.Before(start) {
		return entity.Report{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, clock.Date(end), clock.Date(start))
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > maxReportDays {
		return entity.Report{}, fmt.Errorf("%w: %d days, at most %d allowed", ErrInvalidRange, days, maxReportDays)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	w := window{from: start, to: end.AddDate(0, 0, 1)}
	prior := window{from: start.AddDate(0, 0, -days), to: start}
	return entity.Report{
		Period: entity.ReportPeriod{
			StartDate: clock.Date(start),
			EndDate:   clock.Date(end),
		},
		TotalPageViews:     t.countPageViews(w),
		UniqueVisitors:     t.countSessions(w),
		AvgSessionDuration: t.avgDuration(w),
		TotalSearches:      t.countSearches(w),
		TopPages:           t.popular(ReportLimit, w, prior),
		DailyBreakdown:     t.breakdown(start, days),
	}, nil
}

// ClearOldData removes raw events older than daysToKeep days. Daily rollups
// are kept.
func (t *Tracker) ClearOldData(daysToKeep int) entity.PurgeResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := clock.DaysAgo(t.clock, daysToKeep)
	result := entity.PurgeResult{}

	// DeleteFunc zeroes the dropped tail, so purged events are not retained
	n := len(t.pageViews)
	t.pageViews = slices.DeleteFunc(t.pageViews, func(v *entity.PageView) bool {
		return v.Timestamp.Before(cutoff)
	})
	result.PageViews = n - len(t.pageViews)

	n = len(t.sessions)
	t.sessions = slices.DeleteFunc(t.sessions, func(s *entity.UserSession) bool {
		return s.StartTime.Before(cutoff)
	})
	result.Sessions = n - len(t.sessions)

	n = len(t.searches)
	t.searches = slices.DeleteFunc(t.searches, func(q *entity.SearchQuery) bool {
		return q.Timestamp.Before(cutoff)
	})
	result.Searches = n - len(t.searches)

	t.reindex()
	return result
}

// breakdown builds the full DailyStat for `days` consecutive dates starting
// at `from`. Visitor, new user and duration figures are derived from the
// retained sessions; page views and searches come from the rollup.
func (t *Tracker) breakdown(from time.Time, days int) []entity.DayBreakdown {
	type sessionDay struct {
		visitors  int
		newUsers  int
		durations int
		ended     int
	}
	perDay := make(map[string]*sessionDay)
	get := func(date string) *sessionDay {
		d, ok := perDay[date]
		if !ok {
			d = &sessionDay{}
			perDay[date] = d
		}
		return d
	}

	firstSeen := make(map[string]time.Time)
	for _, s := range t.sessions {
		d := get(clock.Date(s.StartTime))
		d.visitors++
		if s.Duration != nil {
			d.durations += *s.Duration
			d.ended++
		}
		if s.UserId == "" {
			continue
		}
		if first, ok := firstSeen[s.UserId]; !ok || s.StartTime.Before(first) {
			firstSeen[s.UserId] = s.StartTime
		}
	}
	for _, first := range firstSeen {
		get(clock.Date(first)).newUsers++
	}

	list := make([]entity.DayBreakdown, 0, days)
	for i := 0; i < days; i++ {
		date := clock.Date(from.AddDate(0, 0, i))
		day := entity.DayBreakdown{Date: date}
		if stat, ok := t.dailyStats[date]; ok {
			day.PageViews = stat.PageViews
			day.Searches = stat.Searches
		}
		if d, ok := perDay[date]; ok {
			day.UniqueVisitors = d.visitors
			day.NewUsers = d.newUsers
			if d.ended > 0 {
				day.AvgSessionDuration = d.durations / d.ended
			}
		}
		list = append(list, day)
	}
	return list
}
