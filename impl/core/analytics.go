package core

import (
	"log/slog"
	"time"

	"docspace/entity"
)

func (c *Core) InitSession(req *entity.SessionRequest) entity.UserSession {
	session := c.tracker.InitSession(*req)
	c.dirty.Store(true)
	c.metrics.SessionStarted()
	return session
}

func (c *Core) TrackPageView(sessionId string, req *entity.PageViewRequest) (entity.PageView, error) {
	view, err := c.tracker.TrackPageView(sessionId, *req)
	if err != nil {
		return entity.PageView{}, err
	}
	c.dirty.Store(true)
	c.metrics.PageView()
	return view, nil
}

func (c *Core) TrackPageExit(sessionId string) (bool, error) {
	closed, err := c.tracker.TrackPageExit(sessionId)
	if closed {
		c.dirty.Store(true)
	}
	return closed, err
}

func (c *Core) TrackSearch(sessionId string, req *entity.SearchRequest) (entity.SearchQuery, error) {
	query, err := c.tracker.TrackSearch(sessionId, *req)
	if err != nil {
		return entity.SearchQuery{}, err
	}
	c.dirty.Store(true)
	c.metrics.Search()
	return query, nil
}

func (c *Core) EndSession(sessionId string) (bool, error) {
	ended, err := c.tracker.EndSession(sessionId)
	if ended {
		c.dirty.Store(true)
	}
	return ended, err
}

func (c *Core) AnalyticsSummary(days int) entity.AnalyticsSummary {
	return c.tracker.Summary(c.days(days))
}

func (c *Core) PopularPages(limit, days int) []entity.PopularPage {
	return c.tracker.PopularPages(limit, c.days(days))
}

func (c *Core) RecentActivity(limit int) []entity.ActivityItem {
	return c.tracker.RecentActivity(limit)
}

func (c *Core) DailyStats(days int) []entity.DailyPoint {
	return c.tracker.DailyStats(c.days(days))
}

func (c *Core) DayStats(date string) (entity.DailyStat, error) {
	return c.tracker.DayStats(date)
}

func (c *Core) TopCountries(limit, days int) []entity.CountryCount {
	return c.tracker.TopCountries(limit, c.days(days))
}

func (c *Core) AnalyticsReport(start, end time.Time) (entity.Report, error) {
	return c.tracker.GenerateReport(start, end)
}

// PurgeAnalytics drops raw events older than daysToKeep days.
func (c *Core) PurgeAnalytics(daysToKeep int) entity.PurgeResult {
	if daysToKeep <= 0 {
		daysToKeep = c.opts.RetentionDays
	}
	result := c.tracker.ClearOldData(daysToKeep)
	if result.PageViews+result.Sessions+result.Searches > 0 {
		c.dirty.Store(true)
		c.log.With(
			slog.Int("days_to_keep", daysToKeep),
			slog.Int("page_views", result.PageViews),
			slog.Int("sessions", result.Sessions),
			slog.Int("searches", result.Searches),
		).Info("old analytics purged")
	}
	return result
}
