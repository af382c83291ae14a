package entity

// DailyStat is the per-date rollup. Only PageViews and Searches are kept as
// running counters; the other fields are derived from raw events on read.
type DailyStat struct {
	PageViews          int `json:"page_views" bson:"page_views"`
	UniqueVisitors     int `json:"unique_visitors" bson:"unique_visitors"`
	NewUsers           int `json:"new_users" bson:"new_users"`
	AvgSessionDuration int `json:"avg_session_duration" bson:"avg_session_duration"`
	Searches           int `json:"searches" bson:"searches"`
}

// DayBreakdown is a DailyStat labelled with its date.
type DayBreakdown struct {
	Date string `json:"date"`
	DailyStat
}

// DailyPoint is one bar of the dashboard traffic chart.
type DailyPoint struct {
	Date      string `json:"date"`
	PageViews int    `json:"page_views"`
	Visitors  int    `json:"visitors"`
}

type PopularPage struct {
	Title  string `json:"title"`
	Path   string `json:"path"`
	Views  int    `json:"views"`
	Change string `json:"change"`
}

type ActivityItem struct {
	Action string `json:"action"`
	Item   string `json:"item"`
	User   string `json:"user"`
	Time   string `json:"time"`
}

type CountryCount struct {
	Country  string `json:"country"`
	Name     string `json:"name"`
	Visitors int    `json:"visitors"`
}

type AnalyticsSummary struct {
	Days               int `json:"days"`
	TotalPageViews     int `json:"total_page_views"`
	UniqueVisitors     int `json:"unique_visitors"`
	AvgSessionDuration int `json:"avg_session_duration"`
	TotalSearches      int `json:"total_searches"`
}

type ReportPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type Report struct {
	Period             ReportPeriod   `json:"period"`
	TotalPageViews     int            `json:"total_page_views"`
	UniqueVisitors     int            `json:"unique_visitors"`
	AvgSessionDuration int            `json:"avg_session_duration"`
	TotalSearches      int            `json:"total_searches"`
	TopPages           []PopularPage  `json:"top_pages"`
	DailyBreakdown     []DayBreakdown `json:"daily_breakdown"`
}

// PurgeResult counts raw events removed by a retention purge.
type PurgeResult struct {
	PageViews int `json:"page_views"`
	Sessions  int `json:"sessions"`
	Searches  int `json:"searches"`
}

type AnalyticsSnapshot struct {
	PageViews  []PageView           `json:"page_views" bson:"page_views"`
	Sessions   []UserSession        `json:"sessions" bson:"sessions"`
	Searches   []SearchQuery        `json:"searches" bson:"searches"`
	DailyStats map[string]DailyStat `json:"daily_stats" bson:"daily_stats"`
}
