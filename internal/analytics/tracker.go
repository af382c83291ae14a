// Package analytics records page views and searches made inside browsing
// sessions and answers time-windowed questions about them.
//
// A session is one browser tab: the client gets its id from InitSession and
// passes it on every tracking call. At most one page view per session is
// open (has no duration) at any time.
package analytics

import (
	"errors"
	"sync"
	"time"

	"docspace/entity"
	"docspace/lib/clock"

	"github.com/biter777/countries"
	"github.com/google/uuid"
)

const (
	DefaultDays  = 7
	DefaultLimit = 5
	ReportLimit  = 10
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already ended")
	ErrInvalidRange    = errors.New("invalid date range")
)

type Tracker struct {
	mu         sync.RWMutex
	clock      clock.Clock
	pageViews  []*entity.PageView
	sessions   []*entity.UserSession
	sessionIdx map[string]*entity.UserSession
	searches   []*entity.SearchQuery
	dailyStats map[string]*entity.DailyStat
	openPages  map[string]*entity.PageView
}

func New(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.System{}
	}
	return &Tracker{
		clock:      clk,
		sessionIdx: make(map[string]*entity.UserSession),
		dailyStats: make(map[string]*entity.DailyStat),
		openPages:  make(map[string]*entity.PageView),
	}
}

func (t *Tracker) InitSession(info entity.SessionRequest) entity.UserSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	session := &entity.UserSession{
		Id:        uuid.NewString(),
		UserId:    info.UserId,
		StartTime: clock.Stamp(t.clock),
		PageViews: 0,
		UserAgent: info.UserAgent,
		IpAddress: info.IpAddress,
		Country:   countryCode(info.Country),
	}
	t.sessions = append(t.sessions, session)
	t.sessionIdx[session.Id] = session
	return session.Clone()
}

// TrackPageView closes the open page of the session, if any, and opens a new one.
func (t *Tracker) TrackPageView(sessionId string, view entity.PageViewRequest) (entity.PageView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, err := t.activeSession(sessionId)
	if err != nil {
		return entity.PageView{}, err
	}
	now := clock.Stamp(t.clock)
	t.closePage(sessionId, now)

	pageView := &entity.PageView{
		Id:        uuid.NewString(),
		PageId:    view.PageId,
		PagePath:  view.Path,
		PageTitle: view.Title,
		UserId:    session.UserId,
		SessionId: sessionId,
		Timestamp: now,
		Referrer:  view.Referrer,
	}
	t.pageViews = append(t.pageViews, pageView)
	t.openPages[sessionId] = pageView
	session.PageViews++
	t.day(now).PageViews++
	return pageView.Clone(), nil
}

// TrackPageExit sets the duration of the open page. Returns false when no page is open.
func (t *Tracker) TrackPageExit(sessionId string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.activeSession(sessionId); err != nil {
		return false, err
	}
	return t.closePage(sessionId, clock.Stamp(t.clock)), nil
}

func (t *Tracker) TrackSearch(sessionId string, search entity.SearchRequest) (entity.SearchQuery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, err := t.activeSession(sessionId)
	if err != nil {
		return entity.SearchQuery{}, err
	}
	now := clock.Stamp(t.clock)
	query := &entity.SearchQuery{
		Id:            uuid.NewString(),
		Query:         search.Query,
		UserId:        session.UserId,
		SessionId:     sessionId,
		Timestamp:     now,
		ResultsCount:  search.ResultsCount,
		ClickedResult: search.ClickedResult,
	}
	t.searches = append(t.searches, query)
	t.day(now).Searches++
	return *query, nil
}

// EndSession closes the open page and stamps the session end.
// Ending an already ended session is a no-op that returns false.
func (t *Tracker) EndSession(sessionId string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessionIdx[sessionId]
	if !ok {
		return false, ErrSessionNotFound
	}
	if session.IsEnded() {
		return false, nil
	}
	now := clock.Stamp(t.clock)
	t.closePage(sessionId, now)

	duration := seconds(now.Sub(session.StartTime))
	session.EndTime = &now
	session.Duration = &duration
	return true, nil
}

func (t *Tracker) Session(id string) (entity.UserSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	session, ok := t.sessionIdx[id]
	if !ok {
		return entity.UserSession{}, false
	}
	return session.Clone(), true
}

func (t *Tracker) Snapshot() entity.AnalyticsSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := entity.AnalyticsSnapshot{
		PageViews:  make([]entity.PageView, 0, len(t.pageViews)),
		Sessions:   make([]entity.UserSession, 0, len(t.sessions)),
		Searches:   make([]entity.SearchQuery, 0, len(t.searches)),
		DailyStats: make(map[string]entity.DailyStat, len(t.dailyStats)),
	}
	for _, v := range t.pageViews {
		snapshot.PageViews = append(snapshot.PageViews, v.Clone())
	}
	for _, s := range t.sessions {
		snapshot.Sessions = append(snapshot.Sessions, s.Clone())
	}
	for _, q := range t.searches {
		snapshot.Searches = append(snapshot.Searches, *q)
	}
	for date, stat := range t.dailyStats {
		snapshot.DailyStats[date] = *stat
	}
	return snapshot
}

// Restore replaces all tracked data. The open page of every session that has
// not ended is its last page view without a duration.
func (t *Tracker) Restore(snapshot entity.AnalyticsSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pageViews = make([]*entity.PageView, 0, len(snapshot.PageViews))
	for i := range snapshot.PageViews {
		v := snapshot.PageViews[i].Clone()
		t.pageViews = append(t.pageViews, &v)
	}
	t.searches = make([]*entity.SearchQuery, 0, len(snapshot.Searches))
	for i := range snapshot.Searches {
		q := snapshot.Searches[i]
		t.searches = append(t.searches, &q)
	}
	t.sessions = make([]*entity.UserSession, 0, len(snapshot.Sessions))
	for i := range snapshot.Sessions {
		s := snapshot.Sessions[i].Clone()
		t.sessions = append(t.sessions, &s)
	}
	t.dailyStats = make(map[string]*entity.DailyStat, len(snapshot.DailyStats))
	for date, stat := range snapshot.DailyStats {
		s := stat
		t.dailyStats[date] = &s
	}
	t.reindex()
}

// reindex rebuilds the session index and the open pages from the event lists.
func (t *Tracker) reindex() {
	t.sessionIdx = make(map[string]*entity.UserSession, len(t.sessions))
	for _, s := range t.sessions {
		t.sessionIdx[s.Id] = s
	}
	last := make(map[string]*entity.PageView)
	for _, v := range t.pageViews {
		last[v.SessionId] = v
	}
	t.openPages = make(map[string]*entity.PageView)
	for sessionId, v := range last {
		session, ok := t.sessionIdx[sessionId]
		if ok && !session.IsEnded() && v.Duration == nil {
			t.openPages[sessionId] = v
		}
	}
}

func (t *Tracker) activeSession(id string) (*entity.UserSession, error) {
	session, ok := t.sessionIdx[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsEnded() {
		return nil, ErrSessionEnded
	}
	return session, nil
}

func (t *Tracker) closePage(sessionId string, now time.Time) bool {
	pageView, ok := t.openPages[sessionId]
	if !ok {
		return false
	}
	duration := seconds(now.Sub(pageView.Timestamp))
	pageView.Duration = &duration
	delete(t.openPages, sessionId)
	return true
}

func (t *Tracker) day(ts time.Time) *entity.DailyStat {
	date := clock.Date(ts)
	stat, ok := t.dailyStats[date]
	if !ok {
		stat = &entity.DailyStat{}
		t.dailyStats[date] = stat
	}
	return stat
}

// seconds floors d to whole seconds, never below zero
func seconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// countryCode accepts a country name or ISO code and returns the alpha-2
// code, or an empty string when the value is not recognised.
func countryCode(value string) string {
	if value == "" {
		return ""
	}
	code := countries.ByName(value).Alpha2()
	if len(code) != 2 {
		return ""
	}
	return code
}
