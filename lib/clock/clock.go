package clock

import (
	"fmt"
	"sync"
	"time"
)

const (
	timestampLayout = "2006-01-02T15:04:05Z"
	DateLayout      = "2006-01-02"
)

// Clock is the time source shared by the registry and the tracker.
// Event timestamps and window cutoffs must come from the same Clock.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Now returns the current UTC time formatted for API responses
func Now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// Date returns the UTC calendar date of t as YYYY-MM-DD
func Date(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD into midnight UTC
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a valid date: %s", value)
	}
	return t, nil
}

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Stamp returns the current time at millisecond precision, the finest one
// BSON datetimes keep. Stored events must be stamped with it so that every
// snapshot driver restores them unchanged.
func Stamp(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Millisecond)
}

// DaysAgo returns the instant exactly `days` calendar days before now
func DaysAgo(c Clock, days int) time.Time {
	return c.Now().UTC().AddDate(0, 0, -days)
}

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(now time.Time) *Manual {
	return &Manual{now: now.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now.UTC()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
