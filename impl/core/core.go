package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"docspace/entity"
	"docspace/internal/analytics"
	"docspace/internal/database"
	"docspace/internal/invites"
	"docspace/internal/metrics"
	"docspace/lib/clock"
	"docspace/lib/sl"
)

const storeTimeout = 10 * time.Second

type AuthService interface {
	UserByToken(token string) (*entity.User, error)
}

type Options struct {
	DefaultDays   int
	RetentionDays int
	SaveInterval  time.Duration
	PurgeInterval time.Duration
}

// Core ties the invite registry and the activity tracker to persistence and
// metrics. Every invite mutation is saved immediately; analytics are saved
// by Run on a timer and by Flush.
type Core struct {
	registry *invites.Registry
	tracker  *analytics.Tracker
	clock    clock.Clock
	store    database.SnapshotStore
	metrics  *metrics.Metrics
	auth     AuthService
	opts     Options
	log      *slog.Logger
	saveMu   sync.Mutex
	dirty    atomic.Bool
	// keys whose snapshot could not be read; saving them would overwrite stored data
	unloaded map[string]bool
}

func New(registry *invites.Registry, tracker *analytics.Tracker, clk clock.Clock, log *slog.Logger) *Core {
	if registry == nil || tracker == nil {
		panic("registry and tracker are required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Core{
		registry: registry,
		tracker:  tracker,
		clock:    clk,
		opts: Options{
			DefaultDays:   analytics.DefaultDays,
			RetentionDays: 90,
			SaveInterval:  30 * time.Second,
			PurgeInterval: time.Hour,
		},
		log: log.With(sl.Module("core")),
	}
}

func (c *Core) SetStore(store database.SnapshotStore) {
	c.store = store
}

func (c *Core) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetOptions(opts Options) {
	if opts.DefaultDays > 0 {
		c.opts.DefaultDays = opts.DefaultDays
	}
	if opts.RetentionDays > 0 {
		c.opts.RetentionDays = opts.RetentionDays
	}
	if opts.SaveInterval > 0 {
		c.opts.SaveInterval = opts.SaveInterval
	}
	if opts.PurgeInterval > 0 {
		c.opts.PurgeInterval = opts.PurgeInterval
	}
}

// Now is the time source shared with the registry and the tracker.
func (c *Core) Now() time.Time {
	return c.clock.Now()
}

func (c *Core) AuthenticateByToken(token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(token)
}

// Load restores both subsystems from the store. Missing snapshots are not an error.
// A key that fails to load is never saved by this Core until a later Load succeeds.
func (c *Core) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	var errs []error

	var inviteSnapshot entity.InviteSnapshot
	err := c.store.Load(ctx, database.KeyInviteCodes, &inviteSnapshot)
	switch {
	case err == nil:
		c.registry.Restore(inviteSnapshot)
		c.log.Info("invite codes loaded", slog.Int("count", len(inviteSnapshot.InviteCodes)))
	case errors.Is(err, database.ErrNotFound):
	default:
		errs = append(errs, fmt.Errorf("load invite codes: %w", err))
	}
	c.setLoaded(database.KeyInviteCodes, err)

	var analyticsSnapshot entity.AnalyticsSnapshot
	err = c.store.Load(ctx, database.KeyAnalytics, &analyticsSnapshot)
	switch {
	case err == nil:
		c.tracker.Restore(analyticsSnapshot)
		c.log.Info("analytics loaded",
			slog.Int("page_views", len(analyticsSnapshot.PageViews)),
			slog.Int("sessions", len(analyticsSnapshot.Sessions)),
			slog.Int("searches", len(analyticsSnapshot.Searches)),
		)
	case errors.Is(err, database.ErrNotFound):
	default:
		errs = append(errs, fmt.Errorf("load analytics: %w", err))
	}
	c.setLoaded(database.KeyAnalytics, err)

	return errors.Join(errs...)
}

func (c *Core) setLoaded(key string, err error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if err == nil || errors.Is(err, database.ErrNotFound) {
		delete(c.unloaded, key)
		return
	}
	if c.unloaded == nil {
		c.unloaded = make(map[string]bool)
	}
	c.unloaded[key] = true
}

// Run saves analytics periodically and purges old events until ctx is done,
// then flushes both snapshots.
func (c *Core) Run(ctx context.Context) {
	saveTicker := time.NewTicker(c.opts.SaveInterval)
	defer saveTicker.Stop()
	purgeTicker := time.NewTicker(c.opts.PurgeInterval)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			c.Flush(flushCtx)
			cancel()
			return
		case <-saveTicker.C:
			if c.dirty.Load() {
				c.saveAnalytics(ctx)
			}
		case <-purgeTicker.C:
			c.PurgeAnalytics(c.opts.RetentionDays)
		}
	}
}

func (c *Core) Flush(ctx context.Context) {
	c.saveInvites(ctx)
	c.saveAnalytics(ctx)
}

func (c *Core) saveInvites(ctx context.Context) {
	if c.store == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if c.unloaded[database.KeyInviteCodes] {
		c.log.Warn("invite codes not saved, stored snapshot was not loaded")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.store.Save(ctx, database.KeyInviteCodes, c.registry.Snapshot()); err != nil {
		c.log.Error("save invite codes", sl.Err(err))
	}
}

func (c *Core) saveAnalytics(ctx context.Context) {
	if c.store == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if c.unloaded[database.KeyAnalytics] {
		c.log.Warn("analytics not saved, stored snapshot was not loaded")
		return
	}

	c.dirty.Store(false)
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.store.Save(ctx, database.KeyAnalytics, c.tracker.Snapshot()); err != nil {
		c.dirty.Store(true)
		c.log.Error("save analytics", sl.Err(err))
	}
}

func (c *Core) days(days int) int {
	if days <= 0 {
		return c.opts.DefaultDays
	}
	return days
}
