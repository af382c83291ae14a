package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"docspace/entity"
	"docspace/internal/analytics"
	"docspace/internal/database"
	"docspace/internal/invites"
	"docspace/internal/metrics"
	"docspace/lib/clock"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

var admin = &entity.User{Username: "admin", Name: "System Administrator", Role: entity.RoleAdmin}

func newTestCore(store database.SnapshotStore) (*Core, *clock.Manual) {
	clk := clock.NewManual(now)
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	c := New(invites.New(clk, invites.Config{}), analytics.New(clk), clk, log)
	c.SetStore(store)
	c.SetMetrics(metrics.New(prometheus.NewRegistry()))
	return c, clk
}

type failingStore struct{}

func (failingStore) Load(context.Context, string, interface{}) error { return errors.New("down") }
func (failingStore) Save(context.Context, string, interface{}) error { return errors.New("down") }
func (failingStore) Close()                                          {}

// unreadableStore fails every Load but accepts writes.
type unreadableStore struct {
	*database.Memory
}

func (unreadableStore) Load(context.Context, string, interface{}) error { return errors.New("down") }

func TestGenerateAndRedeem(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCore(database.NewMemory())
	maxUses := 2

	code, err := c.GenerateInvite(ctx, admin, &entity.InviteRequest{MaxUses: &maxUses, ExpiresInDays: 7})
	require.NoError(t, err)
	assert.Equal(t, "admin", code.CreatedBy)
	assert.Equal(t, "System Administrator", code.CreatedByName)
	require.NotNil(t, code.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 7), *code.ExpiresAt)

	v := c.RedeemInvite(ctx, &entity.RedeemRequest{Code: code.Code, UserId: "u1", UserName: "Ann"})
	assert.True(t, v.Valid)
	require.NotNil(t, v.InviteCode)
	assert.Equal(t, 1, v.InviteCode.CurrentUses)

	c.RedeemInvite(ctx, &entity.RedeemRequest{Code: code.Code, UserId: "u2", UserName: "Ben"})
	v = c.RedeemInvite(ctx, &entity.RedeemRequest{Code: code.Code, UserId: "u3", UserName: "Cid"})
	assert.False(t, v.Valid)
	assert.Equal(t, entity.InviteExhausted, v.Error)
	assert.Nil(t, v.InviteCode)

	assert.Equal(t, entity.InviteStats{Total: 1, Active: 1, Used: 1, TotalUses: 2}, c.InviteStats())
}

func TestGenerateRequiresUser(t *testing.T) {
	c, _ := newTestCore(nil)
	_, err := c.GenerateInvite(context.Background(), nil, &entity.InviteRequest{})
	assert.Error(t, err)
	assert.Empty(t, c.Invites())
}

func TestDeactivateAndDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCore(nil)
	code, _ := c.GenerateInvite(ctx, admin, &entity.InviteRequest{})

	require.NoError(t, c.DeactivateInvite(ctx, code.Id))
	assert.Equal(t, entity.InviteDeactivated, c.ValidateInvite(code.Code).Error)
	assert.Empty(t, c.ActiveInvites())

	require.NoError(t, c.DeleteInvite(ctx, code.Id))
	assert.ErrorIs(t, c.DeleteInvite(ctx, code.Id), invites.ErrNotFound)
	assert.ErrorIs(t, c.DeactivateInvite(ctx, "missing"), invites.ErrNotFound)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	c, clk := newTestCore(store)

	code, _ := c.GenerateInvite(ctx, admin, &entity.InviteRequest{Description: "team"})
	session := c.InitSession(&entity.SessionRequest{UserId: "u1"})
	_, err := c.TrackPageView(session.Id, &entity.PageViewRequest{Path: "/home", Title: "Home"})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = c.TrackSearch(session.Id, &entity.SearchRequest{Query: "setup"})
	require.NoError(t, err)
	c.Flush(ctx)

	restored, _ := newTestCore(store)
	require.NoError(t, restored.Load(ctx))

	assert.True(t, restored.ValidateInvite(code.Code).Valid)
	assert.Equal(t, c.AnalyticsSummary(7), restored.AnalyticsSummary(7))
	assert.Equal(t, c.RecentActivity(5), restored.RecentActivity(5))

	ended, err := restored.EndSession(session.Id)
	require.NoError(t, err)
	assert.True(t, ended)
}

func TestLoadEmptyStore(t *testing.T) {
	c, _ := newTestCore(database.NewMemory())
	require.NoError(t, c.Load(context.Background()))
	assert.Empty(t, c.Invites())

	noStore, _ := newTestCore(nil)
	assert.NoError(t, noStore.Load(context.Background()))
}

func TestStoreFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCore(failingStore{})

	assert.Error(t, c.Load(ctx))
	code, err := c.GenerateInvite(ctx, admin, &entity.InviteRequest{})
	require.NoError(t, err, "save errors are logged, not returned")
	assert.True(t, c.ValidateInvite(code.Code).Valid)
	assert.NotPanics(t, func() { c.Flush(ctx) })
}

func TestFailedLoadKeepsStoredSnapshots(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	seeded, _ := newTestCore(store)
	code, err := seeded.GenerateInvite(ctx, admin, &entity.InviteRequest{})
	require.NoError(t, err)
	seeded.InitSession(&entity.SessionRequest{UserId: "u1"})
	seeded.Flush(ctx)

	c, _ := newTestCore(unreadableStore{store})
	assert.Error(t, c.Load(ctx))
	_, err = c.GenerateInvite(ctx, admin, &entity.InviteRequest{})
	require.NoError(t, err)
	c.InitSession(&entity.SessionRequest{})
	c.Flush(ctx)

	var invitesSnapshot entity.InviteSnapshot
	require.NoError(t, store.Load(ctx, database.KeyInviteCodes, &invitesSnapshot))
	require.Len(t, invitesSnapshot.InviteCodes, 1)
	assert.Equal(t, code.Code, invitesSnapshot.InviteCodes[0].Code)

	var analyticsSnapshot entity.AnalyticsSnapshot
	require.NoError(t, store.Load(ctx, database.KeyAnalytics, &analyticsSnapshot))
	require.Len(t, analyticsSnapshot.Sessions, 1)
	assert.Equal(t, "u1", analyticsSnapshot.Sessions[0].UserId)

	// a successful reload allows saving again
	c.SetStore(store)
	require.NoError(t, c.Load(ctx))
	_, err = c.GenerateInvite(ctx, admin, &entity.InviteRequest{})
	require.NoError(t, err)
	require.NoError(t, store.Load(ctx, database.KeyInviteCodes, &invitesSnapshot))
	assert.Len(t, invitesSnapshot.InviteCodes, 2)
}

func TestTrackingErrors(t *testing.T) {
	c, _ := newTestCore(nil)
	_, err := c.TrackPageView("missing", &entity.PageViewRequest{Path: "/"})
	assert.ErrorIs(t, err, analytics.ErrSessionNotFound)

	s := c.InitSession(&entity.SessionRequest{})
	_, _ = c.EndSession(s.Id)
	_, err = c.TrackSearch(s.Id, &entity.SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, analytics.ErrSessionEnded)
}

func TestDefaultDays(t *testing.T) {
	c, clk := newTestCore(nil)
	c.SetOptions(Options{DefaultDays: 30})

	clk.Set(now.AddDate(0, 0, -20))
	s := c.InitSession(&entity.SessionRequest{})
	_, _ = c.TrackPageView(s.Id, &entity.PageViewRequest{Path: "/old"})
	clk.Set(now)

	assert.Equal(t, 30, c.AnalyticsSummary(0).Days)
	assert.Equal(t, 1, c.AnalyticsSummary(0).TotalPageViews)
	assert.Zero(t, c.AnalyticsSummary(7).TotalPageViews)
	assert.Len(t, c.DailyStats(0), 30)
}

func TestPurgeAnalytics(t *testing.T) {
	c, clk := newTestCore(nil)
	c.SetOptions(Options{RetentionDays: 10})

	clk.Set(now.AddDate(0, 0, -15))
	s := c.InitSession(&entity.SessionRequest{})
	_, _ = c.TrackPageView(s.Id, &entity.PageViewRequest{Path: "/old"})
	clk.Set(now)

	assert.Equal(t, entity.PurgeResult{PageViews: 1, Sessions: 1}, c.PurgeAnalytics(0))
	assert.Zero(t, c.AnalyticsSummary(30).TotalPageViews)
}

func TestRunFlushesOnShutdown(t *testing.T) {
	store := database.NewMemory()
	c, _ := newTestCore(store)
	c.SetOptions(Options{SaveInterval: time.Hour, PurgeInterval: time.Hour})
	c.InitSession(&entity.SessionRequest{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	var snapshot entity.AnalyticsSnapshot
	require.NoError(t, store.Load(context.Background(), database.KeyAnalytics, &snapshot))
	assert.Len(t, snapshot.Sessions, 1)
}
