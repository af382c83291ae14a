package invites

import (
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docspace/entity"
	"docspace/lib/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestRegistry() (*Registry, *clock.Manual) {
	clk := clock.NewManual(start)
	return New(clk, Config{}), clk
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func assertUsesMatch(t *testing.T, r *Registry) {
	t.Helper()
	for _, c := range r.List() {
		assert.Equal(t, len(c.UsedBy), c.CurrentUses, "code %s", c.Code)
	}
}

func TestGenerate(t *testing.T) {
	r, _ := newTestRegistry()

	code, err := r.Generate("u1", "Admin", GenerateOptions{Description: "onboarding"})
	require.NoError(t, err)

	assert.NotEmpty(t, code.Id)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), code.Code)
	assert.Equal(t, "u1", code.CreatedBy)
	assert.Equal(t, "Admin", code.CreatedByName)
	assert.Equal(t, start, code.CreatedAt)
	assert.Nil(t, code.ExpiresAt)
	assert.Nil(t, code.MaxUses)
	assert.Zero(t, code.CurrentUses)
	assert.True(t, code.IsActive)
	assert.Empty(t, code.UsedBy)
	assert.Equal(t, "onboarding", code.Description)
	assert.Len(t, r.List(), 1)
}

func TestGenerateCustomLength(t *testing.T) {
	r := New(clock.NewManual(start), Config{CodeLength: 12})

	code, err := r.Generate("u1", "Admin", GenerateOptions{})
	require.NoError(t, err)
	assert.Len(t, code.Code, 12)
}

func TestGenerateWidensOnCollision(t *testing.T) {
	r, _ := newTestRegistry()
	r.random = zeroReader{}

	first, err := r.Generate("u1", "Admin", GenerateOptions{})
	require.NoError(t, err)
	second, err := r.Generate("u1", "Admin", GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "AAAAAAAA", first.Code)
	assert.Equal(t, "AAAAAAAAA", second.Code)
}

func TestGenerateRandomFailure(t *testing.T) {
	r, _ := newTestRegistry()
	r.random = failingReader{}

	_, err := r.Generate("u1", "Admin", GenerateOptions{})
	assert.Error(t, err)
	assert.Empty(t, r.List())
}

func TestGenerateReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry()
	code, err := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(2)})
	require.NoError(t, err)

	code.IsActive = false
	*code.MaxUses = 99

	stored, ok := r.Get(code.Id)
	require.True(t, ok)
	assert.True(t, stored.IsActive)
	assert.Equal(t, 2, *stored.MaxUses)
}

func TestValidate(t *testing.T) {
	r, clk := newTestRegistry()

	plain, _ := r.Generate("u1", "Admin", GenerateOptions{})
	expired, _ := r.Generate("u1", "Admin", GenerateOptions{ExpiresAt: timePtr(start.Add(-time.Hour))})
	single, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(1)})
	inactive, _ := r.Generate("u1", "Admin", GenerateOptions{})
	require.True(t, r.Use(single.Code, "u2", "Bob"))
	require.True(t, r.Deactivate(inactive.Id))
	clk.Advance(time.Minute)

	tests := []struct {
		name   string
		code   string
		valid  bool
		reason entity.InviteError
	}{
		{"usable", plain.Code, true, ""},
		{"unknown", "NOPE1234", false, entity.InviteNotFound},
		{"lowercase is not a match", toLower(plain.Code), false, entity.InviteNotFound},
		{"expired", expired.Code, false, entity.InviteExpired},
		{"exhausted", single.Code, false, entity.InviteExhausted},
		{"deactivated", inactive.Code, false, entity.InviteDeactivated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := r.Validate(tt.code)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.reason, v.Error)
			if tt.valid {
				require.NotNil(t, v.InviteCode)
				assert.Equal(t, tt.code, v.InviteCode.Code)
			} else {
				assert.Nil(t, v.InviteCode)
			}
		})
	}
}

func TestExpiryBoundary(t *testing.T) {
	r, clk := newTestRegistry()
	code, _ := r.Generate("u1", "Admin", GenerateOptions{ExpiresAt: timePtr(start.Add(time.Hour))})

	clk.Set(start.Add(time.Hour))
	assert.True(t, r.Validate(code.Code).Valid, "usable at the exact expiry instant")

	clk.Advance(time.Nanosecond)
	assert.Equal(t, entity.InviteExpired, r.Validate(code.Code).Error)
}

func TestExpiredInThePast(t *testing.T) {
	r, _ := newTestRegistry()
	code, _ := r.Generate("u1", "Admin", GenerateOptions{ExpiresAt: timePtr(start.AddDate(0, 0, -1))})

	v := r.Validate(code.Code)
	assert.False(t, v.Valid)
	assert.Equal(t, entity.InviteExpired, v.Error)

	stored, _ := r.Get(code.Id)
	assert.Zero(t, stored.CurrentUses)
	assert.True(t, stored.IsActive)
}

func TestUseSingle(t *testing.T) {
	r, _ := newTestRegistry()
	code, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(1)})

	assert.True(t, r.Use(code.Code, "u2", "Bob"))
	assert.Equal(t, entity.InviteExhausted, r.Validate(code.Code).Error)

	assert.False(t, r.Use(code.Code, "u3", "Carol"))
	stored, _ := r.Get(code.Id)
	assert.Equal(t, 1, stored.CurrentUses)
	require.Len(t, stored.UsedBy, 1)
	assert.Equal(t, entity.InviteUsage{UserId: "u2", UserName: "Bob", UsedAt: start}, stored.UsedBy[0])
	assertUsesMatch(t, r)
}

func TestUseUnknownAndUnlimited(t *testing.T) {
	r, _ := newTestRegistry()
	assert.False(t, r.Use("MISSING1", "u2", "Bob"))

	code, _ := r.Generate("u1", "Admin", GenerateOptions{})
	for i := 0; i < 25; i++ {
		require.True(t, r.Use(code.Code, "u", "User"))
	}
	stored, _ := r.Get(code.Id)
	assert.Equal(t, 25, stored.CurrentUses)
	assertUsesMatch(t, r)
}

func TestUseConcurrent(t *testing.T) {
	r, _ := newTestRegistry()
	code, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(3)})

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Use(code.Code, "u", "User") {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, succeeded.Load())
	stored, _ := r.Get(code.Id)
	assert.Equal(t, 3, stored.CurrentUses)
	assertUsesMatch(t, r)
}

func TestDeactivate(t *testing.T) {
	r, clk := newTestRegistry()
	code, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(5), ExpiresAt: timePtr(start.AddDate(0, 0, 7))})

	assert.True(t, r.Deactivate(code.Id))
	assert.True(t, r.Deactivate(code.Id), "second deactivation is a no-op")
	assert.False(t, r.Deactivate("missing"))

	assert.Equal(t, entity.InviteDeactivated, r.Validate(code.Code).Error)
	assert.False(t, r.Use(code.Code, "u2", "Bob"))

	clk.Advance(30 * 24 * time.Hour)
	assert.Equal(t, entity.InviteDeactivated, r.Validate(code.Code).Error, "deactivation wins over expiry")

	r.Restore(r.Snapshot())
	assert.Equal(t, entity.InviteDeactivated, r.Validate(code.Code).Error)
}

func TestDelete(t *testing.T) {
	r, _ := newTestRegistry()
	a, _ := r.Generate("u1", "Admin", GenerateOptions{})
	b, _ := r.Generate("u1", "Admin", GenerateOptions{})

	assert.True(t, r.Delete(a.Id))
	assert.False(t, r.Delete(a.Id))
	assert.Equal(t, entity.InviteNotFound, r.Validate(a.Code).Error)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.Id, list[0].Id)
}

func TestListActive(t *testing.T) {
	r, _ := newTestRegistry()
	usable, _ := r.Generate("u1", "Admin", GenerateOptions{})
	_, _ = r.Generate("u1", "Admin", GenerateOptions{ExpiresAt: timePtr(start.Add(-time.Second))})
	single, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(1)})
	off, _ := r.Generate("u1", "Admin", GenerateOptions{})
	r.Use(single.Code, "u2", "Bob")
	r.Deactivate(off.Id)

	active := r.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, usable.Id, active[0].Id)
}

func TestStatsOverlap(t *testing.T) {
	r, _ := newTestRegistry()
	_, _ = r.Generate("u1", "Admin", GenerateOptions{ExpiresAt: timePtr(start.Add(-time.Hour))})
	single, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(1)})
	off, _ := r.Generate("u1", "Admin", GenerateOptions{})
	multi, _ := r.Generate("u1", "Admin", GenerateOptions{})
	r.Use(single.Code, "u2", "Bob")
	r.Use(multi.Code, "u3", "Carol")
	r.Use(multi.Code, "u4", "Dave")
	r.Deactivate(off.Id)

	stats := r.Stats()
	assert.Equal(t, entity.InviteStats{Total: 4, Active: 3, Expired: 1, Used: 1, TotalUses: 3}, stats)

	sum := 0
	for _, c := range r.List() {
		sum += c.CurrentUses
	}
	assert.Equal(t, sum, stats.TotalUses)
}

func TestEndToEndThreeUses(t *testing.T) {
	r, _ := newTestRegistry()
	code, err := r.Generate("admin", "System Administrator", GenerateOptions{
		MaxUses:   intPtr(3),
		ExpiresAt: timePtr(start.AddDate(0, 0, 7)),
	})
	require.NoError(t, err)

	assert.True(t, r.Use(code.Code, "u1", "Ann"))
	assert.True(t, r.Use(code.Code, "u2", "Ben"))
	assert.True(t, r.Use(code.Code, "u3", "Cid"))
	assert.False(t, r.Use(code.Code, "u4", "Dot"))

	stats := r.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Used)
	assert.Equal(t, 3, stats.TotalUses)
	assert.Zero(t, stats.Expired)
	assertUsesMatch(t, r)
}

func TestSnapshotRoundTrip(t *testing.T) {
	r, clk := newTestRegistry()
	a, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(2), Description: "team"})
	b, _ := r.Generate("u1", "Admin", GenerateOptions{ExpiresAt: timePtr(start.Add(48 * time.Hour))})
	c, _ := r.Generate("u1", "Admin", GenerateOptions{})
	r.Use(a.Code, "u2", "Bob")
	r.Deactivate(c.Id)

	data, err := json.Marshal(r.Snapshot())
	require.NoError(t, err)
	var snapshot entity.InviteSnapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))

	restored := New(clk, Config{})
	restored.Restore(snapshot)

	assert.Equal(t, r.Stats(), restored.Stats())
	assert.Equal(t, len(r.ListActive()), len(restored.ListActive()))
	for _, code := range []string{a.Code, b.Code, c.Code, "UNKNOWN1"} {
		assert.Equal(t, r.Validate(code).Error, restored.Validate(code).Error, code)
	}

	assert.True(t, restored.Use(a.Code, "u3", "Carol"))
	assert.False(t, restored.Use(a.Code, "u4", "Dave"))
	assertUsesMatch(t, restored)
}

func toLower(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + ('a' - 'A')
		}
	}
	return string(b)
}

func TestRedeemReportsReason(t *testing.T) {
	r, _ := newTestRegistry()
	code, _ := r.Generate("u1", "Admin", GenerateOptions{MaxUses: intPtr(1)})

	_, reason := r.Redeem("MISSING1", "u2", "Bob")
	assert.Equal(t, entity.InviteNotFound, reason)

	updated, reason := r.Redeem(code.Code, "u2", "Bob")
	assert.Empty(t, reason)
	assert.Equal(t, 1, updated.CurrentUses)
	require.Len(t, updated.UsedBy, 1)
	assert.Equal(t, "Bob", updated.UsedBy[0].UserName)

	_, reason = r.Redeem(code.Code, "u3", "Carol")
	assert.Equal(t, entity.InviteExhausted, reason)
	assertUsesMatch(t, r)
}

func TestTimestampsKeepMilliseconds(t *testing.T) {
	r, clk := newTestRegistry()
	clk.Set(start.Add(2*time.Second + 345678*time.Microsecond))
	expires := start.Add(time.Hour + 987654321)
	code, err := r.Generate("u1", "Admin", GenerateOptions{ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, start.Add(2345*time.Millisecond), code.CreatedAt)
	require.NotNil(t, code.ExpiresAt)
	assert.Equal(t, start.Add(time.Hour+987*time.Millisecond), *code.ExpiresAt)

	clk.Advance(1500 * time.Microsecond)
	used, reason := r.Redeem(code.Code, "u2", "Ann")
	require.Empty(t, reason)
	require.Len(t, used.UsedBy, 1)
	assert.Equal(t, start.Add(2347*time.Millisecond), used.UsedBy[0].UsedAt)
}
