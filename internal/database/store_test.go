package database

import (
	"context"
	"testing"
	"time"

	"docspace/entity"
	"docspace/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var snapshot entity.InviteSnapshot
	assert.ErrorIs(t, store.Load(ctx, KeyInviteCodes, &snapshot), ErrNotFound)

	maxUses := 2
	saved := entity.InviteSnapshot{InviteCodes: []entity.InviteCode{{
		Id:        "id-1",
		Code:      "ABCD1234",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		MaxUses:   &maxUses,
		IsActive:  true,
		UsedBy:    []entity.InviteUsage{},
	}}}
	require.NoError(t, store.Save(ctx, KeyInviteCodes, saved))

	require.NoError(t, store.Load(ctx, KeyInviteCodes, &snapshot))
	assert.Equal(t, saved, snapshot)

	maxUses = 5
	assert.Equal(t, 2, *snapshot.InviteCodes[0].MaxUses, "stored copy is detached")
}

func TestNewStoreDrivers(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, &config.Config{Storage: config.Storage{Driver: "none"}})
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = NewStore(ctx, &config.Config{Storage: config.Storage{Driver: "mongo"}})
	assert.Error(t, err, "mongo must be enabled")

	_, err = NewStore(ctx, &config.Config{Storage: config.Storage{Driver: "mysql"}})
	assert.Error(t, err)

	_, err = NewStore(ctx, &config.Config{Storage: config.Storage{Driver: "redis"}})
	assert.Error(t, err)

	_, err = NewStore(ctx, &config.Config{Storage: config.Storage{Driver: "sqlite"}})
	assert.Error(t, err)

	mongo, err := NewStore(ctx, &config.Config{
		Storage: config.Storage{Driver: "mongo"},
		Mongo:   config.Mongo{Enabled: true, Host: "localhost", Port: "27017", Database: "docspace"},
	})
	require.NoError(t, err)
	assert.IsType(t, &MongoDB{}, mongo)
}
