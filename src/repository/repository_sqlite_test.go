package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresbot/src/model"
)

func TestBotStatusPatchMergesFields(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewBotStatusRepositoryWithDB(db)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return t0 }
	require.NoError(t, repo.Patch(ctx, "u1", model.BotStatusPatch{IsRunning: model.Bool(true), Error: model.String("boom")}))

	repo.now = func() time.Time { return t0.Add(time.Minute) }
	require.NoError(t, repo.Patch(ctx, "u1", model.BotStatusPatch{ActivePositions: model.Int(2)}))

	s, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.IsRunning)
	assert.Equal(t, 2, s.ActivePositions)
	require.NotNil(t, s.Error)
	assert.Equal(t, "boom", *s.Error)
	assert.True(t, s.LastUpdate.Equal(t0.Add(time.Minute)))

	require.NoError(t, repo.Patch(ctx, "u1", model.BotStatusPatch{IsRunning: model.Bool(false), ClearError: true}))
	s, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, s.IsRunning)
	assert.Nil(t, s.Error)
	assert.Equal(t, 2, s.ActivePositions)
}

func TestBotStatusListRunning(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewBotStatusRepositoryWithDB(db)
	ctx := context.Background()

	require.NoError(t, repo.Patch(ctx, "b", model.BotStatusPatch{IsRunning: model.Bool(true)}))
	require.NoError(t, repo.Patch(ctx, "a", model.BotStatusPatch{IsRunning: model.Bool(true)}))
	require.NoError(t, repo.Patch(ctx, "c", model.BotStatusPatch{IsRunning: model.Bool(false)}))

	ids, err := repo.ListRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestSettingsRepositoryUpsert(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewSettingsRepositoryWithDB(db)
	ctx := context.Background()

	missing, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	s := &model.TradingSettings{UserID: "u1", Leverage: 10, RiskPercentage: 2, TPPercentage: 2, SLPercentage: 1, Symbols: []string{"BTCUSDT"}, Timeframe: model.Timeframe15m}
	require.NoError(t, repo.Upsert(ctx, s))

	s.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	s.Leverage = 20
	require.NoError(t, repo.Upsert(ctx, s))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 20, got.Leverage)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got.Symbols)
}

func TestAPIKeysRepositoryUpsert(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewAPIKeysRepositoryWithDB(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &model.APIKeys{UserID: "u1", APIKey: "k1", APISecret: "s1"}))
	require.NoError(t, repo.Upsert(ctx, &model.APIKeys{UserID: "u1", APIKey: "k2", APISecret: "s2", Encrypted: true}))

	keys, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, keys)
	assert.Equal(t, "k2", keys.APIKey)
	assert.True(t, keys.Encrypted)
}

func TestPositionRepositoryLifecycle(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewPositionRepositoryWithDB(db)
	ctx := context.Background()
	now := time.Now().UTC()

	p := &model.Position{ID: uuid.NewString(), UserID: "u1", Symbol: "BTCUSDT", Side: model.SideLong, Size: 0.004, EntryPrice: 50000, Status: model.PositionStatusOpen, Timestamp: now}
	require.NoError(t, repo.Create(ctx, p))

	dup := &model.Position{ID: uuid.NewString(), UserID: "u1", Symbol: "BTCUSDT", Side: model.SideLong, Size: 1, Status: model.PositionStatusOpen, Timestamp: now}
	assert.ErrorIs(t, repo.Create(ctx, dup), model.ErrDuplicatePosition)

	other := &model.Position{ID: uuid.NewString(), UserID: "u2", Symbol: "BTCUSDT", Side: model.SideShort, Size: 1, Status: model.PositionStatusOpen, Timestamp: now}
	require.NoError(t, repo.Create(ctx, other))

	require.NoError(t, repo.UpdateMarket(ctx, p.ID, 51000, 4))
	found, err := repo.FindOpenBySymbol(ctx, "u1", "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.InDelta(t, 51000, found.CurrentPrice, 1e-9)
	assert.InDelta(t, 4, found.PnL, 1e-9)

	closed, err := repo.Close(ctx, p.ID, 51000, 4, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.Close(ctx, p.ID, 51000, 4, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, closed)

	open, err := repo.ListOpen(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, open)

	found, err = repo.FindOpenBySymbol(ctx, "u1", "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, repo.Create(ctx, dup))
}

func TestActivityAndTradeHistoryRetention(t *testing.T) {
	db := newSQLiteDB(t)
	logs := NewActivityLogRepositoryWithDB(db)
	trades := NewTradeHistoryRepositoryWithDB(db)
	ctx := context.Background()

	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	old := now.Add(-31 * 24 * time.Hour)

	for i, ts := range []time.Time{old, now} {
		require.NoError(t, logs.Append(ctx, &model.ActivityLogEntry{Key: uuid.NewString(), UserID: "u1", Type: model.ActivityInfo, Message: "m", Timestamp: ts}))
		require.NoError(t, trades.Create(ctx, &model.TradeHistory{ID: uuid.NewString(), UserID: "u1", Symbol: "BTCUSDT", Side: model.SideLong, Timestamp: ts, PnL: float64(i)}))
	}
	require.NoError(t, trades.Create(ctx, &model.TradeHistory{ID: uuid.NewString(), UserID: "u2", Symbol: "ETHUSDT", Side: model.SideShort, Timestamp: old}))

	users, err := trades.DistinctUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	cutoff := now.Add(-30 * 24 * time.Hour)
	n, err := trades.DeleteOlderThan(ctx, "u1", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = logs.DeleteOlderThan(ctx, "u1", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := logs.ListRecent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Timestamp.Equal(now))

	logUsers, err := logs.DistinctUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, logUsers)
}

func TestActivityLogListRecentOrder(t *testing.T) {
	db := newSQLiteDB(t)
	logs := NewActivityLogRepositoryWithDB(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, logs.Append(ctx, &model.ActivityLogEntry{Key: uuid.NewString(), UserID: "u1", Type: model.ActivityInfo, Message: msg, Timestamp: now}))
	}

	recent, err := logs.ListRecent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Message)
	assert.Equal(t, "second", recent[1].Message)
}
