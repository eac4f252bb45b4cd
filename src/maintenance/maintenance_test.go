package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresbot/src/connectors"
	"futuresbot/src/connectors/connectorstest"
	"futuresbot/src/model"
	"futuresbot/src/session"
)

type memStatus struct {
	mu   sync.Mutex
	byID map[string]*model.BotStatus
}

func (m *memStatus) Get(ctx context.Context, userID string) (*model.BotStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStatus) Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[userID]
	if !ok {
		s = &model.BotStatus{UserID: userID}
		m.byID[userID] = s
	}
	patch.Apply(s, time.Now())
	return nil
}

func registerFake(t *testing.T, client *connectorstest.FakeClient) (*session.Registry, *session.Session) {
	t.Helper()
	reg := session.NewRegistry(connectorstest.Factory(client), time.Second)
	sess, err := reg.Register(context.Background(), "u1", connectors.Credentials{APIKey: "k", APISecret: "s"}, model.TradingSettings{})
	require.NoError(t, err)
	return reg, sess
}

func TestHealthProbeDegradesAndRecovers(t *testing.T) {
	client := &connectorstest.FakeClient{}
	reg, sess := registerFake(t, client)
	status := &memStatus{byID: map[string]*model.BotStatus{}}
	h := NewHealthMonitor(reg, status, time.Second)

	client.SetBalanceErr(errors.New("dial tcp: i/o timeout"))
	assert.Equal(t, 1, h.Probe(context.Background()))
	assert.True(t, sess.Degraded())
	st, _ := status.Get(context.Background(), "u1")
	require.NotNil(t, st.Error)
	assert.Contains(t, *st.Error, ConnectivityError)

	_, ok := reg.Get("u1")
	assert.True(t, ok, "probe failure never unregisters")

	client.SetBalanceErr(nil)
	assert.Zero(t, h.Probe(context.Background()))
	assert.False(t, sess.Degraded())
	st, _ = status.Get(context.Background(), "u1")
	assert.Nil(t, st.Error)
}

func TestHealthRecoveryKeepsUnrelatedError(t *testing.T) {
	client := &connectorstest.FakeClient{}
	reg, sess := registerFake(t, client)
	status := &memStatus{byID: map[string]*model.BotStatus{}}
	h := NewHealthMonitor(reg, status, time.Second)

	sess.SetDegraded(true)
	require.NoError(t, status.Patch(context.Background(), "u1", model.BotStatusPatch{Error: model.String("market order: rejected")}))

	h.Probe(context.Background())
	st, _ := status.Get(context.Background(), "u1")
	require.NotNil(t, st.Error)
	assert.Equal(t, "market order: rejected", *st.Error)
}

type memAged struct {
	mu      sync.Mutex
	rows    map[string][]time.Time
	failFor string
}

func (m *memAged) DistinctUserIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for u := range m.rows {
		out = append(out, u)
	}
	return out, nil
}

func (m *memAged) DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if userID == m.failFor {
		return 0, errors.New("locked")
	}
	var kept []time.Time
	var n int64
	for _, ts := range m.rows[userID] {
		if ts.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, ts)
	}
	m.rows[userID] = kept
	return n, nil
}

func TestRetentionSweep(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	trades := &memAged{rows: map[string][]time.Time{
		"u1": {now.Add(-31 * day), now.Add(-29 * day)},
		"u2": {now.Add(-40 * day)},
	}}
	activity := &memAged{rows: map[string][]time.Time{
		"u1": {now.Add(-60 * day), now.Add(-time.Hour)},
	}}

	s := NewRetentionSweeper(trades, activity, Config{TradeHistoryRetention: 30 * day, ActivityLogRetention: 30 * day})
	s.now = func() time.Time { return now }

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TradeHistory)
	assert.Equal(t, int64(1), res.ActivityLogs)
	assert.Len(t, trades.rows["u1"], 1)
	assert.Empty(t, trades.rows["u2"])
}

func TestRetentionSweepDisabledActivity(t *testing.T) {
	activity := &memAged{rows: map[string][]time.Time{"u1": {time.Now().Add(-365 * 24 * time.Hour)}}}
	s := NewRetentionSweeper(nil, activity, Config{ActivityLogRetention: 0})

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.ActivityLogs)
	assert.Len(t, activity.rows["u1"], 1)
}

func TestRetentionSweepContinuesPastFailures(t *testing.T) {
	old := time.Now().Add(-90 * 24 * time.Hour)
	trades := &memAged{rows: map[string][]time.Time{"u1": {old}, "u2": {old}}, failFor: "u1"}
	s := NewRetentionSweeper(trades, nil, Config{TradeHistoryRetention: time.Hour})

	res, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user u1")
	assert.Equal(t, int64(1), res.TradeHistory)
}

func TestNewJobsRejectsBadSchedule(t *testing.T) {
	_, err := NewJobs(Config{HealthSchedule: "every now and then", MaintenanceSchedule: "0 0 * * *"}, nil, nil)
	assert.Error(t, err)

	jobs, err := NewJobs(Config{HealthSchedule: "*/5 * * * *", MaintenanceSchedule: "0 0 * * *"}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, jobs.Run(ctx))
}
