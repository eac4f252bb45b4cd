package activitylog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresbot/src/model"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []model.ActivityLogEntry
	err     error
}

func (m *memoryStore) Append(_ context.Context, e *model.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func TestAppendFillsDefaults(t *testing.T) {
	store := &memoryStore{}
	log := New(store)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return now }

	log.Success(context.Background(), "u1", "Opened LONG position", map[string]any{"symbol": "BTCUSDT", "size": 0.004})
	log.Info(context.Background(), "u1", "tick", nil)

	require.Len(t, store.entries, 2)
	first := store.entries[0]
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, model.ActivitySuccess, first.Type)
	assert.NotEmpty(t, first.Key)
	assert.Equal(t, now, first.Timestamp)
	require.NotNil(t, first.Symbol)
	assert.Equal(t, "BTCUSDT", *first.Symbol)

	assert.Nil(t, store.entries[1].Symbol)
	assert.NotEqual(t, first.Key, store.entries[1].Key)
}

func TestAppendReportsStoreFailure(t *testing.T) {
	hook := logrustest.NewGlobal()
	defer hook.Reset()

	store := &memoryStore{err: errors.New("db down")}
	log := New(store)

	err := log.Append(context.Background(), "u1", model.ActivityLogEntry{Type: model.ActivityError, Message: "boom"})
	assert.EqualError(t, err, "db down")

	// helpers swallow the error after logging it
	log.Warning(context.Background(), "u1", "warn", nil)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "Failed to append activity log entry", hook.LastEntry().Message)
}
