package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"futuresbot/src/activitylog"
	"futuresbot/src/connectors"
	"futuresbot/src/connectors/connectorstest"
	"futuresbot/src/database"
	"futuresbot/src/model"
	"futuresbot/src/repository"
	"futuresbot/src/session"
)

type testEnv struct {
	db       *gorm.DB
	clients  map[string]connectors.ExchangeClient
	engine   *Engine
	registry *session.Registry
	status   *repository.GormBotStatusRepository
	activity *repository.GormActivityLogRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:          "sqlite",
		DatabaseURLMain: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		GormLogLevel:    1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	env := &testEnv{
		db:       db,
		clients:  map[string]connectors.ExchangeClient{},
		status:   repository.NewBotStatusRepositoryWithDB(db),
		activity: repository.NewActivityLogRepositoryWithDB(db),
	}
	env.registry = session.NewRegistry(connectorstest.FactoryByKey(env.clients), time.Second)
	env.engine = New(Deps{
		Registry: env.registry,
		Keys:     repository.NewAPIKeysRepositoryWithDB(db),
		Settings: repository.NewSettingsRepositoryWithDB(db),
		Status:   env.status,
		Activity: activitylog.New(env.activity),
	})
	return env
}

// addUser stores base64 keys for userID and wires an exchange client answering to them.
func (env *testEnv) addUser(t *testing.T, userID string, client connectors.ExchangeClient) {
	t.Helper()
	apiKey := "key-" + userID
	if client != nil {
		env.clients[apiKey] = client
	}
	require.NoError(t, repository.NewAPIKeysRepositoryWithDB(env.db).Upsert(context.Background(), &model.APIKeys{
		UserID:    userID,
		APIKey:    base64.StdEncoding.EncodeToString([]byte(apiKey)),
		APISecret: base64.StdEncoding.EncodeToString([]byte("secret")),
	}))
	require.NoError(t, repository.NewSettingsRepositoryWithDB(env.db).Upsert(context.Background(), &model.TradingSettings{
		UserID:         userID,
		Leverage:       20,
		RiskPercentage: 1,
		TPPercentage:   2,
		SLPercentage:   1,
		Symbols:        []string{"ethusdt", "BTCUSDT"},
		Timeframe:      model.Timeframe1h,
	}))
}

func TestStartSessionMarksRunning(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1", &connectorstest.FakeClient{})
	ctx := context.Background()

	require.NoError(t, env.status.Patch(ctx, "u1", model.BotStatusPatch{Error: model.String("old failure")}))
	require.NoError(t, env.engine.StartSession(ctx, "u1"))

	st, err := env.engine.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.IsRunning)
	assert.Nil(t, st.Error)
	assert.Equal(t, 1, env.engine.ActiveUsers())

	sess, ok := env.registry.Get("u1")
	require.True(t, ok)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, sess.Settings().Symbols)
	assert.Equal(t, 20, sess.Settings().Leverage)

	entries, err := env.activity.ListRecent(ctx, "u1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Trading bot started", entries[0].Message)
}

func TestStartSessionWithoutKeys(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.StartSession(context.Background(), "nobody")
	assert.ErrorIs(t, err, model.ErrMissingCredentials)
	assert.Zero(t, env.engine.ActiveUsers())
}

func TestStartSessionInvalidKeys(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1", &connectorstest.FakeClient{BalanceErr: errors.New("code -2015")})
	ctx := context.Background()

	err := env.engine.StartSession(ctx, "u1")
	assert.ErrorIs(t, err, model.ErrAuth)
	_, ok := env.registry.Get("u1")
	assert.False(t, ok)

	st, err := env.engine.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.IsRunning)
	require.NotNil(t, st.Error)
	assert.Equal(t, msgInvalidKeys, *st.Error)
}

func TestStopSessionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	client := &connectorstest.FakeClient{}
	env.addUser(t, "u1", client)
	ctx := context.Background()

	require.NoError(t, env.engine.StartSession(ctx, "u1"))
	require.NoError(t, env.engine.StopSession(ctx, "u1"))
	require.NoError(t, env.engine.StopSession(ctx, "u1"))

	st, err := env.engine.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.IsRunning)
	assert.Zero(t, env.engine.ActiveUsers())
	assert.Eventually(t, client.Closed, time.Second, 5*time.Millisecond)
}

func TestGetStatusDefault(t *testing.T) {
	env := newTestEnv(t)

	st, err := env.engine.GetStatus(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, "u9", st.UserID)
	assert.False(t, st.IsRunning)
	assert.Zero(t, st.ActivePositions)
	assert.False(t, st.LastUpdate.IsZero())
}

func TestLoadActiveSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "u1", &connectorstest.FakeClient{})
	env.addUser(t, "u2", &connectorstest.FakeClient{BalanceErr: errors.New("401")})
	env.addUser(t, "u3", &connectorstest.FakeClient{})

	for _, u := range []string{"u1", "u2"} {
		require.NoError(t, env.status.Patch(ctx, u, model.BotStatusPatch{IsRunning: model.Bool(true)}))
	}

	started, err := env.engine.LoadActiveSessions(ctx)
	assert.Equal(t, 1, started)
	assert.ErrorIs(t, err, model.ErrAuth)

	_, ok := env.registry.Get("u1")
	assert.True(t, ok)
	_, ok = env.registry.Get("u3")
	assert.False(t, ok, "stopped bots are not restarted")

	st, _ := env.engine.GetStatus(ctx, "u2")
	assert.False(t, st.IsRunning)
}
