package keys

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresbot/src/model"
	"futuresbot/src/security"
)

type memKeys struct {
	got *model.APIKeys
}

func (m *memKeys) Upsert(ctx context.Context, keys *model.APIKeys) error {
	m.got = keys
	return nil
}

func testCipher(t *testing.T) *security.Cipher {
	t.Helper()
	c, err := security.NewCipher(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)))
	require.NoError(t, err)
	return c
}

func TestRunStoresSealedPair(t *testing.T) {
	c := testCipher(t)
	store := &memKeys{}
	k := &Keys{Log: logrus.WithField("cmd", "test")}

	require.NoError(t, k.run(context.Background(), c, store, " u1 ", "my-key", "my-secret"))
	require.NotNil(t, store.got)
	assert.Equal(t, "u1", store.got.UserID)
	assert.True(t, store.got.Encrypted)

	key, secret, err := security.DecodeAPIKeys(store.got, c)
	require.NoError(t, err)
	assert.Equal(t, "my-key", key)
	assert.Equal(t, "my-secret", secret)
}

func TestRunPrintsWithoutStore(t *testing.T) {
	var out bytes.Buffer
	k := &Keys{Log: logrus.WithField("cmd", "test"), Out: &out}

	require.NoError(t, k.run(context.Background(), testCipher(t), nil, "u1", "k", "s"))
	assert.True(t, strings.HasPrefix(out.String(), "api_key="))
	assert.Contains(t, out.String(), "api_secret=")
}

func TestRunRequiresInput(t *testing.T) {
	k := &Keys{Log: logrus.WithField("cmd", "test")}
	assert.Error(t, k.run(context.Background(), testCipher(t), nil, "", "k", "s"))
}
