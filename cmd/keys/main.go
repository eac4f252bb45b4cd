package keys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"futuresbot/src/database"
	"futuresbot/src/model"
	"futuresbot/src/repository"
	"futuresbot/src/security"
)

type keysStore interface {
	Upsert(ctx context.Context, keys *model.APIKeys) error
}

// Keys seals a user's exchange key pair with EXCHANGE_CREDENTIALS_KEY.
type Keys struct {
	Log *logrus.Entry
	Out io.Writer
}

func (k *Keys) Start(userID, apiKey, apiSecret string) error {
	cipher, err := security.NewCipherFromConfig()
	if err != nil {
		return err
	}

	var store keysStore
	if GetConfig().Store {
		if err := database.InitMainDB(); err != nil {
			k.Log.WithError(err).Error("Failed to connect to main database")
			return err
		}
		store = repository.NewAPIKeysRepository()
	}
	return k.run(context.Background(), cipher, store, userID, apiKey, apiSecret)
}

func (k *Keys) run(ctx context.Context, cipher *security.Cipher, store keysStore, userID, apiKey, apiSecret string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" || apiKey == "" || apiSecret == "" {
		return errors.New("user, key and secret are required")
	}

	encryptKey, err := cipher.EncryptString(apiKey)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}
	encryptSecret, err := cipher.EncryptString(apiSecret)
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}

	if store == nil {
		_, err := fmt.Fprintf(k.Out, "api_key=%s\napi_secret=%s\n", encryptKey, encryptSecret)
		return err
	}

	if err := store.Upsert(ctx, &model.APIKeys{
		UserID:    userID,
		APIKey:    encryptKey,
		APISecret: encryptSecret,
		Encrypted: true,
	}); err != nil {
		return fmt.Errorf("store api keys: %w", err)
	}
	k.Log.WithField("user_id", userID).Info("API keys stored")
	return nil
}
