package keys

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Store writes the sealed pair to api_keys instead of only printing it.
	Store bool `envconfig:"KEYS_STORE" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
