package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	// LoadActiveOnBoot restarts bots whose stored status says they were running.
	LoadActiveOnBoot bool `envconfig:"LOAD_ACTIVE_ON_BOOT" default:"true"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
