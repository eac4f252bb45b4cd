package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	QuoteCurrency  string        `envconfig:"QUOTE_CURRENCY" default:"USDT"`
	MinFreeBalance float64       `envconfig:"MIN_FREE_BALANCE" default:"10"`
	CallTimeout    time.Duration `envconfig:"EXCHANGE_CALL_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
