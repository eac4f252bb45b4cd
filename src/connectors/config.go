package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FuturesBaseURL    string        `envconfig:"BINANCE_FUTURES_BASE_URL" default:"https://fapi.binance.com"`
	RequestsPerSecond float64       `envconfig:"EXCHANGE_REQUESTS_PER_SECOND" default:"10"`
	HTTPTimeout       time.Duration `envconfig:"EXCHANGE_HTTP_TIMEOUT" default:"15s"`
	RetryAttempts     int           `envconfig:"EXCHANGE_RETRY_ATTEMPTS" default:"3"`
	RecvWindow        int64         `envconfig:"EXCHANGE_RECV_WINDOW" default:"5000"`
	QuoteCurrency     string        `envconfig:"QUOTE_CURRENCY" default:"USDT"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
