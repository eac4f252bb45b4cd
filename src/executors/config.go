package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultTradingInterval    = 30 * time.Second
	DefaultMonitoringInterval = 10 * time.Second
)

type Config struct {
	TradingInterval    time.Duration `envconfig:"TRADING_INTERVAL" default:"30s"`
	MonitoringInterval time.Duration `envconfig:"MONITORING_INTERVAL" default:"10s"`
	LoopJitter         time.Duration `envconfig:"LOOP_JITTER" default:"0s"`
	WorkerPoolSize     int           `envconfig:"WORKER_POOL_SIZE" default:"8"`
	CallTimeout        time.Duration `envconfig:"EXCHANGE_CALL_TIMEOUT" default:"15s"`
	CandleLimit        int           `envconfig:"CANDLE_LIMIT" default:"100"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
