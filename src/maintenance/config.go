package maintenance

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HealthSchedule        string        `envconfig:"HEALTH_SCHEDULE" default:"*/5 * * * *"`
	MaintenanceSchedule   string        `envconfig:"MAINTENANCE_SCHEDULE" default:"0 0 * * *"`
	TradeHistoryRetention time.Duration `envconfig:"TRADE_HISTORY_RETENTION" default:"720h"`
	// Zero keeps activity logs forever.
	ActivityLogRetention time.Duration `envconfig:"ACTIVITY_LOG_RETENTION" default:"720h"`
	ProbeTimeout         time.Duration `envconfig:"EXCHANGE_CALL_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
