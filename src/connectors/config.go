package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	GatewayBaseURL   string        `envconfig:"GATEWAY_BASE_URL" default:"https://localhost:5000/v1/api"`
	GatewayWSURL     string        `envconfig:"GATEWAY_WS_URL" default:"wss://localhost:5000/v1/api/ws"`
	GatewayAccountID string        `envconfig:"GATEWAY_ACCOUNT_ID"`
	GatewayTimeout   time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
	GatewayInsecure  bool          `envconfig:"GATEWAY_INSECURE_TLS" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
