package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// PICKROLL_URL is the HTTP address of a running server; the suites skip when empty
	BaseURL  string `envconfig:"PICKROLL_URL"`
	GrpcAddr string `envconfig:"PICKROLL_GRPC_ADDR" default:"localhost:9090"`
	// E2E_DEBUG_JSON dumps full request/response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
