package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_GRPC_ADDR points at a running server; the suites skip when it is empty
	GrpcAddr string `envconfig:"E2E_GRPC_ADDR"`
	// E2E_AUTH_SECRET must match the server AUTH_SECRET when authentication is on
	AuthSecret string `envconfig:"E2E_AUTH_SECRET"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
