package internal

import (
	"fmt"
	"strings"
	"time"
)

const (
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

type Config struct {
	LogLevel               string        `env:"LOG_LEVEL,required=true"`
	Host                   string        `env:"HOST,default=0.0.0.0"`
	Port                   int           `env:"PORT,default=5000"`
	GrpcPort               int           `env:"GRPC_PORT,default=5001"`
	DebugInspectorPort     int           `env:"DEBUG_INSPECTOR_PORT,default=0"`
	StorageDriver          string        `env:"STORAGE_DRIVER,default=badger"`
	BadgerFilepath         string        `env:"BADGER_FILEPATH,default=./data/badger"`
	DatabaseURL            string        `env:"DATABASE_URL"`
	CorsOrigins            string        `env:"CORS_ORIGINS,default=http://localhost:3000"`
	RateLimitRequests      int           `env:"RATE_LIMIT_REQUESTS,default=300"`
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	ConnectionBufferSize   int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout            time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval        time.Duration `env:"RESTART_INTERVAL,default=1s"`
	PresenceReportInterval time.Duration `env:"PRESENCE_REPORT_INTERVAL,default=15s"`
	AuthSecret             string        `env:"AUTH_SECRET"`
	AuthTokenDuration      time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	MaxTextLength          int           `env:"MAX_TEXT_LENGTH,default=4000"`
}

// Validate checks the combinations the env tags cannot express.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageBadger:
		if c.BadgerFilepath == "" {
			return fmt.Errorf("BADGER_FILEPATH is required with STORAGE_DRIVER=%s", StorageBadger)
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required with STORAGE_DRIVER=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageBadger, StoragePostgres, c.StorageDriver)
	}
	if c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.SinkTimeout <= 0 {
		return fmt.Errorf("SINK_TIMEOUT must be positive, got %s", c.SinkTimeout)
	}
	if c.PresenceReportInterval <= 0 {
		return fmt.Errorf("PRESENCE_REPORT_INTERVAL must be positive, got %s", c.PresenceReportInterval)
	}
	return nil
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CorsOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
