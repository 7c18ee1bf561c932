package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Node     NodeConfig     `envPrefix:"NODE_"`
	Sync     SyncConfig     `envPrefix:"SYNC_"`
	Expiry   ExpiryConfig   `envPrefix:"EXPIRY_"`
}

type ServerConfig struct {
	Addr string `env:"ADDR" envDefault:"0.0.0.0:8080"`
}

type DatabaseConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"chatnode"`
}

type NodeConfig struct {
	// ID is the logical identifier other nodes use to address this node.
	ID string `env:"ID" envDefault:"node-local"`
	// SnowflakeNode seeds the message-id generator; must be unique per node.
	SnowflakeNode int64 `env:"SNOWFLAKE_NODE" envDefault:"1"`
}

type SyncConfig struct {
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"2s"`
	MaxBatchSize int           `env:"MAX_BATCH_SIZE" envDefault:"1000"`
	SendTimeout  time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
	DedupHorizon time.Duration `env:"DEDUP_HORIZON" envDefault:"24h"`
	// Peers maps a logical destination to its base URL, e.g.
	// SYNC_PEERS=user:alice=http://10.0.0.2:8080,index:global=http://10.0.0.9:8080
	Peers map[string]string `env:"PEERS"`
}

type ExpiryConfig struct {
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
