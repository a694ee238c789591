package config

import "time"

// Config holds runtime settings for the gophauth CLI.
type Config struct {
	ServerEndpointAddr  string        `env:"GOPHAUTH_SERVER_ADDR"`
	RequestTimeout      time.Duration `env:"GOPHAUTH_REQUEST_TIMEOUT"`
	OnlineCheckInterval time.Duration `env:"GOPHAUTH_ONLINE_CHECK_INTERVAL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 15 * time.Second
	c.OnlineCheckInterval = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON, the environment and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
