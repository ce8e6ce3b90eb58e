package config

// RedisConfig holds the connection used by the shared attempt limiter.
// An empty Addr keeps attempt counters in process.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	Prefix   string `env:"REDIS_PREFIX" env-default:"idm:attempts"`
}

func (r RedisConfig) IsConfigured() bool {
	return r.Addr != ""
}
