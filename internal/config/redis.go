package config

import "time"

type Redis struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	ListTTL  time.Duration `env:"REDIS_LIST_TTL" envDefault:"5m"`
}

// Enabled reports whether a redis server is configured.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}
