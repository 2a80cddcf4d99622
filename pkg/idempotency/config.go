package idempotency

import "time"

type Config struct {
	TTL    time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"24h"`
	Prefix string        `env:"WEBHOOK_DEDUPE_PREFIX" envDefault:"billing:dedupe:"`
	Size   int           `env:"WEBHOOK_DEDUPE_MEMORY_SIZE" envDefault:"10000"`
}

// Options converts the config into store options.
func (c Config) Options() []Option {
	return []Option{WithTTL(c.TTL), WithPrefix(c.Prefix), WithSize(c.Size)}
}
