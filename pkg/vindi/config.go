package vindi

import "time"

type Config struct {
	APIKey             string        `env:"VINDI_API_KEY,required,notEmpty"`
	BaseURL            string        `env:"VINDI_BASE_URL" envDefault:"https://app.vindi.com.br/api/v1"`
	Timeout            time.Duration `env:"VINDI_TIMEOUT" envDefault:"30s"`
	RateLimitThreshold int           `env:"VINDI_RATE_LIMIT_THRESHOLD" envDefault:"20"`
	PlanCacheSize      int           `env:"VINDI_PLAN_CACHE_SIZE" envDefault:"128"`
	PlanCacheTTL       time.Duration `env:"VINDI_PLAN_CACHE_TTL" envDefault:"10m"`
	BreakerFailures    int           `env:"VINDI_BREAKER_FAILURES" envDefault:"5"`
	BreakerRecovery    time.Duration `env:"VINDI_BREAKER_RECOVERY" envDefault:"30s"`
}
