// Package config loads typed configuration structs from the process
// environment.
//
// Fields are described with caarlos0/env tags. A .env file in the working
// directory, if present, is read once through godotenv before the first
// parse. Each struct type is parsed once and cached; later Load calls for the
// same type return the cached copy.
//
//	type Config struct {
//	    APIKey  string        `env:"VINDI_API_KEY,required,notEmpty"`
//	    Timeout time.Duration `env:"VINDI_TIMEOUT" envDefault:"30s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Parse skips the cache, which is what tests usually want.
package config
