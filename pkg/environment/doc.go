// Package environment describes the mode a billing deployment runs in
// (testing, development, staging, production) and carries it through
// context.Context, HTTP requests and structured logs.
//
// The mode matters to the webhook reconciler: in Testing every inbound event
// type is processed, while the other modes gate events through the configured
// allow-list.
//
// # Usage
//
//	env, err := environment.Parse(os.Getenv("BILLING_ENV"))
//	if err != nil {
//	    return err
//	}
//	if env.IsTesting() {
//	    // allow-list is bypassed
//	}
//
// Environment implements encoding.TextUnmarshaler, so it can be used directly
// as a field in configuration structs parsed by caarlos0/env:
//
//	type Config struct {
//	    Env environment.Environment `env:"BILLING_ENV" envDefault:"testing"`
//	}
//
// Attach the mode to every request with Middleware and read it back with
// FromContext. LoggerExtractor exposes it to slog through the logger package.
package environment
