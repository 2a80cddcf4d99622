package environment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Environment represents the deployment mode.
type Environment string

const (
	// Testing disables the webhook allow-list gate.
	Testing     Environment = "testing"
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ErrUnknownEnvironment is returned by Parse for values outside the known set.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Parse normalizes common aliases ("test", "dev", "stage", "prod") and
// rejects anything else. An empty string yields Testing.
func Parse(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "testing", "test":
		return Testing, nil
	case "development", "dev", "local":
		return Development, nil
	case "staging", "stage":
		return Staging, nil
	case "production", "prod":
		return Production, nil
	default:
		return "", errors.Join(ErrUnknownEnvironment, errors.New(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Environment) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

func (e Environment) String() string { return string(e) }

func (e Environment) IsTesting() bool     { return e == Testing }
func (e Environment) IsDevelopment() bool { return e == Development }
func (e Environment) IsStaging() bool     { return e == Staging }
func (e Environment) IsProduction() bool  { return e == Production }

type contextKey struct{}

// WithContext stores env in ctx.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext returns the environment stored in ctx or an empty value.
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

// LoggerExtractor adds an "env" attribute to log records whose context
// carries an environment.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if env := FromContext(ctx); env != "" {
			return slog.String("env", string(env)), true
		}
		return slog.Attr{}, false
	}
}
