package internal

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/lifeos/internal/store"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	logger    *slog.Logger
	registry  *prometheus.Registry
	onChange  store.ChangeFunc
	expired   func()
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput directs the JSON log to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithLogger replaces the JSON logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithRegistry registers client metrics with reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *application) {
		a.registry = reg
	}
}

// WithSessionExpired sets the hook fired once when the backend session
// cannot be refreshed.
func WithSessionExpired(fn func()) Option {
	return func(a *application) {
		a.expired = fn
	}
}

func withOnChange(fn store.ChangeFunc) Option {
	return func(a *application) {
		a.onChange = fn
	}
}
