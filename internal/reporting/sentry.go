// Package reporting forwards unexpected proxy failures to Sentry.
package reporting

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"flist-proxy-go/internal/config"
)

// Reporter captures errors on a dedicated Sentry hub.
// With an empty DSN events are built but never sent.
type Reporter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

// New creates a Reporter from the [sentry] config section. sentry-go reads a
// zero sample rate as 1, so a configured 0 clears the DSN instead.
func New(cfg *config.Config, logger *slog.Logger, version string) (*Reporter, error) {
	dsn := cfg.Sentry.DSN
	rate := 1.0
	if cfg.Sentry.SampleRate != nil {
		rate = *cfg.Sentry.SampleRate
	}
	if rate == 0 {
		dsn = ""
	}
	return NewWithOptions(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: cfg.Sentry.Environment,
		SampleRate:  rate,
		Release:     "flist-proxy@" + version,
	}, logger)
}

// NewWithOptions creates a Reporter from raw client options.
func NewWithOptions(opts sentry.ClientOptions, logger *slog.Logger) (*Reporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("reporting: init sentry: %w", err)
	}

	logger = logger.With("component", "reporting")
	if opts.Dsn == "" {
		logger.Debug("sentry disabled: no DSN configured")
	} else {
		logger.Info("sentry enabled", "environment", opts.Environment)
	}

	return &Reporter{
		hub:    sentry.NewHub(client, sentry.NewScope()),
		logger: logger,
	}, nil
}

// Capture reports err with the given tags. A nil Reporter is a no-op.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if r == nil || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if r == nil {
		return true
	}
	return r.hub.Flush(timeout)
}
