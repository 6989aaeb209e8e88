// Package alerts forwards conditions that need a human (reconciliation
// discrepancies, recovered panics) to Sentry. Without a DSN every call is a no-op.
package alerts

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
)

type Reporter struct {
	hub *sentry.Hub
}

// Options lets tests swap the transport.
type Options struct {
	Environment string
	Release     string
	Transport   sentry.Transport
}

func New(cfg config.SentryConfig, opts Options) (*Reporter, error) {
	if cfg.DSN == "" {
		return &Reporter{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		Transport:   opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry client: %w", err)
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events leave the process.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// Discrepancy raises a warning-level event tagged with the discrepancy reason.
func (r *Reporter) Discrepancy(reason string, fields map[string]any) {
	if !r.Enabled() {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("kind", "reconciliation_discrepancy")
		scope.SetTag("reason", reason)
		scope.SetContext("discrepancy", sentry.Context(fields))
		r.hub.CaptureMessage("reconciliation discrepancy: " + reason)
	})
}

func (r *Reporter) Exception(err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		r.hub.CaptureException(err)
	})
}

func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
