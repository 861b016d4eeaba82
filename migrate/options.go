/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"io/fs"
	"time"

	"github.com/acronis/go-dbmigrate/change"
)

// MetricsCollector is an interface for collecting metrics of change executions.
// *metrics.PrometheusMetrics implements it.
type MetricsCollector interface {
	ObserveExecution(kind change.Kind, direction change.Direction, duration time.Duration, err error)
}

type serviceOptions struct {
	dir         string
	fsys        fs.FS
	lockEnabled bool
	lockTTL     time.Duration
	metrics     MetricsCollector
	now         func() time.Time
}

// Option is a functional option for MigrationService and SeedService.
type Option func(*serviceOptions)

// WithDir sets the directory containing definition files.
func WithDir(dir string) Option {
	return func(o *serviceOptions) {
		o.dir = dir
	}
}

// WithFS makes the service read definitions from dir within fsys (e.g. embed.FS) instead of the OS file system.
// Create isn't available then.
func WithFS(fsys fs.FS, dir string) Option {
	return func(o *serviceOptions) {
		o.fsys = fsys
		o.dir = dir
	}
}

// WithLock enables or disables the advisory lock taken by mutating operations
// and sets its TTL. Zero ttl means DefaultLockTTL.
func WithLock(enabled bool, ttl time.Duration) Option {
	return func(o *serviceOptions) {
		o.lockEnabled = enabled
		o.lockTTL = ttl
	}
}

// WithMetrics sets a collector observing every execution of a change body.
func WithMetrics(m MetricsCollector) Option {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// WithClock sets the function returning the current time, used for naming created definitions.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}

func newServiceOptions(defaultDir string, opts []Option) serviceOptions {
	o := serviceOptions{dir: defaultDir, lockEnabled: true, lockTTL: DefaultLockTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir == "" {
		o.dir = defaultDir
	}
	if o.lockTTL <= 0 {
		o.lockTTL = DefaultLockTTL
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}
